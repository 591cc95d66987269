package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/repository"
)

// CartService defines the server-side cart kept per user.
type CartService interface {
	GetCart(ctx context.Context, userID string) (*models.CartView, *ServiceError)
	AddItem(ctx context.Context, userID string, req *models.AddCartItemRequest) (*models.CartView, *ServiceError)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*models.CartView, *ServiceError)
	RemoveItem(ctx context.Context, userID, itemID string) (*models.CartView, *ServiceError)
	ClearCart(ctx context.Context, userID string) *ServiceError
}

type cartServiceImpl struct {
	carts  repository.CartRepository
	menu   repository.MenuRepository
	logger *zap.Logger
}

func NewCartService(carts repository.CartRepository, menu repository.MenuRepository, logger *zap.Logger) CartService {
	return &cartServiceImpl{carts: carts, menu: menu, logger: logger}
}

func view(cart *models.Cart) *models.CartView {
	return &models.CartView{Items: cart.Items, Total: cart.Total()}
}

func (s *cartServiceImpl) load(ctx context.Context, userID string) (*models.Cart, *ServiceError) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.String("user_id", userID), zap.Error(err))
		return nil, internal("Failed to fetch cart")
	}
	return cart, nil
}

func (s *cartServiceImpl) save(ctx context.Context, cart *models.Cart) (*models.CartView, *ServiceError) {
	if err := s.carts.SaveCart(ctx, cart); err != nil {
		s.logger.Error("Failed to save cart", zap.String("user_id", cart.UserID), zap.Error(err))
		return nil, internal("Failed to update cart")
	}
	return view(cart), nil
}

func (s *cartServiceImpl) GetCart(ctx context.Context, userID string) (*models.CartView, *ServiceError) {
	cart, serr := s.load(ctx, userID)
	if serr != nil {
		return nil, serr
	}
	return view(cart), nil
}

// AddItem adds quantity of a menu item, merging with an existing line.
// Name and price always come from the menu.
func (s *cartServiceImpl) AddItem(ctx context.Context, userID string, req *models.AddCartItemRequest) (*models.CartView, *ServiceError) {
	if req.Quantity < 1 {
		return nil, badRequest("Quantity must be at least 1")
	}

	item, err := s.menu.FindByID(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Menu item not found")
		}
		s.logger.Error("Failed to load menu item", zap.String("item_id", req.ItemID), zap.Error(err))
		return nil, internal("Failed to update cart")
	}
	if !item.Available {
		return nil, badRequest("Menu item is not available")
	}

	cart, serr := s.load(ctx, userID)
	if serr != nil {
		return nil, serr
	}

	merged := false
	for i := range cart.Items {
		if cart.Items[i].ItemID == item.ID {
			cart.Items[i].Quantity += req.Quantity
			cart.Items[i].Price = item.Price
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, models.CartItem{
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: req.Quantity,
		})
	}
	return s.save(ctx, cart)
}

func (s *cartServiceImpl) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*models.CartView, *ServiceError) {
	if quantity < 1 {
		return nil, badRequest("Quantity must be at least 1")
	}
	cart, serr := s.load(ctx, userID)
	if serr != nil {
		return nil, serr
	}
	for i := range cart.Items {
		if cart.Items[i].ItemID == itemID {
			cart.Items[i].Quantity = quantity
			return s.save(ctx, cart)
		}
	}
	return nil, notFound("Item not found in cart")
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, userID, itemID string) (*models.CartView, *ServiceError) {
	cart, serr := s.load(ctx, userID)
	if serr != nil {
		return nil, serr
	}
	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		if it.ItemID != itemID {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(cart.Items) {
		return nil, notFound("Item not found in cart")
	}
	cart.Items = kept
	return s.save(ctx, cart)
}

func (s *cartServiceImpl) ClearCart(ctx context.Context, userID string) *ServiceError {
	if err := s.carts.DeleteCart(ctx, userID); err != nil {
		s.logger.Error("Failed to clear cart", zap.String("user_id", userID), zap.Error(err))
		return internal("Failed to clear cart")
	}
	return nil
}
