package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
)

// MenuService defines catalogue reads and admin maintenance.
type MenuService interface {
	ListMenu(ctx context.Context) ([]models.MenuItem, *ServiceError)
	ListCategories(ctx context.Context) ([]string, *ServiceError)
	ItemsByCategory(ctx context.Context, category string) ([]models.MenuItem, *ServiceError)
	GetItem(ctx context.Context, id string) (*models.MenuItem, *ServiceError)
	CreateItem(ctx context.Context, req *models.CreateMenuItemRequest) (*models.MenuItem, *ServiceError)
	UpdateItem(ctx context.Context, id string, req *models.UpdateMenuItemRequest) (*models.MenuItem, *ServiceError)
	DeleteItem(ctx context.Context, id string) *ServiceError
	PresignImageUpload(ctx context.Context, id, contentType string) (*aws_pkg.PresignedUpload, *ServiceError)
}

type menuServiceImpl struct {
	repo     repository.MenuRepository
	uploader aws_pkg.ImageUploader
	logger   *zap.Logger
}

// NewMenuService creates a MenuService. uploader may be nil when no image
// bucket is configured.
func NewMenuService(repo repository.MenuRepository, uploader aws_pkg.ImageUploader, logger *zap.Logger) MenuService {
	return &menuServiceImpl{repo: repo, uploader: uploader, logger: logger}
}

func (s *menuServiceImpl) ListMenu(ctx context.Context) ([]models.MenuItem, *ServiceError) {
	items, err := s.repo.FindAvailable(ctx)
	if err != nil {
		s.logger.Error("Failed to list menu", zap.Error(err))
		return nil, internal("Failed to fetch menu")
	}
	return items, nil
}

func (s *menuServiceImpl) ListCategories(ctx context.Context) ([]string, *ServiceError) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		s.logger.Error("Failed to list categories", zap.Error(err))
		return nil, internal("Failed to fetch categories")
	}
	return categories, nil
}

func (s *menuServiceImpl) ItemsByCategory(ctx context.Context, category string) ([]models.MenuItem, *ServiceError) {
	items, err := s.repo.FindByCategory(ctx, category)
	if err != nil {
		s.logger.Error("Failed to list category", zap.String("category", category), zap.Error(err))
		return nil, internal("Failed to fetch menu items")
	}
	if len(items) == 0 {
		return nil, notFound("No items found in this category")
	}
	return items, nil
}

func (s *menuServiceImpl) GetItem(ctx context.Context, id string) (*models.MenuItem, *ServiceError) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Menu item not found")
		}
		s.logger.Error("Failed to load menu item", zap.String("item_id", id), zap.Error(err))
		return nil, internal("Failed to fetch menu item")
	}
	return item, nil
}

func (s *menuServiceImpl) CreateItem(ctx context.Context, req *models.CreateMenuItemRequest) (*models.MenuItem, *ServiceError) {
	now := time.Now().UTC()
	item := &models.MenuItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Category:    strings.ToLower(strings.TrimSpace(req.Category)),
		Image:       req.Image,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		s.logger.Error("Failed to create menu item", zap.Error(err))
		return nil, internal("Failed to create menu item")
	}

	s.logger.Info("Menu item created", zap.String("item_id", item.ID), zap.String("category", item.Category))
	return item, nil
}

func (s *menuServiceImpl) UpdateItem(ctx context.Context, id string, req *models.UpdateMenuItemRequest) (*models.MenuItem, *ServiceError) {
	fields := bson.M{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		fields["price"] = *req.Price
	}
	if req.Category != nil {
		fields["category"] = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.Image != nil {
		fields["image"] = *req.Image
	}
	if req.Available != nil {
		fields["available"] = *req.Available
	}
	if len(fields) == 0 {
		return nil, badRequest("No fields to update")
	}

	item, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("Menu item not found")
		}
		s.logger.Error("Failed to update menu item", zap.String("item_id", id), zap.Error(err))
		return nil, internal("Failed to update menu item")
	}

	s.logger.Info("Menu item updated", zap.String("item_id", id))
	return item, nil
}

func (s *menuServiceImpl) DeleteItem(ctx context.Context, id string) *ServiceError {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("Menu item not found")
		}
		s.logger.Error("Failed to delete menu item", zap.String("item_id", id), zap.Error(err))
		return internal("Failed to delete menu item")
	}

	s.logger.Info("Menu item deleted", zap.String("item_id", id))
	return nil
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// PresignImageUpload returns a presigned PUT URL for a new image of item id.
// The item's image field is not changed until the client updates it.
func (s *menuServiceImpl) PresignImageUpload(ctx context.Context, id, contentType string) (*aws_pkg.PresignedUpload, *ServiceError) {
	if s.uploader == nil {
		return nil, &ServiceError{StatusCode: 503, Message: "Image uploads are not configured"}
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, badRequest("Unsupported image type")
	}
	if _, serr := s.GetItem(ctx, id); serr != nil {
		return nil, serr
	}

	key := path.Join("menu", id, fmt.Sprintf("%s%s", uuid.NewString(), ext))
	upload, err := s.uploader.PresignUpload(ctx, key, contentType)
	if err != nil {
		s.logger.Error("Failed to presign image upload", zap.String("item_id", id), zap.Error(err))
		return nil, internal("Failed to create upload URL")
	}
	return upload, nil
}
