package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rpr91/Malandros/middleware"
	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/services"
)

// CartController serves the per-user server cart. The owner is resolved by
// middleware.ResolveUser.
type CartController struct {
	carts services.CartService
}

func NewCartController(carts services.CartService) *CartController {
	return &CartController{carts: carts}
}

func cartOwner(c *gin.Context) string {
	if id, err := middleware.GetUserID(c); err == nil {
		return id
	}
	return middleware.GuestUserID
}

// GetCart handles GET /api/v1/cart.
func (cc *CartController) GetCart(c *gin.Context) {
	cart, svcErr := cc.carts.GetCart(c.Request.Context(), cartOwner(c))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, cart, "")
}

// AddItem handles POST /api/v1/cart.
func (cc *CartController) AddItem(c *gin.Context) {
	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "itemId and a positive quantity are required"})
		return
	}

	cart, svcErr := cc.carts.AddItem(c.Request.Context(), cartOwner(c), &req)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, cart, "Item added to cart")
}

// UpdateItem handles PUT /api/v1/cart/:itemId.
func (cc *CartController) UpdateItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: "A positive quantity is required"})
		return
	}

	cart, svcErr := cc.carts.UpdateItem(c.Request.Context(), cartOwner(c), c.Param("itemId"), req.Quantity)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, cart, "Cart updated")
}

// RemoveItem handles DELETE /api/v1/cart/:itemId.
func (cc *CartController) RemoveItem(c *gin.Context) {
	cart, svcErr := cc.carts.RemoveItem(c.Request.Context(), cartOwner(c), c.Param("itemId"))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, cart, "Item removed from cart")
}

// ClearCart handles DELETE /api/v1/cart.
func (cc *CartController) ClearCart(c *gin.Context) {
	if svcErr := cc.carts.ClearCart(c.Request.Context(), cartOwner(c)); svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, models.CartView{Items: []models.CartItem{}}, "Cart cleared")
}
