package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/services"
)

// MenuController serves the public catalogue and its admin maintenance.
type MenuController struct {
	menu services.MenuService
}

func NewMenuController(menu services.MenuService) *MenuController {
	return &MenuController{menu: menu}
}

// ListMenu handles GET /api/v1/menu.
func (mc *MenuController) ListMenu(c *gin.Context) {
	items, svcErr := mc.menu.ListMenu(c.Request.Context())
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	if items == nil {
		items = []models.MenuItem{}
	}
	respondData(c, http.StatusOK, items, "")
}

// ListCategories handles GET /api/v1/menu/categories.
func (mc *MenuController) ListCategories(c *gin.Context) {
	categories, svcErr := mc.menu.ListCategories(c.Request.Context())
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondData(c, http.StatusOK, categories, "")
}

// ItemsByCategory handles GET /api/v1/menu/categories/:categoryName.
func (mc *MenuController) ItemsByCategory(c *gin.Context) {
	items, svcErr := mc.menu.ItemsByCategory(c.Request.Context(), c.Param("categoryName"))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, items, "")
}

// GetItem handles GET /api/v1/menu/items/:itemId.
func (mc *MenuController) GetItem(c *gin.Context) {
	item, svcErr := mc.menu.GetItem(c.Request.Context(), c.Param("itemId"))
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, item, "")
}

// CreateItem handles POST /api/v1/admin/menu/items.
func (mc *MenuController) CreateItem(c *gin.Context) {
	var req models.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Error:   "Name, description, price, category and image are required",
			Message: err.Error(),
		})
		return
	}

	item, svcErr := mc.menu.CreateItem(c.Request.Context(), &req)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusCreated, item, "Menu item created")
}

// UpdateItem handles PUT /api/v1/admin/menu/items/:itemId.
func (mc *MenuController) UpdateItem(c *gin.Context) {
	var req models.UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	item, svcErr := mc.menu.UpdateItem(c.Request.Context(), c.Param("itemId"), &req)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, item, "Menu item updated")
}

// DeleteItem handles DELETE /api/v1/admin/menu/items/:itemId.
func (mc *MenuController) DeleteItem(c *gin.Context) {
	if svcErr := mc.menu.DeleteItem(c.Request.Context(), c.Param("itemId")); svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, nil, "Menu item deleted")
}

// ImageUploadURL handles POST /api/v1/admin/menu/items/:itemId/image-upload.
func (mc *MenuController) ImageUploadURL(c *gin.Context) {
	var req models.ImageUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	upload, svcErr := mc.menu.PresignImageUpload(c.Request.Context(), c.Param("itemId"), req.ContentType)
	if svcErr != nil {
		respondEnvelopeError(c, svcErr)
		return
	}
	respondData(c, http.StatusOK, upload, "")
}
