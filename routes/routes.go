package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/controllers"
	"github.com/rpr91/Malandros/middleware"
)

// Dependencies is everything the HTTP surface needs, assembled by main.
type Dependencies struct {
	Auth     *controllers.AuthController
	Payments *controllers.PaymentController
	Menu     *controllers.MenuController
	Cart     *controllers.CartController
	Orders   *controllers.OrderController

	// CSRF guards browser-facing mutations; admin and webhook routes are exempt.
	CSRF        gin.HandlerFunc
	AuthLimiter gin.HandlerFunc
	Tokens      middleware.AccessTokenValidator
	AdminKey    string
	ServiceName string
	Logger      *zap.Logger
}

// RegisterRoutes mounts every route on r.
func RegisterRoutes(r *gin.Engine, d Dependencies) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": d.ServiceName})
	})

	adminOnly := middleware.AdminOnly(d.AdminKey, d.Logger)
	resolveUser := middleware.ResolveUser(d.Tokens)

	api := r.Group("/api")
	api.POST("/webhooks", d.Payments.StripeWebhook)

	authRoutes := api.Group("/auth")
	if d.AuthLimiter != nil {
		authRoutes.Use(d.AuthLimiter)
	}
	authRoutes.Use(d.CSRF)
	authRoutes.GET("/csrf", d.Auth.CSRF)
	authRoutes.POST("/register", d.Auth.Register)
	authRoutes.POST("/login", d.Auth.Login)
	authRoutes.POST("/refresh", d.Auth.Refresh)
	authRoutes.POST("/logout", d.Auth.Logout)
	authRoutes.GET("/me", middleware.RequireAuth(d.Tokens), d.Auth.Me)

	api.POST("/create-payment-intent", d.CSRF, resolveUser, d.Payments.CreatePaymentIntent)
	api.GET("/orders/:orderId", d.Payments.GetOrderStatus)

	// Internal relays, also driven by the webhook handler in-process.
	relay := api.Group("/orders", adminOnly)
	relay.POST("/update-status", d.Payments.UpdateOrderStatus)
	relay.POST("/fulfill", d.Payments.FulfillOrder)

	v1 := api.Group("/v1")

	menu := v1.Group("/menu")
	menu.GET("", d.Menu.ListMenu)
	menu.GET("/categories", d.Menu.ListCategories)
	menu.GET("/categories/:categoryName", d.Menu.ItemsByCategory)
	menu.GET("/items/:itemId", d.Menu.GetItem)

	cart := v1.Group("/cart", d.CSRF, resolveUser)
	cart.GET("", d.Cart.GetCart)
	cart.POST("", d.Cart.AddItem)
	cart.DELETE("", d.Cart.ClearCart)
	cart.PUT("/:itemId", d.Cart.UpdateItem)
	cart.DELETE("/:itemId", d.Cart.RemoveItem)

	orders := v1.Group("/orders", d.CSRF, resolveUser)
	orders.POST("", d.Orders.CreateOrder)
	orders.GET("", d.Orders.ListOrders)
	orders.GET("/:orderId", d.Orders.GetOrder)

	admin := v1.Group("/admin", adminOnly)
	admin.GET("/check", controllers.AdminCheck)
	admin.POST("/menu/items", d.Menu.CreateItem)
	admin.PUT("/menu/items/:itemId", d.Menu.UpdateItem)
	admin.DELETE("/menu/items/:itemId", d.Menu.DeleteItem)
	admin.POST("/menu/items/:itemId/image-upload", d.Menu.ImageUploadURL)
	admin.GET("/orders", d.Orders.ListAllOrders)
	admin.GET("/orders/:orderId", d.Orders.AdminGetOrder)
	admin.PUT("/orders/:orderId/status", d.Orders.SetOrderStatus)
}
