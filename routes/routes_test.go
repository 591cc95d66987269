package routes_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/controllers"
	"github.com/rpr91/Malandros/middleware"
	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/pkg/csrf"
	"github.com/rpr91/Malandros/routes"
	"github.com/rpr91/Malandros/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubMenu struct{ services.MenuService }

func (stubMenu) ItemsByCategory(_ context.Context, category string) ([]models.MenuItem, *services.ServiceError) {
	if category == "tacos" {
		return []models.MenuItem{{ID: "a", Name: "Al Pastor Taco", Price: 3.5, Category: "tacos", Available: true}}, nil
	}
	return nil, &services.ServiceError{StatusCode: http.StatusNotFound, Message: "No items found in this category"}
}

type stubCart struct {
	services.CartService
	owners []string
}

func (s *stubCart) GetCart(_ context.Context, userID string) (*models.CartView, *services.ServiceError) {
	s.owners = append(s.owners, userID)
	return &models.CartView{Items: []models.CartItem{}}, nil
}

func (s *stubCart) AddItem(_ context.Context, userID string, req *models.AddCartItemRequest) (*models.CartView, *services.ServiceError) {
	s.owners = append(s.owners, userID)
	item := models.CartItem{ItemID: req.ItemID, Name: "Al Pastor Taco", Price: 3.5, Quantity: req.Quantity}
	return &models.CartView{Items: []models.CartItem{item}, Total: 3.5 * float64(req.Quantity)}, nil
}

type stubOrders struct{ services.OrderService }

type stubPayments struct {
	services.PaymentService
	updates int
}

func (s *stubPayments) UpdateOrderStatus(context.Context, string, string, map[string]string) *services.ServiceError {
	s.updates++
	return nil
}

type stubTokens struct{}

func (stubTokens) ValidateAccessToken(string) (jwt.MapClaims, error) {
	return nil, errors.New("no sessions in this test")
}

type harness struct {
	router   *gin.Engine
	cart     *stubCart
	payments *stubPayments
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gen, err := csrf.NewGenerator("route-secret")
	require.NoError(t, err)

	h := &harness{cart: &stubCart{}, payments: &stubPayments{}}
	logger := zap.NewNop()
	h.router = gin.New()
	routes.RegisterRoutes(h.router, routes.Dependencies{
		Auth:        controllers.NewAuthController(nil, false, logger),
		Payments:    controllers.NewPaymentController(h.payments, services.NewStripeService("sk_test_123", "whsec_routes"), nil, aws_pkg.NopMetrics{}, logger),
		Menu:        controllers.NewMenuController(stubMenu{}),
		Cart:        controllers.NewCartController(h.cart),
		Orders:      controllers.NewOrderController(stubOrders{}),
		CSRF:        middleware.CSRFProtection(gen, middleware.CSRFOptions{}, logger),
		Tokens:      stubTokens{},
		AdminKey:    "admin-key",
		ServiceName: "storefront",
		Logger:      logger,
	})
	return h
}

func (h *harness) do(method, path string, body []byte, setup func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","service":"storefront"}`, w.Body.String())
}

func TestCartRequiresCSRFOnMutation(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"itemId":"a","quantity":2}`)

	w := h.do(http.MethodPost, "/api/v1/cart", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, h.cart.owners)

	w = h.do(http.MethodGet, "/api/v1/cart", nil, func(r *http.Request) { r.Header.Set("X-User-ID", "table-7") })
	require.Equal(t, http.StatusOK, w.Code)
	var token *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == csrf.CookieName {
			token = c
		}
	}
	require.NotNil(t, token)

	w = h.do(http.MethodPost, "/api/v1/cart", body, func(r *http.Request) {
		r.Header.Set("X-User-ID", "table-7")
		r.Header.Set(csrf.HeaderName, token.Value)
		r.AddCookie(token)
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Item added to cart","data":{"items":[{"itemId":"a","name":"Al Pastor Taco","price":3.5,"quantity":2}],"total":7}}`, w.Body.String())
	assert.Equal(t, []string{"table-7", "table-7"}, h.cart.owners)
}

func TestGuestCartOwner(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/api/v1/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{middleware.GuestUserID}, h.cart.owners)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/admin/check", nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden: Admin access required"}`, w.Body.String())

	w = h.do(http.MethodGet, "/api/v1/admin/check", nil, func(r *http.Request) { r.Header.Set(middleware.AdminKeyHeader, "admin-key") })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdmin":true`)

	w = h.do(http.MethodPost, "/api/orders/update-status", []byte(`{"paymentIntentId":"pi_x","status":"completed"}`), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, h.payments.updates)

	w = h.do(http.MethodPost, "/api/orders/update-status", []byte(`{"paymentIntentId":"pi_x","status":"completed"}`), func(r *http.Request) {
		r.Header.Set(middleware.AdminKeyHeader, "admin-key")
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, h.payments.updates)
}

func TestWebhookIsExemptFromCSRF(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/webhooks", []byte(`{}`), func(r *http.Request) {
		r.Header.Set("Stripe-Signature", "t=1,v1=bad")
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Webhook Error:")
}

func TestMenuCategoryEnvelope(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/v1/menu/categories/tacos", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = h.do(http.MethodGet, "/api/v1/menu/categories/desserts", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"No items found in this category"}`, w.Body.String())
}
