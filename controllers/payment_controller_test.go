package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/controllers"
	"github.com/rpr91/Malandros/middleware"
	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/services"
)

func setupPaymentRouter(svc *mockPaymentService) *gin.Engine {
	pc := controllers.NewPaymentController(svc, nil, nil, nil, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-User-ID"); id != "" {
			c.Set(middleware.UserContextKey, id)
		}
		c.Next()
	})
	r.POST("/api/create-payment-intent", pc.CreatePaymentIntent)
	r.GET("/api/orders/:orderId", pc.GetOrderStatus)
	r.POST("/api/orders/update-status", pc.UpdateOrderStatus)
	r.POST("/api/orders/fulfill", pc.FulfillOrder)
	return r
}

func postJSON(r http.Handler, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePaymentIntent_RejectsSmallAmounts(t *testing.T) {
	svc := &mockPaymentService{}
	r := setupPaymentRouter(svc)

	for _, body := range []interface{}{
		gin.H{"amount": 0.49, "currency": "usd"},
		gin.H{"amount": -5, "currency": "usd"},
		gin.H{"currency": "usd"},
	} {
		w := postJSON(r, "/api/create-payment-intent", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"Invalid payment amount"}`, w.Body.String())
	}
	assert.Empty(t, svc.methods())
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	var gotAmount int64
	svc := &mockPaymentService{
		createFn: func(_ context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, *services.ServiceError) {
			gotAmount = amount
			return &models.PaymentIntentResult{ID: "pi_x", ClientSecret: "pi_x_secret_123"}, nil
		},
	}
	r := setupPaymentRouter(svc)

	w := postJSON(r, "/api/create-payment-intent",
		gin.H{"amount": 6.50, "currency": "usd", "metadata": gin.H{"orderId": "order-1", "userId": "someone-else"}},
		map[string]string{"X-User-ID": "user-1"},
	)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"clientSecret":"pi_x_secret_123","paymentIntentId":"pi_x"}`, w.Body.String())
	assert.Equal(t, int64(650), gotAmount)
	assert.Equal(t, "user-1", svc.calls[0].Metadata["userId"])
	assert.Equal(t, "order-1", svc.calls[0].Metadata["orderId"])
}

func TestCreatePaymentIntent_ProviderError(t *testing.T) {
	svc := &mockPaymentService{
		createFn: func(context.Context, int64, string, map[string]string) (*models.PaymentIntentResult, *services.ServiceError) {
			return nil, &services.ServiceError{StatusCode: http.StatusBadGateway, Message: "Failed to create payment intent", Details: "rate limited"}
		},
	}
	w := postJSON(setupPaymentRouter(svc), "/api/create-payment-intent", gin.H{"amount": 10}, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Failed to create payment intent","details":"rate limited"}`, w.Body.String())
}

func TestGetOrderStatus(t *testing.T) {
	svc := &mockPaymentService{
		statusFn: func(_ context.Context, id string) (*models.OrderPaymentStatus, *services.ServiceError) {
			if id == "pi_down" {
				return nil, &services.ServiceError{StatusCode: http.StatusBadGateway, Message: "Failed to get payment status", Details: "timeout"}
			}
			return &models.OrderPaymentStatus{Status: "succeeded", Amount: 650, Currency: "usd", IsPaid: true, Metadata: map[string]string{"orderId": "order-1"}}, nil
		},
	}
	r := setupPaymentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/pi_x", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status models.OrderPaymentStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsPaid)
	assert.Equal(t, "order-1", status.Metadata["orderId"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/pi_down", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"Failed to get payment status","details":"timeout"}`, w.Body.String())
}

func TestUpdateStatusAndFulfil(t *testing.T) {
	svc := &mockPaymentService{}
	r := setupPaymentRouter(svc)

	w := postJSON(r, "/api/orders/update-status", gin.H{"paymentIntentId": "pi_x", "status": "completed"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/orders/fulfill", gin.H{"paymentIntentId": "pi_x"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postJSON(r, "/api/orders/update-status", gin.H{"status": "completed"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, []string{"UpdateOrderStatus", "FulfillOrder"}, svc.methods())
}
