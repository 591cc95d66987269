package controllers_test

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- Mock PaymentService ---

type paymentCall struct {
	Method          string
	PaymentIntentID string
	Status          string
	Metadata        map[string]string
}

type mockPaymentService struct {
	mu       sync.Mutex
	calls    []paymentCall
	createFn func(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, *services.ServiceError)
	updateFn func(ctx context.Context, paymentIntentID, status string, metadata map[string]string) *services.ServiceError
	statusFn func(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, *services.ServiceError)
	fulfilFn func(ctx context.Context, paymentIntentID string, metadata map[string]string) *services.ServiceError
}

func (m *mockPaymentService) record(call paymentCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockPaymentService) methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.Method)
	}
	return out
}

func (m *mockPaymentService) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, *services.ServiceError) {
	m.record(paymentCall{Method: "CreatePaymentIntent", Metadata: metadata})
	return m.createFn(ctx, amount, currency, metadata)
}

func (m *mockPaymentService) UpdateOrderStatus(ctx context.Context, paymentIntentID, status string, metadata map[string]string) *services.ServiceError {
	m.record(paymentCall{Method: "UpdateOrderStatus", PaymentIntentID: paymentIntentID, Status: status, Metadata: metadata})
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, paymentIntentID, status, metadata)
}

func (m *mockPaymentService) GetOrderPaymentStatus(ctx context.Context, paymentIntentID string) (*models.OrderPaymentStatus, *services.ServiceError) {
	m.record(paymentCall{Method: "GetOrderPaymentStatus", PaymentIntentID: paymentIntentID})
	return m.statusFn(ctx, paymentIntentID)
}

func (m *mockPaymentService) FulfillOrder(ctx context.Context, paymentIntentID string, metadata map[string]string) *services.ServiceError {
	m.record(paymentCall{Method: "FulfillOrder", PaymentIntentID: paymentIntentID, Metadata: metadata})
	if m.fulfilFn == nil {
		return nil
	}
	return m.fulfilFn(ctx, paymentIntentID, metadata)
}

// --- Mock AuthService ---

type mockAuthService struct {
	registerFn func(ctx context.Context, req *services.RegisterRequest) (*services.AuthResult, *services.ServiceError)
	loginFn    func(ctx context.Context, req *services.LoginRequest) (*services.AuthResult, *services.ServiceError)
	refreshFn  func(ctx context.Context, token string) (*services.AuthResult, *services.ServiceError)
	logoutFn   func(ctx context.Context, token string) *services.ServiceError
	currentFn  func(ctx context.Context, userID string) (*models.PublicUser, *services.ServiceError)
}

func (m *mockAuthService) Register(ctx context.Context, req *services.RegisterRequest) (*services.AuthResult, *services.ServiceError) {
	return m.registerFn(ctx, req)
}
func (m *mockAuthService) Login(ctx context.Context, req *services.LoginRequest) (*services.AuthResult, *services.ServiceError) {
	return m.loginFn(ctx, req)
}
func (m *mockAuthService) Refresh(ctx context.Context, token string) (*services.AuthResult, *services.ServiceError) {
	return m.refreshFn(ctx, token)
}
func (m *mockAuthService) Logout(ctx context.Context, token string) *services.ServiceError {
	return m.logoutFn(ctx, token)
}
func (m *mockAuthService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, *services.ServiceError) {
	return m.currentFn(ctx, userID)
}

// --- Metrics ---

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

var _ aws_pkg.MetricsRecorder = (*countingMetrics)(nil)
