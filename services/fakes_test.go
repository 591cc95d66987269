package services_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/rpr91/Malandros/models"
	"github.com/rpr91/Malandros/repository"
)

// --- Orders ---

type memOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]*models.Order
	findErr error
	updErr  error
	updates int
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (m *memOrderRepo) put(o *models.Order) *models.Order {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.orders[o.ID] = o
	return o
}

func (m *memOrderRepo) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.CreatedAt = time.Now()
	m.put(o)
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) FindByIDAndUserID(ctx context.Context, id uuid.UUID, userID string) (*models.Order, error) {
	o, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) FindByUserID(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) FindByPaymentIntentID(_ context.Context, pi string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, o := range m.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == pi {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memOrderRepo) Updates(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updErr != nil {
		return m.updErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.updates++
	for k, v := range fields {
		switch k {
		case "status":
			o.Status = v.(string)
		case "payment_status":
			o.PaymentStatus = v.(string)
		case "payment_intent_id":
			pi := v.(string)
			o.PaymentIntentID = &pi
		case "payment_metadata":
			var md map[string]string
			_ = json.Unmarshal([]byte(v.(string)), &md)
			o.PaymentMetadata = md
		case "fulfillment_status":
			o.FulfillmentStatus = v.(string)
		case "fulfillment_requested_at":
			t := v.(time.Time)
			o.FulfillmentRequestedAt = &t
		case "completed_at":
			t := v.(time.Time)
			o.CompletedAt = &t
		case "cancelled_at":
			t := v.(time.Time)
			o.CancelledAt = &t
		}
	}
	return nil
}

func (m *memOrderRepo) get(id uuid.UUID) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

// --- Menu ---

type memMenuRepo struct {
	items map[string]*models.MenuItem
	err   error
}

func newMemMenuRepo(items ...models.MenuItem) *memMenuRepo {
	m := &memMenuRepo{items: make(map[string]*models.MenuItem)}
	for i := range items {
		it := items[i]
		m.items[it.ID] = &it
	}
	return m
}

func (m *memMenuRepo) FindAvailable(_ context.Context) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, it := range m.items {
		if it.Available {
			out = append(out, *it)
		}
	}
	return out, m.err
}

func (m *memMenuRepo) FindByCategory(_ context.Context, category string) ([]models.MenuItem, error) {
	var out []models.MenuItem
	for _, it := range m.items {
		if it.Available && it.Category == category {
			out = append(out, *it)
		}
	}
	return out, m.err
}

func (m *memMenuRepo) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, it := range m.items {
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	sort.Strings(out)
	return out, m.err
}

func (m *memMenuRepo) FindByID(_ context.Context, id string) (*models.MenuItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *memMenuRepo) Create(_ context.Context, item *models.MenuItem) error {
	m.items[item.ID] = item
	return m.err
}

func (m *memMenuRepo) Update(_ context.Context, id string, fields bson.M) (*models.MenuItem, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v, ok := fields["price"].(float64); ok {
		it.Price = v
	}
	if v, ok := fields["name"].(string); ok {
		it.Name = v
	}
	if v, ok := fields["available"].(bool); ok {
		it.Available = v
	}
	cp := *it
	return &cp, nil
}

func (m *memMenuRepo) SoftDelete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// --- Carts ---

type memCartRepo struct {
	mu      sync.Mutex
	carts   map[string]models.Cart
	deleted []string
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]models.Cart)}
}

func (m *memCartRepo) GetCart(_ context.Context, userID string) (*models.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	c.Items = append([]models.CartItem(nil), c.Items...)
	return &c, nil
}

func (m *memCartRepo) SaveCart(_ context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[cart.UserID] = *cart
	return nil
}

func (m *memCartRepo) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

// --- SNS ---

type mockSNSPublisher struct {
	mu        sync.Mutex
	published []string
	bodies    [][]byte
}

func (m *mockSNSPublisher) Publish(_ context.Context, _ string, eventType string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, eventType)
	m.bodies = append(m.bodies, message)
	return nil
}

// --- Metrics ---

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{counts: map[string]int{}}
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

// --- Payment provider ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (*models.PaymentIntentResult, error) {
	args := m.Called(ctx, amount, currency, metadata)
	if r, ok := args.Get(0).(*models.PaymentIntentResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProvider) GetPaymentIntent(ctx context.Context, id string) (*models.PaymentIntentResult, error) {
	args := m.Called(ctx, id)
	if r, ok := args.Get(0).(*models.PaymentIntentResult); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
