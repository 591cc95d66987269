package services_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
	"github.com/rpr91/Malandros/services"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[string]*models.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	m.users[u.Email] = u
	return nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// memTokenRepo mirrors the conditional UPDATE of the gorm repository.
type memTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: map[string]*models.RefreshToken{}}
}

func (m *memTokenRepo) Create(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenID] = t
	return nil
}

func (m *memTokenRepo) FindByTokenID(_ context.Context, id string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokenRepo) Rotate(_ context.Context, old string, next *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[old]
	if !ok || t.ReplacedByTokenID != nil {
		return repository.ErrRefreshTokenReused
	}
	id := next.TokenID
	t.ReplacedByTokenID = &id
	m.tokens[next.TokenID] = next
	return nil
}

func (m *memTokenRepo) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok && t.ReplacedByTokenID == nil {
		r := "revoked"
		t.ReplacedByTokenID = &r
	}
	return nil
}

func (m *memTokenRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID && t.ReplacedByTokenID == nil {
			r := "revoked"
			t.ReplacedByTokenID = &r
		}
	}
	return nil
}

func (m *memTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

type authFixture struct {
	svc     services.AuthService
	users   *memUserRepo
	tokens  *memTokenRepo
	metrics *countingMetrics
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	issuer, err := services.NewTokenService("jwt-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	f := &authFixture{users: newMemUserRepo(), tokens: newMemTokenRepo(), metrics: newCountingMetrics()}
	f.svc = services.NewAuthService(f.users, f.tokens, issuer, f.metrics, zap.NewNop())
	return f
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	res, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "Ana@Example.com", Password: "tacos4life"})
	require.Nil(t, serr)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.NotEmpty(t, res.AccessToken.Token)
	assert.NotEmpty(t, res.RefreshToken.TokenID)

	stored, err := f.users.FindByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "tacos4life", stored.Password)

	_, serr = f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "x"})
	require.NotNil(t, serr)
	assert.Equal(t, "User already exists", serr.Message)

	_, serr = f.svc.Register(ctx, &services.RegisterRequest{Email: "b@example.com", Password: "x"})
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, "All fields are required", serr.Message)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	_, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)

	res, serr := f.svc.Login(ctx, &services.LoginRequest{Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)
	assert.Equal(t, "Ana", res.User.Name)

	_, serr = f.svc.Login(ctx, &services.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Equal(t, "Invalid credentials", serr.Message)

	_, serr = f.svc.Login(ctx, &services.LoginRequest{Email: "nobody@example.com", Password: "tacos4life"})
	require.NotNil(t, serr)
	assert.Equal(t, "Invalid credentials", serr.Message)

	_, serr = f.svc.Login(ctx, &services.LoginRequest{Email: "ana@example.com"})
	require.NotNil(t, serr)
	assert.Equal(t, "Email and password are required", serr.Message)
}

func TestAuthService_RefreshRotation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	first, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)

	second, serr := f.svc.Refresh(ctx, first.RefreshToken.Token)
	require.Nil(t, serr)
	assert.NotEqual(t, first.RefreshToken.TokenID, second.RefreshToken.TokenID)

	old, err := f.tokens.FindByTokenID(ctx, first.RefreshToken.TokenID)
	require.NoError(t, err)
	require.NotNil(t, old.ReplacedByTokenID)
	assert.Equal(t, second.RefreshToken.TokenID, *old.ReplacedByTokenID)

	// The superseded token has not expired but must not be honoured again.
	_, serr = f.svc.Refresh(ctx, first.RefreshToken.Token)
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Equal(t, "Invalid refresh token", serr.Message)
	assert.Equal(t, 1, f.metrics.counts[aws_pkg.MetricRefreshTokenReuse])

	// Reuse revokes the whole family, including the legitimate successor.
	_, serr = f.svc.Refresh(ctx, second.RefreshToken.Token)
	require.NotNil(t, serr)
}

func TestAuthService_RefreshErrors(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, serr := f.svc.Refresh(ctx, "")
	require.NotNil(t, serr)
	assert.Equal(t, "Refresh token required", serr.Message)

	_, serr = f.svc.Refresh(ctx, "garbage")
	require.NotNil(t, serr)
	assert.Equal(t, "Invalid refresh token", serr.Message)

	res, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)
	_, serr = f.svc.Refresh(ctx, res.AccessToken.Token)
	require.NotNil(t, serr, "access tokens cannot be exchanged")
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	res, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)

	require.Nil(t, f.svc.Logout(ctx, res.RefreshToken.Token))
	_, serr = f.svc.Refresh(ctx, res.RefreshToken.Token)
	assert.NotNil(t, serr)

	assert.Nil(t, f.svc.Logout(ctx, ""))
}

func TestAuthService_CurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	res, serr := f.svc.Register(ctx, &services.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "tacos4life"})
	require.Nil(t, serr)

	me, serr := f.svc.CurrentUser(ctx, res.User.ID)
	require.Nil(t, serr)
	assert.Equal(t, "Ana", me.Name)

	_, serr = f.svc.CurrentUser(ctx, uuid.NewString())
	require.NotNil(t, serr)
	assert.Equal(t, http.StatusNotFound, serr.StatusCode)
}

func TestStartTokenJanitor(t *testing.T) {
	tokens := newMemTokenRepo()
	require.NoError(t, tokens.Create(context.Background(), &models.RefreshToken{TokenID: "old", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, tokens.Create(context.Background(), &models.RefreshToken{TokenID: "live", ExpiresAt: time.Now().Add(time.Hour)}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		services.StartTokenJanitor(ctx, tokens, 10*time.Millisecond, zap.NewNop())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := tokens.FindByTokenID(context.Background(), "old")
		return err != nil
	}, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	_, err := tokens.FindByTokenID(context.Background(), "live")
	assert.NoError(t, err)
}
