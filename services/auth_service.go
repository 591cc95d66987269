package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rpr91/Malandros/models"
	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/repository"
)

// AuthResult is what a successful register, login or refresh hands back to
// the controller: the public user and both signed tokens.
type AuthResult struct {
	User         models.PublicUser
	AccessToken  *IssuedToken
	RefreshToken *IssuedToken
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService defines account and session operations.
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResult, *ServiceError)
	Login(ctx context.Context, req *LoginRequest) (*AuthResult, *ServiceError)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, *ServiceError)
	Logout(ctx context.Context, refreshToken string) *ServiceError
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, *ServiceError)
}

type authServiceImpl struct {
	users   repository.UserRepository
	tokens  repository.RefreshTokenRepository
	issuer  *TokenService
	metrics aws_pkg.MetricsRecorder
	logger  *zap.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	issuer *TokenService,
	metrics aws_pkg.MetricsRecorder,
	logger *zap.Logger,
) AuthService {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	return &authServiceImpl{users: users, tokens: tokens, issuer: issuer, metrics: metrics, logger: logger}
}

var errInvalidRefresh = &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Invalid refresh token"}

func (s *authServiceImpl) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, *ServiceError) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, badRequest("All fields are required")
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, badRequest("User already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, internal("Failed to register user")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, internal("Failed to register user")
	}

	user := &models.User{
		ID:       uuid.New(),
		Email:    email,
		Name:     name,
		Password: string(hashed),
		Role:     "user",
	}
	if err := s.users.Create(ctx, user); err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
			return nil, badRequest("User already exists")
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, internal("Failed to register user")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return s.issue(ctx, user)
}

func (s *authServiceImpl) Login(ctx context.Context, req *LoginRequest) (*AuthResult, *ServiceError) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, badRequest("Email and password are required")
	}

	invalid := &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to look up user", zap.Error(err))
			return nil, internal("Failed to log in")
		}
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, invalid
	}

	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token is
// honoured once; presenting a consumed token revokes every live token of
// its owner.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*AuthResult, *ServiceError) {
	if refreshToken == "" {
		return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Refresh token required"}
	}

	claims, err := s.issuer.ValidateToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, errInvalidRefresh
	}
	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return nil, errInvalidRefresh
	}

	stored, err := s.tokens.FindByTokenID(ctx, tokenID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("Failed to load refresh token", zap.Error(err))
			return nil, internal("Failed to refresh session")
		}
		return nil, errInvalidRefresh
	}
	if stored.ReplacedByTokenID != nil {
		s.handleReuse(ctx, stored.UserID)
		return nil, errInvalidRefresh
	}
	if !stored.Usable(time.Now()) {
		return nil, errInvalidRefresh
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return nil, errInvalidRefresh
	}

	access, next, serr := s.signPair(user)
	if serr != nil {
		return nil, serr
	}

	err = s.tokens.Rotate(ctx, tokenID, &models.RefreshToken{
		TokenID:   next.TokenID,
		UserID:    user.ID,
		ExpiresAt: next.ExpiresAt,
	})
	if errors.Is(err, repository.ErrRefreshTokenReused) {
		// Lost a race with another exchange of the same token.
		s.handleReuse(ctx, stored.UserID)
		return nil, errInvalidRefresh
	}
	if err != nil {
		s.logger.Error("Failed to rotate refresh token", zap.Error(err))
		return nil, internal("Failed to refresh session")
	}

	return &AuthResult{User: user.Public(), AccessToken: access, RefreshToken: next}, nil
}

func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) *ServiceError {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.issuer.ValidateToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil
	}
	tokenID, _ := claims["jti"].(string)
	if tokenID == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		s.logger.Error("Failed to revoke refresh token", zap.Error(err))
		return internal("Failed to log out")
	}
	return nil
}

func (s *authServiceImpl) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, *ServiceError) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, &ServiceError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("User not found")
		}
		s.logger.Error("Failed to load user", zap.Error(err))
		return nil, internal("Failed to load user")
	}
	public := user.Public()
	return &public, nil
}

func (s *authServiceImpl) issue(ctx context.Context, user *models.User) (*AuthResult, *ServiceError) {
	access, refresh, serr := s.signPair(user)
	if serr != nil {
		return nil, serr
	}
	if err := s.tokens.Create(ctx, &models.RefreshToken{
		TokenID:   refresh.TokenID,
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		s.logger.Error("Failed to store refresh token", zap.Error(err))
		return nil, internal("Failed to create session")
	}
	return &AuthResult{User: user.Public(), AccessToken: access, RefreshToken: refresh}, nil
}

func (s *authServiceImpl) signPair(user *models.User) (*IssuedToken, *IssuedToken, *ServiceError) {
	access, err := s.issuer.GenerateAccessToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return nil, nil, internal("Failed to create session")
	}
	refresh, err := s.issuer.GenerateRefreshToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		s.logger.Error("Failed to sign refresh token", zap.Error(err))
		return nil, nil, internal("Failed to create session")
	}
	return access, refresh, nil
}

func (s *authServiceImpl) handleReuse(ctx context.Context, userID uuid.UUID) {
	s.logger.Warn("Refresh token reuse detected, revoking sessions", zap.String("user_id", userID.String()))
	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricRefreshTokenReuse, nil)
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Error("Failed to revoke sessions", zap.Error(err))
	}
}

// StartTokenJanitor deletes expired refresh tokens every interval until ctx
// is cancelled.
func StartTokenJanitor(ctx context.Context, tokens repository.RefreshTokenRepository, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, time.Now())
			if err != nil {
				logger.Warn("Failed to purge expired refresh tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("Purged expired refresh tokens", zap.Int64("count", n))
			}
		}
	}
}
