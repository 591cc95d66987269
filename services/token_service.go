package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails parsing, signature,
// expiry or type checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenService creates and validates the HS256 session JWTs.
type TokenService struct {
	secretKey  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &TokenService{
		secretKey:  []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// GenerateAccessToken signs a short-lived access token for the user.
func (s *TokenService) GenerateAccessToken(userID, email, role string) (*IssuedToken, error) {
	return s.generateToken(userID, email, role, tokenTypeAccess, s.accessTTL, "")
}

// GenerateRefreshToken signs a refresh token carrying a fresh jti.
func (s *TokenService) GenerateRefreshToken(userID, email, role string) (*IssuedToken, error) {
	return s.generateToken(userID, email, role, tokenTypeRefresh, s.refreshTTL, uuid.NewString())
}

// ValidateToken parses tokenStr and checks that its typ claim is expectedType.
func (s *TokenService) ValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	parser := jwt.Parser{}
	token, err := parser.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
		return nil, ErrInvalidToken
	}
	if sub, ok := claims["sub"].(string); !ok || sub == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccessToken validates an access token. Refresh tokens are rejected.
func (s *TokenService) ValidateAccessToken(tokenStr string) (jwt.MapClaims, error) {
	return s.ValidateToken(tokenStr, tokenTypeAccess)
}

func (s *TokenService) generateToken(userID, email, role, tokenType string, duration time.Duration, tokenID string) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(duration)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"typ":   tokenType,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}
	if tokenID != "" {
		claims["jti"] = tokenID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return &IssuedToken{Token: signed, TokenID: tokenID, ExpiresAt: expiresAt}, nil
}
