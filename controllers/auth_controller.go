package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rpr91/Malandros/middleware"
	"github.com/rpr91/Malandros/services"
)

// AuthController serves /api/auth. Session tokens travel as HttpOnly cookies;
// the access token is also returned in the body for bearer clients.
type AuthController struct {
	auth          services.AuthService
	secureCookies bool
	logger        *zap.Logger
}

func NewAuthController(auth services.AuthService, secureCookies bool, logger *zap.Logger) *AuthController {
	return &AuthController{auth: auth, secureCookies: secureCookies, logger: logger}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// CSRF handles GET /api/auth/csrf. The token itself is minted by the CSRF
// middleware, which primes a token on every GET.
func (ac *AuthController) CSRF(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"csrfToken": middleware.CSRFToken(c)})
}

// Register handles POST /api/auth/register.
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	result, svcErr := ac.auth.Register(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	ac.setSessionCookies(c, result)
	c.JSON(http.StatusCreated, sessionBody(result))
}

// Login handles POST /api/auth/login.
func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	result, svcErr := ac.auth.Login(c.Request.Context(), &req)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}

	ac.setSessionCookies(c, result)
	c.JSON(http.StatusOK, sessionBody(result))
}

// Refresh handles POST /api/auth/refresh. The refresh cookie is preferred;
// non-browser clients may send {"refreshToken": ...}.
func (ac *AuthController) Refresh(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if token == "" {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}

	result, svcErr := ac.auth.Refresh(c.Request.Context(), token)
	if svcErr != nil {
		if svcErr.StatusCode == http.StatusUnauthorized {
			ac.clearSessionCookies(c)
		}
		respondError(c, svcErr)
		return
	}

	ac.setSessionCookies(c, result)
	c.JSON(http.StatusOK, sessionBody(result))
}

// Logout handles POST /api/auth/logout. Cookies are cleared even when the
// stored token could not be revoked.
func (ac *AuthController) Logout(c *gin.Context) {
	token, _ := c.Cookie(middleware.RefreshTokenCookie)
	if svcErr := ac.auth.Logout(c.Request.Context(), token); svcErr != nil {
		ac.logger.Warn("Logout could not revoke refresh token", zap.String("error", svcErr.Message))
	}

	ac.clearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Me handles GET /api/auth/me.
func (ac *AuthController) Me(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	user, svcErr := ac.auth.CurrentUser(c.Request.Context(), userID)
	if svcErr != nil {
		respondError(c, svcErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func sessionBody(result *services.AuthResult) gin.H {
	return gin.H{
		"success":           true,
		"user":              result.User,
		"accessToken":       result.AccessToken.Token,
		"accessTokenExpiry": result.AccessToken.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func (ac *AuthController) setSessionCookies(c *gin.Context, result *services.AuthResult) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, result.AccessToken.Token, maxAge(result.AccessToken.ExpiresAt), "/", "", ac.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, result.RefreshToken.Token, maxAge(result.RefreshToken.ExpiresAt), "/api/auth", "", ac.secureCookies, true)
}

func (ac *AuthController) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", ac.secureCookies, true)
	c.SetCookie(middleware.RefreshTokenCookie, "", -1, "/api/auth", "", ac.secureCookies, true)
}

func maxAge(expiresAt time.Time) int {
	secs := int(time.Until(expiresAt).Seconds())
	if secs < 1 {
		return -1
	}
	return secs
}
