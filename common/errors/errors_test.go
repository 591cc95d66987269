package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestErrorWrapping(t *testing.T) {
	cause := stderrors.New("boom")
	err := fmt.Errorf("create order: %w", Wrap(ErrNotFound, cause))

	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.True(t, stderrors.Is(err, cause))
	assert.False(t, stderrors.Is(err, ErrForbidden))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(cause))
	assert.Equal(t, "Not found: boom", Wrap(ErrNotFound, cause).Error())
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("renders application error", func(t *testing.T) {
		r := gin.New()
		r.Use(ErrorMiddleware())
		r.GET("/", func(c *gin.Context) { _ = c.Error(ErrAdminRequired) })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Forbidden: Admin access required"}`, rec.Body.String())
	})

	t.Run("hides unknown errors", func(t *testing.T) {
		r := gin.New()
		r.Use(ErrorMiddleware())
		r.GET("/", func(c *gin.Context) { _ = c.Error(stderrors.New("pq: connection refused")) })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "pq:")
	})

	t.Run("leaves written responses alone", func(t *testing.T) {
		r := gin.New()
		r.Use(ErrorMiddleware())
		r.GET("/", func(c *gin.Context) {
			_ = c.Error(ErrNotFound)
			c.JSON(http.StatusTeapot, gin.H{"ok": true})
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}
