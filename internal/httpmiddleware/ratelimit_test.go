package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllowExhaustsAndRefills(t *testing.T) {
	l := NewTokenBucket(3, 60)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.Truef(t, l.allow("1.2.3.4", now), "request %d within capacity", i+1)
	}
	assert.False(t, l.allow("1.2.3.4", now), "capacity exhausted")

	// one token per second at 60/min
	assert.True(t, l.allow("1.2.3.4", now.Add(time.Second)))
	assert.False(t, l.allow("1.2.3.4", now.Add(time.Second)))
}

func TestAllowIsPerKey(t *testing.T) {
	l := NewTokenBucket(1, 60)
	now := time.Now()

	assert.True(t, l.allow("1.2.3.4", now))
	assert.False(t, l.allow("1.2.3.4", now))
	assert.True(t, l.allow("5.6.7.8", now), "a busy client must not starve others")
}

func TestRefillCapsAtCapacity(t *testing.T) {
	l := NewTokenBucket(2, 60)
	now := time.Now()

	assert.True(t, l.allow("1.2.3.4", now))
	later := now.Add(time.Hour)
	assert.True(t, l.allow("1.2.3.4", later))
	assert.True(t, l.allow("1.2.3.4", later))
	assert.False(t, l.allow("1.2.3.4", later))
}

func TestMiddlewareRejectsWith429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewTokenBucket(1, 1).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
