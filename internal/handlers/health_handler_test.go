package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_GetHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get").Return(nil)

		ctx := setupTestContext("GET", "/api/v1/health", nil)
		NewHealthHandler(svc).GetHealth(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.JSONEq(t, `{"status":"healthy"}`, string(ctx.Response.Body()))
	})

	t.Run("dependency down", func(t *testing.T) {
		svc := new(MockHealthService)
		svc.On("Get").Return(errors.New("redis: connection refused"))

		ctx := setupTestContext("GET", "/api/v1/health", nil)
		NewHealthHandler(svc).GetHealth(ctx)

		assert.Equal(t, 503, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "redis")
	})
}
