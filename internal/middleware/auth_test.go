package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/oakline/internal/config"
	"github.com/example/oakline/internal/models"
	"github.com/example/oakline/internal/utils"
)

func newAuthApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthMiddleware(cfg), func(c *fiber.Ctx) error {
		id, ok := GetCurrentUserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusInternalServerError, "missing user in context")
		}
		return c.JSON(fiber.Map{"id": id, "role": GetCurrentUserRole(c)})
	})
	app.Get("/admin", AuthMiddleware(cfg), AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	app := newAuthApp(cfg)

	token, err := utils.GenerateToken(cfg.JWTSecret, uuid.New(), models.RoleCustomer, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"not bearer", "Basic abc", fiber.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestAuthMiddlewareRejectsForeignSecret(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	app := newAuthApp(cfg)

	forged, err := utils.GenerateToken("other-secret", uuid.New(), models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminOnly(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	app := newAuthApp(cfg)

	customerToken, err := utils.GenerateToken(cfg.JWTSecret, uuid.New(), models.RoleCustomer, time.Hour)
	require.NoError(t, err)
	adminToken, err := utils.GenerateToken(cfg.JWTSecret, uuid.New(), models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
