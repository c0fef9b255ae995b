package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/keithshino/accountUnlock/app/services"
	"github.com/keithshino/accountUnlock/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareTokenService(t *testing.T) services.TokenService {
	t.Helper()
	ts, err := services.NewTokenService(
		time.Hour,
		24*time.Hour,
		"account-unlock-desk",
		"account-unlock-desk-api",
		false,
		"", "",
		"test-secret-key-with-at-least-32-characters",
	)
	require.NoError(t, err)
	return ts
}

// echoedActor mirrors the locals a handler reads after Authenticate ran
type echoedActor struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func newEchoApp(m *AuthMiddleware) *fiber.App {
	app := fiber.New()
	app.Get("/whoami", m.Authenticate(), func(c fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(uint)
		email, _ := c.Locals("user_email").(string)
		role, _ := c.Locals("user_role").(string)
		return c.JSON(echoedActor{UserID: userID, Email: email, Role: role})
	})
	app.Get("/support-only", m.Authenticate(), m.RequireSupport(), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAuthenticateSetsActorLocals(t *testing.T) {
	ts := newMiddlewareTokenService(t)
	app := newEchoApp(NewAuthMiddleware(ts))

	accessToken, _, err := ts.GenerateTokens(42, "staff@example.co.jp", models.RoleSupport)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var actor echoedActor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&actor))
	assert.Equal(t, uint(42), actor.UserID)
	assert.Equal(t, "staff@example.co.jp", actor.Email)
	assert.Equal(t, models.RoleSupport, actor.Role)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	ts := newMiddlewareTokenService(t)
	app := newEchoApp(NewAuthMiddleware(ts))

	t.Run("MissingHeader", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("NotBearer", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Basic abc123")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("RefreshTokenRejected", func(t *testing.T) {
		_, refreshToken, err := ts.GenerateTokens(7, "user@example.com", models.RoleClient)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestRequireSupportGate(t *testing.T) {
	ts := newMiddlewareTokenService(t)
	app := newEchoApp(NewAuthMiddleware(ts))

	t.Run("ClientForbidden", func(t *testing.T) {
		accessToken, _, err := ts.GenerateTokens(7, "user@example.com", models.RoleClient)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/support-only", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("SupportAllowed", func(t *testing.T) {
		accessToken, _, err := ts.GenerateTokens(8, "staff@example.co.jp", models.RoleSupport)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/support-only", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}
