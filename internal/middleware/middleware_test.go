package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	verifier, err := auth.NewSecretVerifier(testSecret)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, notes.ErrAuthentication) {
				return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
			}
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		},
	})
	app.Use(requestid.New(), CorrelateRequest())
	app.Use(ValidateAccessToken(verifier, "access_token"))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		who := Identity(c)
		return c.JSON(fiber.Map{
			"user":       who.UserID().String(),
			"role":       who.Role(),
			"request_id": notes.RequestID(c.UserContext()),
		})
	})
	return app
}

func issue(t *testing.T, user uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.IssueToken(testSecret, user, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestBearerHeader(t *testing.T) {
	app := newApp(t)
	user := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+issue(t, user, notes.RoleAdmin))
	req.Header.Set(fiber.HeaderXRequestID, "req-42")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	assert.Equal(t, user.String(), body["user"])
	assert.Equal(t, notes.RoleAdmin, body["role"])
	assert.Equal(t, "req-42", body["request_id"])
}

func TestCookieFallback(t *testing.T) {
	app := newApp(t)
	user := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: issue(t, user, "")})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	assert.Equal(t, user.String(), body["user"])
	assert.Equal(t, notes.RoleUser, body["role"])
}

func TestRejectedTokens(t *testing.T) {
	app := newApp(t)
	expired, err := auth.IssueToken(testSecret, uuid.New(), "", -time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":   "",
		"malformed": "Token abc",
		"garbage":   "Bearer abc.def.ghi",
		"expired":   "Bearer " + expired,
		"bad role":  "Bearer " + issue(t, uuid.New(), "superuser"),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set(fiber.HeaderAuthorization, header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}
