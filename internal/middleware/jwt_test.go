package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sujet-portal-api/internal/middleware"
)

const jwtSecret = "middleware-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func newJWTApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(jwtSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    c.Locals("user_id"),
			"role":  c.Locals("user_role"),
			"email": c.Locals("user_email"),
		})
	})
	return app
}

func TestJWTProtectedPopulatesLocals(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), jwt.MapClaims{
		"sub":   "42",
		"email": "Alice@Example.com",
		"role":  "Student",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := newJWTApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		ID    uint   `json:"id"`
		Role  string `json:"role"`
		Email string `json:"email"`
	}
	decodeJSON(t, resp, &payload)
	require.Equal(t, uint(42), payload.ID)
	require.Equal(t, "student", payload.Role)
	require.Equal(t, "alice@example.com", payload.Email)
}

func TestJWTProtectedRejectsInvalidTokens(t *testing.T) {
	valid := jwt.MapClaims{"sub": "1", "role": "student", "exp": time.Now().Add(time.Hour).Unix()}
	expired := jwt.MapClaims{"sub": "1", "role": "student", "exp": time.Now().Add(-time.Hour).Unix()}
	noExpiry := jwt.MapClaims{"sub": "1", "role": "student"}

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"empty bearer":   "Bearer ",
		"wrong secret":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), valid),
		"expired":        "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), expired),
		"no expiry":      "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), noExpiry),
		"wrong method":   "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(jwtSecret), valid),
		"zero subject":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), jwt.MapClaims{"sub": "0", "role": "student", "exp": time.Now().Add(time.Hour).Unix()}),
		"text subject":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), jwt.MapClaims{"sub": "alice", "role": "student", "exp": time.Now().Add(time.Hour).Unix()}),
		"missing role":   "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(jwtSecret), jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := newJWTApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func decodeJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
