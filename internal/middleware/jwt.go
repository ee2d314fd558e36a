package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sujet-portal-api/internal/utils"
)

// TokenClaims is the payload of the access tokens issued at login. The
// subject holds the decimal user id.
type TokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

var errMalformedSubject = errors.New("subject is not a user id")

// JWTProtected validates the HS256 bearer token and exposes the caller as the
// user_id (uint), user_role and user_email locals.
func JWTProtected(secret string) fiber.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, "en-tête Authorization manquant ou invalide", nil)
		}

		claims := &TokenClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		}); err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "jeton invalide", nil)
		}

		userID, err := subjectID(claims.Subject)
		role := strings.ToLower(strings.TrimSpace(claims.Role))
		if err != nil || role == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "jeton invalide", nil)
		}

		c.Locals("user_id", userID)
		c.Locals("user_role", role)
		if email := strings.ToLower(strings.TrimSpace(claims.Email)); email != "" {
			c.Locals("user_email", email)
		}

		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func subjectID(subject string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(subject), 10, 64)
	if err != nil || id == 0 {
		return 0, errMalformedSubject
	}
	return uint(id), nil
}
