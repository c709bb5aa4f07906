package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"healthvault/internal/sharetoken"
)

// OwnerIDLocalKey is the key used to store the authenticated owner in Fiber's context locals.
const OwnerIDLocalKey = "owner_id"

// RequireOwner validates a Bearer JWT issued by the account service and stores
// its subject under OwnerIDLocalKey. Share tokens are refused here even when
// signed with the same secret.
func RequireOwner(jwtSecret string) fiber.Handler {
	key := []byte(jwtSecret)
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return key, nil
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization header required")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header format")
		}

		token, err := jwt.Parse(parts[1], keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token claims")
		}
		if typ, _ := claims["typ"].(string); typ == sharetoken.TokenType {
			return fiber.NewError(fiber.StatusUnauthorized, "share tokens cannot act as owner")
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token has no subject")
		}

		c.Locals(OwnerIDLocalKey, sub)
		return c.Next()
	}
}

// OwnerID returns the owner stored by RequireOwner, or "".
func OwnerID(c *fiber.Ctx) string {
	id, _ := c.Locals(OwnerIDLocalKey).(string)
	return id
}
