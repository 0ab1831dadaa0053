package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/latemark-go-api/internal/utils"
)

// Locals keys populated by JWTProtected. The ledger treats all of these as
// untrusted display data; they are stored only as a provenance snapshot.
const (
	LocalActorID    = "actor_id"
	LocalActorName  = "actor_name"
	LocalActorEmail = "actor_email"
	LocalActorRole  = "actor_role"
)

// JWTProtected returns a middleware that validates JWT bearer tokens issued
// by the authentication collaborator and exposes the actor snapshot.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		if id := claimString(claims, "sub", "user_id", "id"); id != "" {
			c.Locals(LocalActorID, id)
		}
		if name := claimString(claims, "name"); name != "" {
			c.Locals(LocalActorName, name)
		}
		if email := claimString(claims, "email"); email != "" {
			c.Locals(LocalActorEmail, email)
		}
		if role := claimString(claims, "role"); role != "" {
			c.Locals(LocalActorRole, strings.ToLower(role))
		}

		return c.Next()
	}
}

func claimString(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strings.TrimSpace(fmt.Sprintf("%.0f", v))
		}
	}
	return ""
}
