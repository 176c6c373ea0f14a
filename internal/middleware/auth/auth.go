// Package auth resolves the calling user. Every document, prediction and
// training route requires a bearer token; the subject claim becomes the
// owner id for the request.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/gradelens/backend/pkg/logger"
)

const OwnerIDKey = "owner_id"

type Config struct {
	JWTSecret string
}

// Middleware validates the Authorization header and stores the owner id in
// request locals. Missing or invalid tokens are rejected with 401 before
// any handler runs.
func Middleware(cfg Config) fiber.Handler {
	secret := []byte(cfg.JWTSecret)

	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return unauthorized(c, "missing authorization header")
		}

		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			return unauthorized(c, "authorization header must be a bearer token")
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			logger.Warn("Token validation failed", zap.String("path", c.Path()), zap.Error(err))
			return unauthorized(c, "invalid token")
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			return unauthorized(c, "token has no subject")
		}

		c.Locals(OwnerIDKey, sub)
		return c.Next()
	}
}

// OwnerID returns the authenticated owner for the request, or "" if the
// route skipped auth.
func OwnerID(c *fiber.Ctx) string {
	if v, ok := c.Locals(OwnerIDKey).(string); ok {
		return v
	}
	return ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}
