// Package middleware provides request-scoped Fiber middleware: authentication,
// structured logging, rate limiting and tracing.
package middleware

import (
	"context"
	"errors"
	"log/slog"

	"agora/internal/auth"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AuthMode states how a route group treats the bearer token.
type AuthMode int

const (
	// AuthNone ignores credentials entirely.
	AuthNone AuthMode = iota
	// AuthOptional resolves a subject when a token is present; anonymous otherwise.
	AuthOptional
	// AuthRequired rejects requests without a valid token.
	AuthRequired
)

func (m AuthMode) String() string {
	switch m {
	case AuthOptional:
		return "optional"
	case AuthRequired:
		return "required"
	default:
		return "none"
	}
}

// TokenVerifier extracts claims from a bearer token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker func(ctx context.Context, jti string) (bool, error)

// Authenticate returns a middleware that resolves the caller per mode and
// stores the subject in c.Locals("userID"). Anonymous callers get 0.
// A token that is present but invalid is rejected in every mode but AuthNone.
func Authenticate(verifier TokenVerifier, mode AuthMode, revoked RevocationChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", uint(0))
		if mode == AuthNone {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			if mode == AuthRequired {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Authorization required"))
			}
			return c.Next()
		}

		token, ok := auth.BearerToken(header)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid authorization header format"))
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingToken) {
				Logger.WarnContext(c.UserContext(), "token verification failed", slog.String("error", err.Error()))
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if revoked != nil && claims.JTI != "" {
			isRevoked, err := revoked(c.UserContext(), claims.JTI)
			if err != nil {
				Logger.WarnContext(c.UserContext(), "token revocation lookup failed", slog.String("error", err.Error()))
			} else if isRevoked {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("userID", claims.UserID)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
		return c.Next()
	}
}

// UserID returns the subject resolved by Authenticate, 0 for anonymous.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}
