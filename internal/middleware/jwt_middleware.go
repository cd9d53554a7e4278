package middleware

import (
	"log"
	"strings"

	"pasar/internal/apperrors"
	"pasar/internal/auth"
	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HeaderClientType is the request header that declares which channel the
// caller is, selecting the signing secret used for verification. Absent means
// web.
const HeaderClientType = "X-Client-Type"

// AuthRequired is a Fiber middleware that verifies the bearer token against
// the declared client type and re-resolves the user. Verification failures
// are terminal for the request.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return reject(c, apperrors.Authentication("Authorization header is required"))
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return reject(c, apperrors.Authentication("Authorization header format must be 'Bearer <token>'"))
		}
		tokenString := parts[1]

		clientType, err := auth.ParseClientType(c.Get(HeaderClientType))
		if err != nil {
			return reject(c, apperrors.Authentication("invalid client type header"))
		}

		user, _, err := authService.Authenticate(tokenString, clientType)
		if err != nil {
			log.Printf("Token verification failed: %v", err)
			return reject(c, err)
		}

		// Store identity in Fiber context for subsequent handlers
		c.Locals("user_id", user.ID)
		c.Locals("username", user.Username)
		c.Locals("is_admin", user.IsAdmin)
		c.Locals("client_type", string(clientType))

		return c.Next()
	}
}

// AdminOnly is a Fiber middleware that rejects non-admin identities. It must
// run after AuthRequired.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isAdmin, ok := c.Locals("is_admin").(bool)
		if !ok || !isAdmin {
			return reject(c, apperrors.Authorization("admin access required"))
		}
		return c.Next()
	}
}

func reject(c *fiber.Ctx, err error) error {
	return c.Status(apperrors.StatusCode(err)).JSON(fiber.Map{
		"code":    string(apperrors.KindOf(err)),
		"message": apperrors.PublicMessage(err),
	})
}
