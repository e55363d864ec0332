package middleware

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"

	"github.com/kasnerz/letax/internal/config"
	"github.com/kasnerz/letax/internal/models"
	"github.com/kasnerz/letax/internal/utils"
)

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(cfg.JWTSecret),
		ContextKey:   "user",
		ErrorHandler: jwtError,
		SuccessHandler: func(c *fiber.Ctx) error {
			user := c.Locals("user").(*jwt.Token)
			claims := user.Claims.(jwt.MapClaims)
			c.Locals("username", claims["username"])
			c.Locals("user_email", claims["email"])
			c.Locals("user_role", claims["role"])
			return c.Next()
		},
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	return utils.Error(c, "Unauthorized", fiber.StatusUnauthorized)
}

func AdminOnly(c *fiber.Ctx) error {
	userRole, ok := c.Locals("user_role").(string)
	if !ok || userRole != models.RoleAdmin {
		return utils.Error(c, "Admin access required", fiber.StatusForbidden)
	}
	return c.Next()
}

func GetUsernameFromContext(c *fiber.Ctx) (string, error) {
	username, ok := c.Locals("username").(string)
	if !ok || username == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "User not authenticated")
	}
	return username, nil
}

func IsAdmin(c *fiber.Ctx) bool {
	userRole, ok := c.Locals("user_role").(string)
	return ok && userRole == models.RoleAdmin
}
