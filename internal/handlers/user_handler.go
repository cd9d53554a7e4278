package handlers

import (
	"log"

	"pasar/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for user accounts: the authenticated
// profile view and the admin moderation actions.
type UserHandler struct {
	authService *services.AuthService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *services.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// RegisterRoutes registers the user routes with the Fiber app. Everything
// requires authentication; block and delete additionally require admin.
func (h *UserHandler) RegisterRoutes(router fiber.Router, authRequired, adminOnly fiber.Handler) {
	userRoutes := router.Group("/users", authRequired)
	userRoutes.Get("/me", h.HandleGetProfile)
	userRoutes.Put("/:id/block", adminOnly, h.HandleBlockUser)
	userRoutes.Delete("/:id", adminOnly, h.HandleDeleteUser)
}

// HandleGetProfile returns the authenticated user's own account.
func (h *UserHandler) HandleGetProfile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		log.Printf("Error getting profile for user %s: %v", userID, err)
		return respondError(c, err)
	}
	return c.JSON(user)
}

// HandleBlockUser blocks a user account; admin-only. Their existing tokens
// stop working on the next request.
func (h *UserHandler) HandleBlockUser(c *fiber.Ctx) error {
	userID := c.Params("id")

	if err := h.authService.BlockUser(userID); err != nil {
		log.Printf("Error blocking user %s: %v", userID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User blocked successfully"})
}

// HandleDeleteUser removes a user account; admin-only. Admin accounts are
// refused.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	userID := c.Params("id")

	if err := h.authService.DeleteUser(userID); err != nil {
		log.Printf("Error deleting user %s: %v", userID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
