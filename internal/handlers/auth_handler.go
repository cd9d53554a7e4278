package handlers

import (
	"log"

	"pasar/internal/auth"
	"pasar/internal/middleware"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/verify", h.HandleVerifyEmail)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/federated", h.HandleFederatedLogin)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// HandleRegister handles new user registration. The account stays unverified
// until the emailed code is confirmed.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing register request body: %v", err)
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	user, err := h.authService.Register(req.Username, req.Email, req.Password)
	if err != nil {
		log.Printf("Error registering user: %v", err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully, check your email for the verification code",
		"user":    user,
	})
}

// VerifyRequest represents the request body for email verification.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

// HandleVerifyEmail confirms a one-time code and issues the first token.
func (h *AuthHandler) HandleVerifyEmail(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	clientType, err := auth.ParseClientType(c.Get(middleware.HeaderClientType))
	if err != nil {
		return respondError(c, err)
	}

	token, user, err := h.authService.VerifyEmail(req.Email, req.Code, clientType)
	if err != nil {
		log.Printf("Error verifying email for %s: %v", req.Email, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Email verified successfully",
		"token":       token,
		"client_type": string(clientType),
		"user":        user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a token scoped to the declared
// client type.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing login request body: %v", err)
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	clientType, err := auth.ParseClientType(c.Get(middleware.HeaderClientType))
	if err != nil {
		return respondError(c, err)
	}

	token, user, err := h.authService.Login(req.Username, req.Password, clientType)
	if err != nil {
		log.Printf("Error during login for user %s: %v", req.Username, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Login successful",
		"token":       token,
		"client_type": string(clientType),
		"user":        user,
	})
}

// FederatedLoginRequest represents the callback payload of an external
// identity provider after it has authenticated the user.
type FederatedLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=100"`
}

// HandleFederatedLogin signs in an externally authenticated user, creating an
// auto-verified account on first login.
func (h *AuthHandler) HandleFederatedLogin(c *fiber.Ctx) error {
	var req FederatedLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	clientType, err := auth.ParseClientType(c.Get(middleware.HeaderClientType))
	if err != nil {
		return respondError(c, err)
	}

	token, user, err := h.authService.FederatedLogin(req.Email, req.Username, clientType)
	if err != nil {
		log.Printf("Error during federated login for %s: %v", req.Email, err)
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Login successful",
		"token":       token,
		"client_type": string(clientType),
		"user":        user,
	})
}
