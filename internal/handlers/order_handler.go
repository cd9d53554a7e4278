package handlers

import (
	"log"

	"pasar/internal/models"
	"pasar/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app. The tracking
// lookup is public; everything else requires authentication, and the
// deliver/delete/list-all paths additionally require admin.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, authRequired, adminOnly fiber.Handler) {
	router.Get("/orders/track/:trackingId", h.HandleTrack)

	orderRoutes := router.Group("/orders", authRequired)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/mine", h.HandleListMine)
	orderRoutes.Get("/", adminOnly, h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Put("/:id/pay", h.HandlePay)
	orderRoutes.Put("/:id/deliver", adminOnly, h.HandleDeliver)
	orderRoutes.Delete("/:id", adminOnly, h.HandleDelete)
}

// OrderItemPayload is one requested line. A price field, if the client sends
// one, is parsed and then ignored: pricing always comes from the catalog.
type OrderItemPayload struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
	Price     float64 `json:"price"`
}

// CreateOrderRequest represents the request body for order creation.
type CreateOrderRequest struct {
	OrderItems      []OrderItemPayload     `json:"order_items" validate:"required,min=1,dive"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                 `json:"payment_method" validate:"required"`
}

// HandleCreateOrder creates a new order for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing order request body: %v", err)
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	userID, _ := c.Locals("user_id").(string)

	items := make([]services.OrderItemRequest, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		items = append(items, services.OrderItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.Create(userID, items, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		log.Printf("Error creating order for user %s: %v", userID, err)
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListMine returns the authenticated user's orders.
func (h *OrderHandler) HandleListMine(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	orders, err := h.service.ListByUser(userID)
	if err != nil {
		log.Printf("Error listing orders for user %s: %v", userID, err)
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrders retrieves all orders; admin listing.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.GetAll()
	if err != nil {
		log.Printf("Error getting all orders: %v", err)
		return respondError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order, visible to its owner or an
// admin.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	userID, _ := c.Locals("user_id").(string)
	isAdmin, _ := c.Locals("is_admin").(bool)

	order, err := h.service.GetByID(orderID, userID, isAdmin)
	if err != nil {
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleTrack is the public track-my-order lookup by the shareable tracking
// code. The response is a summary: status, prices and timestamps, plus the
// owner's public username and email. Shipping address and payment details
// never leave the authenticated surface.
func (h *OrderHandler) HandleTrack(c *fiber.Ctx) error {
	trackingID := c.Params("trackingId")

	order, owner, err := h.service.Track(trackingID)
	if err != nil {
		log.Printf("Error tracking order %s: %v", trackingID, err)
		return respondError(c, err)
	}

	response := fiber.Map{
		"order": fiber.Map{
			"tracking_id":    order.TrackingID,
			"items_price":    order.ItemsPrice,
			"shipping_price": order.ShippingPrice,
			"tax_price":      order.TaxPrice,
			"total_price":    order.TotalPrice,
			"is_paid":        order.IsPaid,
			"paid_at":        order.PaidAt,
			"is_delivered":   order.IsDelivered,
			"delivered_at":   order.DeliveredAt,
			"created_at":     order.CreatedAt,
		},
	}
	if owner != nil {
		response["owner"] = fiber.Map{
			"username": owner.Username,
			"email":    owner.Email,
		}
	}
	return c.JSON(response)
}

// PayRequest carries the external payment processor's confirmation payload.
type PayRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	Status        string `json:"status" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
}

// HandlePay applies the payment-confirmation transition.
func (h *OrderHandler) HandlePay(c *fiber.Ctx) error {
	orderID := c.Params("id")

	var req PayRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationErrors(c, err)
	}
	if err := h.validate.Struct(req); err != nil {
		return respondValidationErrors(c, err)
	}

	order, err := h.service.MarkPaid(orderID, models.PaymentResult{
		TransactionID: req.TransactionID,
		Status:        req.Status,
		Email:         req.Email,
	})
	if err != nil {
		log.Printf("Error marking order %s paid: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleDeliver applies the delivery transition; admin-only.
func (h *OrderHandler) HandleDeliver(c *fiber.Ctx) error {
	orderID := c.Params("id")

	order, err := h.service.MarkDelivered(orderID)
	if err != nil {
		log.Printf("Error marking order %s delivered: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(order)
}

// HandleDelete removes an order; admin-only.
func (h *OrderHandler) HandleDelete(c *fiber.Ctx) error {
	orderID := c.Params("id")

	if err := h.service.Delete(orderID); err != nil {
		log.Printf("Error deleting order %s: %v", orderID, err)
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Order deleted successfully"})
}
