package services

import (
	"encoding/json"
	"log"
	"time"

	"pasar/internal/apperrors"
	"pasar/internal/models"
	"pasar/internal/pricing"
	"pasar/internal/repositories"
	"pasar/internal/tracking"
)

// EventPublisher publishes order lifecycle events. Publishing is best-effort:
// a broker outage never fails the request that triggered the event.
type EventPublisher interface {
	PublishOrderEvent(event string, body []byte) error
}

// OrderItemRequest is one desired line in a client's order submission. Any
// price the client attaches alongside is discarded before this point.
type OrderItemRequest struct {
	ProductID string
	Quantity  int
}

// OrderService handles the order pipeline: creation with server-side
// re-pricing, the paid/delivered transitions, and lookups.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	userRepo    repositories.UserRepository
	publisher   EventPublisher
}

// NewOrderService creates a new OrderService. A nil publisher disables event
// publishing.
func NewOrderService(orderRepo repositories.OrderRepository, productRepo repositories.ProductRepository, userRepo repositories.UserRepository, publisher EventPublisher) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		publisher:   publisher,
	}
}

// Create builds and persists a new order for the given user. Every requested
// product is re-resolved against the catalog: an unresolvable id fails the
// whole order, and the catalog price always replaces whatever the client
// sent. No write happens until resolution and pricing have both succeeded.
//
// Stock is not checked or decremented here; see DESIGN.md.
func (s *OrderService) Create(userID string, requested []OrderItemRequest, address models.ShippingAddress, paymentMethod string) (*models.Order, error) {
	if len(requested) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}

	ids := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, item := range requested {
		if item.ProductID == "" {
			return nil, apperrors.Validation("order item is missing a product id")
		}
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.productRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]models.OrderItem, 0, len(requested))
	lines := make([]pricing.Line, 0, len(requested))
	for _, item := range requested {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperrors.NotFound("product with ID %s not found", item.ProductID)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
		lines = append(lines, pricing.Line{UnitPrice: product.Price, Qty: item.Quantity})
	}

	totals, err := pricing.Compute(lines)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		ItemsPrice:      totals.ItemsPrice,
		ShippingPrice:   totals.ShippingPrice,
		TaxPrice:        totals.TaxPrice,
		TotalPrice:      totals.TotalPrice,
		TrackingID:      tracking.NewID(),
	}

	// One retry with a fresh tracking id covers the astronomically unlikely
	// collision; a second conflict is surfaced to the caller.
	if err := s.orderRepo.Create(order); err != nil {
		if apperrors.KindOf(err) != apperrors.KindConflict {
			return nil, err
		}
		order.TrackingID = tracking.NewID()
		if err := s.orderRepo.Create(order); err != nil {
			return nil, err
		}
	}

	s.publish("order.created", map[string]interface{}{
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"tracking_id": order.TrackingID,
		"total":       order.TotalPrice,
	})
	return order, nil
}

// MarkPaid records the external payment confirmation on an order. Paying an
// already-paid order is a conflict; paidAt and the payment result are never
// overwritten.
func (s *OrderService) MarkPaid(orderID string, result models.PaymentResult) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid {
		return nil, apperrors.Conflict("order %s is already paid", orderID)
	}

	now := time.Now()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = result
	if err := s.orderRepo.Update(order); err != nil {
		return nil, err
	}

	s.publish("order.paid", map[string]interface{}{
		"order_id":       order.ID,
		"transaction_id": result.TransactionID,
	})
	return order, nil
}

// MarkDelivered records delivery of an order. The admin-only check lives in
// the transport layer; this transition only requires the order to exist.
func (s *OrderService) MarkDelivered(orderID string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order.IsDelivered = true
	order.DeliveredAt = &now
	if err := s.orderRepo.Update(order); err != nil {
		return nil, err
	}

	s.publish("order.delivered", map[string]interface{}{
		"order_id": order.ID,
	})
	return order, nil
}

// GetByID returns a single order, visible only to its owner or an admin.
func (s *OrderService) GetByID(orderID, requesterID string, requesterIsAdmin bool) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != requesterID && !requesterIsAdmin {
		return nil, apperrors.Authorization("order belongs to another user")
	}
	return order, nil
}

// ListByUser returns all orders owned by the given user.
func (s *OrderService) ListByUser(userID string) ([]models.Order, error) {
	return s.orderRepo.GetByUserID(userID)
}

// GetAll returns every order; admin listing.
func (s *OrderService) GetAll() ([]models.Order, error) {
	return s.orderRepo.GetAll()
}

// Track resolves an order by its public tracking id, along with its owner so
// the handler can expose the owner's public username and email. No ownership
// check: the tracking id itself is the shareable capability.
func (s *OrderService) Track(trackingID string) (*models.Order, *models.User, error) {
	order, err := s.orderRepo.GetByTrackingID(trackingID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.userRepo.GetByID(order.UserID)
	if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
		return nil, nil, err
	}
	return order, owner, nil
}

// Delete removes an order; admin path, guarded at the transport layer.
func (s *OrderService) Delete(orderID string) error {
	return s.orderRepo.Delete(orderID)
}

func (s *OrderService) publish(event string, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}
	if err := s.publisher.PublishOrderEvent(event, body); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", event, err)
	}
}
