package repositories

import (
	"sync"
	"time"

	"pasar/internal/apperrors"
	"pasar/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders   map[string]models.Order
	tracking map[string]string // tracking id -> order id, mirrors the unique index
	mu       sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders:   make(map[string]models.Order),
		tracking: make(map[string]string),
	}
}

// GetAll returns all orders.
func (r *MockOrderRepository) GetAll() ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orderList = append(orderList, order)
	}
	return orderList, nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order with ID %s not found", id)
	}
	return &order, nil
}

// GetByTrackingID returns an order by its public tracking id.
func (r *MockOrderRepository) GetByTrackingID(trackingID string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.tracking[trackingID]
	if !ok {
		return nil, apperrors.NotFound("order with tracking ID %s not found", trackingID)
	}
	order := r.orders[orderID]
	return &order, nil
}

// GetByUserID returns all orders owned by the given user.
func (r *MockOrderRepository) GetByUserID(userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			orderList = append(orderList, order)
		}
	}
	return orderList, nil
}

// Create adds a new order, enforcing tracking-id uniqueness.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.tracking[order.TrackingID]; taken {
		return apperrors.Conflict("tracking ID %s already exists", order.TrackingID)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	r.tracking[order.TrackingID] = order.ID
	return nil
}

// Update replaces an existing order.
func (r *MockOrderRepository) Update(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return apperrors.NotFound("order with ID %s not found for update", order.ID)
	}
	order.UpdatedAt = time.Now()
	r.orders[order.ID] = *order
	return nil
}

// Delete removes an order by its ID.
func (r *MockOrderRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return apperrors.NotFound("order with ID %s not found for deletion", id)
	}
	delete(r.tracking, order.TrackingID)
	delete(r.orders, id)
	return nil
}
