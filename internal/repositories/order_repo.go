package repositories

import (
	"pasar/internal/models"
)

// OrderRepository defines the interface for order data access. Create must
// enforce the tracking-id uniqueness constraint and report a violation as a
// conflict error.
type OrderRepository interface {
	GetAll() ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByTrackingID(trackingID string) (*models.Order, error)
	GetByUserID(userID string) ([]models.Order, error)
	Create(order *models.Order) error
	Update(order *models.Order) error
	Delete(id string) error
}
