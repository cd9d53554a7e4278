package repositories

import (
	"pasar/internal/models"
)

// ProductRepository defines the interface for product data access. It is the
// authoritative price source for order creation.
type ProductRepository interface {
	GetAll() ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	GetByIDs(ids []string) ([]models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
}
