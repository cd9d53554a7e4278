package repositories

import (
	"errors"

	"pasar/internal/apperrors"
	"pasar/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository. The unique
// index on tracking_id is the storage-level guarantee behind tracking-id
// uniqueness; requires the DB session to be opened with TranslateError so
// violations surface as gorm.ErrDuplicatedKey.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{
		db: db,
	}
}

// GetAll retrieves all orders from the database.
func (r *GORMOrderRepository) GetAll() ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Find(&orders).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to get all orders")
	}
	return orders, nil
}

// GetByID retrieves a single order by its ID from the database.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order with ID %s not found", id)
		}
		return nil, apperrors.Internal(err, "failed to get order by ID %s", id)
	}
	return &order, nil
}

// GetByTrackingID retrieves a single order by its public tracking id.
func (r *GORMOrderRepository) GetByTrackingID(trackingID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, "tracking_id = ?", trackingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order with tracking ID %s not found", trackingID)
		}
		return nil, apperrors.Internal(err, "failed to get order by tracking ID %s", trackingID)
	}
	return &order, nil
}

// GetByUserID retrieves all orders owned by the given user.
func (r *GORMOrderRepository) GetByUserID(userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.Where("user_id = ?", userID).Find(&orders).Error; err != nil {
		return nil, apperrors.Internal(err, "failed to get orders for user %s", userID)
	}
	return orders, nil
}

// Create creates a new order in the database. A tracking-id uniqueness
// violation is reported as a conflict so the caller can retry with a fresh id.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Conflict("tracking ID %s already exists", order.TrackingID)
		}
		return apperrors.Internal(err, "failed to create order")
	}
	return nil
}

// Update updates an existing order in the database.
func (r *GORMOrderRepository) Update(order *models.Order) error {
	res := r.db.Save(order)
	if res.Error != nil {
		return apperrors.Internal(res.Error, "failed to update order")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("order with ID %s not found for update", order.ID)
	}
	return nil
}

// Delete deletes an order by its ID from the database.
func (r *GORMOrderRepository) Delete(id string) error {
	res := r.db.Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return apperrors.Internal(res.Error, "failed to delete order")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("order with ID %s not found for deletion", id)
	}
	return nil
}
