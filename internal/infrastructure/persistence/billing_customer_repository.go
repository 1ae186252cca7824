package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/infrastructure/persistence/models"
)

// GormBillingCustomerRepository implements billing.CustomerRepository using GORM
type GormBillingCustomerRepository struct {
	db *gorm.DB
}

// NewGormBillingCustomerRepository creates a new GormBillingCustomerRepository
func NewGormBillingCustomerRepository(db *gorm.DB) *GormBillingCustomerRepository {
	return &GormBillingCustomerRepository{db: db}
}

// Create inserts a customer, returning shared.ErrAlreadyExists on conflict
func (r *GormBillingCustomerRepository) Create(ctx context.Context, customer *billing.Customer) error {
	model, err := models.CustomerModelFromDomain(customer)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// Update replaces a customer's mutable fields
func (r *GormBillingCustomerRepository) Update(ctx context.Context, customer *billing.Customer) error {
	model, err := models.CustomerModelFromDomain(customer)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("customer_id = ?", customer.CustomerID).
		Updates(map[string]any{
			"name":         model.Name,
			"email":        model.Email,
			"pricing_tier": model.PricingTier,
			"metadata":     model.Metadata,
			"updated_at":   model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID returns shared.ErrNotFound when missing
func (r *GormBillingCustomerRepository) FindByID(ctx context.Context, customerID string) (*billing.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByID reports whether a customer exists
func (r *GormBillingCustomerRepository) ExistsByID(ctx context.Context, customerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error
	return count > 0, err
}

// Count returns the number of customers
func (r *GormBillingCustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CustomerModel{}).Count(&count).Error
	return count, err
}

// ListIDs returns every customer ID in ascending order
func (r *GormBillingCustomerRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.CustomerModel{}).
		Order("customer_id ASC").
		Pluck("customer_id", &ids).Error
	return ids, err
}

// Ensure GormBillingCustomerRepository implements billing.CustomerRepository
var _ billing.CustomerRepository = (*GormBillingCustomerRepository)(nil)
