package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/infrastructure/persistence/models"
)

// invoiceUpsertColumns are overwritten when an invoice for the same
// customer and period is generated again
var invoiceUpsertColumns = []string{
	"customer_id", "customer_name", "customer_email",
	"billing_period_start", "billing_period_end", "due_date",
	"usage_summary", "billing_details", "platform_charges",
	"total_amount", "currency", "status", "created_at", "total_events", "updated_at",
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Upsert stores an invoice, overwriting any invoice with the same ID
func (r *GormInvoiceRepository) Upsert(ctx context.Context, invoice *billing.Invoice) error {
	model, err := models.InvoiceModelFromDomain(invoice)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			DoUpdates: clause.AssignmentColumns(invoiceUpsertColumns),
		}).
		Create(model).Error
}

// FindByID returns shared.ErrNotFound when missing
func (r *GormInvoiceRepository) FindByID(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByCustomer returns a customer's invoices, newest first
func (r *GormInvoiceRepository) FindByCustomer(ctx context.Context, customerID string) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toInvoices(rows)
}

// FindAll returns every invoice, newest first
func (r *GormInvoiceRepository) FindAll(ctx context.Context) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toInvoices(rows)
}

// UpdateStatus changes the status of an invoice
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, invoiceID string, status billing.InvoiceStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_id = ?", invoiceID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toInvoices(rows []models.InvoiceModel) ([]billing.Invoice, error) {
	invoices := make([]billing.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// Ensure GormInvoiceRepository implements billing.InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
