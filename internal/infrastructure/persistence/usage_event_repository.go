package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/infrastructure/persistence/models"
)

// GormUsageEventRepository implements billing.UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// Save persists a new usage event
func (r *GormUsageEventRepository) Save(ctx context.Context, event *billing.UsageEvent) error {
	model, err := models.UsageEventModelFromDomain(event)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByCustomer returns a customer's events inside the filter window,
// ordered by timestamp ascending
func (r *GormUsageEventRepository) FindByCustomer(ctx context.Context, customerID string, filter billing.UsageEventFilter) ([]billing.UsageEvent, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UsageEventModel{}).
		Where("customer_id = ?", customerID)

	if filter.Start != "" {
		query = query.Where("event_timestamp >= ?", filter.Start)
	}
	if filter.End != "" {
		query = query.Where("event_timestamp <= ?", filter.End)
	}

	var rows []models.UsageEventModel
	if err := query.Order("event_timestamp ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toUsageEvents(rows), nil
}

// FindRecent returns events across all customers, newest first.
// A limit <= 0 returns every event.
func (r *GormUsageEventRepository) FindRecent(ctx context.Context, limit int) ([]billing.UsageEvent, error) {
	query := r.db.WithContext(ctx).
		Model(&models.UsageEventModel{}).
		Order("event_timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.UsageEventModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toUsageEvents(rows), nil
}

func toUsageEvents(rows []models.UsageEventModel) []billing.UsageEvent {
	events := make([]billing.UsageEvent, len(rows))
	for i := range rows {
		events[i] = *rows[i].ToDomain()
	}
	return events
}

// Ensure GormUsageEventRepository implements billing.UsageEventRepository
var _ billing.UsageEventRepository = (*GormUsageEventRepository)(nil)
