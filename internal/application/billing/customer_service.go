package billing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/squill/backend/internal/domain/billing"
)

// CustomerService handles billable customer records
type CustomerService struct {
	customerRepo billing.CustomerRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo billing.CustomerRepository, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{
		customerRepo: customerRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateCustomer registers a customer. An empty tier defaults to basic.
func (s *CustomerService) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*billing.Customer, error) {
	customer, err := billing.NewCustomer(req.CustomerID, req.Name, req.Email, billing.TierName(req.PricingTier), s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(req.Metadata) > 0 {
		customer.Metadata = req.Metadata
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("Customer created",
		zap.String("customer_id", customer.CustomerID),
		zap.String("tier", customer.PricingTier.String()),
	)
	return customer, nil
}

// GetCustomer returns a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	return s.customerRepo.FindByID(ctx, customerID)
}

// UpdateCustomer applies a partial update
func (s *CustomerService) UpdateCustomer(ctx context.Context, customerID string, req UpdateCustomerRequest) (*billing.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	update := billing.CustomerUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Metadata: req.Metadata,
	}
	if req.PricingTier != nil {
		tier := billing.TierName(*req.PricingTier)
		update.PricingTier = &tier
	}
	if err := customer.Apply(update, s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}
