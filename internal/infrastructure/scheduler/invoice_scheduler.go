// Package scheduler runs recurring billing jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
)

// InvoiceGenerator produces invoices for every customer of a period
type InvoiceGenerator interface {
	GenerateInvoices(ctx context.Context, req billingapp.GenerateInvoicesRequest) (*billingapp.BatchInvoiceResult, error)
}

// InvoiceSchedulerConfig holds configuration for the invoice run
type InvoiceSchedulerConfig struct {
	Enabled bool
	// Schedule is a standard five-field cron expression evaluated in UTC
	Schedule string
	// JobTimeout bounds one batch run
	JobTimeout time.Duration
}

// DefaultInvoiceSchedulerConfig bills the previous month at 02:00 UTC on the 1st
func DefaultInvoiceSchedulerConfig() InvoiceSchedulerConfig {
	return InvoiceSchedulerConfig{
		Enabled:    true,
		Schedule:   "0 2 1 * *",
		JobTimeout: time.Hour,
	}
}

// InvoiceSchedulerStatus describes the scheduler for health endpoints
type InvoiceSchedulerStatus struct {
	Enabled       bool       `json:"enabled"`
	Running       bool       `json:"running"`
	Schedule      string     `json:"schedule"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastSucceeded int        `json:"last_succeeded"`
	LastFailed    int        `json:"last_failed"`
	LastError     string     `json:"last_error,omitempty"`
}

// InvoiceScheduler generates the previous month's invoices on a cron schedule
type InvoiceScheduler struct {
	config    InvoiceSchedulerConfig
	generator InvoiceGenerator
	logger    *zap.Logger
	cron      *cron.Cron
	entryID   cron.EntryID

	mu        sync.Mutex
	isRunning bool
	runMu     sync.Mutex
	lastRunAt *time.Time
	lastOK    int
	lastFail  int
	lastErr   string
}

// NewInvoiceScheduler validates the schedule and builds the scheduler
func NewInvoiceScheduler(config InvoiceSchedulerConfig, generator InvoiceGenerator, logger *zap.Logger) (*InvoiceScheduler, error) {
	if generator == nil {
		return nil, fmt.Errorf("%w: generator is required", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultInvoiceSchedulerConfig().JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLog := cronLogger{logger.Sugar()}
	return &InvoiceScheduler{
		config:    config,
		generator: generator,
		logger:    logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
	}, nil
}

// Start registers the job and starts the cron loop.
// A disabled scheduler does nothing.
func (s *InvoiceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled || s.isRunning {
		return nil
	}

	id, err := s.cron.AddFunc(s.config.Schedule, func() {
		if _, err := s.RunNow(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Scheduled invoice run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule invoice run: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.isRunning = true

	s.logger.Info("Invoice scheduler started",
		zap.String("schedule", s.config.Schedule),
		zap.Time("next_run_at", s.cron.Entry(id).Next),
	)
	return nil
}

// Stop halts the cron loop and waits for a running batch, bounded by ctx
func (s *InvoiceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Invoice scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("invoice scheduler stop: %w", ctx.Err())
	}
}

// RunNow generates the previous month's invoices immediately.
// Overlapping runs are rejected with ErrRunInProgress.
func (s *InvoiceScheduler) RunNow(ctx context.Context) (*billingapp.BatchInvoiceResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now().UTC()
	s.logger.Info("Starting invoice run", zap.String("billing_period", string(billing.PeriodPreviousMonth)))

	result, err := s.generator.GenerateInvoices(ctx, billingapp.GenerateInvoicesRequest{
		BillingPeriod: string(billing.PeriodPreviousMonth),
	})

	s.mu.Lock()
	s.lastRunAt = &start
	s.lastErr = ""
	s.lastOK, s.lastFail = 0, 0
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastOK, s.lastFail = len(result.Invoices), len(result.Failures)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s.logger.Info("Invoice run completed",
		zap.String("period_start", result.PeriodStart),
		zap.Int("succeeded", len(result.Invoices)),
		zap.Int("failed", len(result.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Status reports the last run and the next scheduled run
func (s *InvoiceScheduler) Status() InvoiceSchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := InvoiceSchedulerStatus{
		Enabled:       s.config.Enabled,
		Running:       s.isRunning,
		Schedule:      s.config.Schedule,
		LastRunAt:     s.lastRunAt,
		LastSucceeded: s.lastOK,
		LastFailed:    s.lastFail,
		LastError:     s.lastErr,
	}
	if s.isRunning {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRunAt = &next
		}
	}
	return status
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	*zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}
