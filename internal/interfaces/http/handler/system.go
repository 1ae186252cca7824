package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/infrastructure/logger"
	"github.com/squill/backend/internal/infrastructure/persistence"
	"github.com/squill/backend/internal/infrastructure/scheduler"
	"github.com/squill/backend/internal/interfaces/http/dto"
)

// healthCheckTimeout bounds each dependency check
const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// InvoiceRunner is the scheduled invoice run
type InvoiceRunner interface {
	RunNow(ctx context.Context) (*billingapp.BatchInvoiceResult, error)
	Status() scheduler.InvoiceSchedulerStatus
}

// DBStatsProvider exposes connection pool statistics
type DBStatsProvider interface {
	Stats() (persistence.ConnectionStats, error)
}

// SystemHandler serves health, build info and the manual invoice run
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	checks    []HealthCheck
	dbStats   DBStatsProvider
	runner    InvoiceRunner
}

// SystemHandlerOption configures a SystemHandler
type SystemHandlerOption func(*SystemHandler)

// WithHealthCheck adds a dependency check to /health
func WithHealthCheck(name string, check func(ctx context.Context) error) SystemHandlerOption {
	return func(h *SystemHandler) {
		h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
	}
}

// WithDBStats reports pool statistics on /system/info
func WithDBStats(p DBStatsProvider) SystemHandlerOption {
	return func(h *SystemHandler) {
		h.dbStats = p
	}
}

// WithInvoiceRunner exposes the invoice scheduler
func WithInvoiceRunner(r InvoiceRunner) SystemHandlerOption {
	return func(h *SystemHandler) {
		h.runner = r
	}
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string, opts ...SystemHandlerOption) *SystemHandler {
	h := &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the /health payload
type HealthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks"`
}

// Health godoc
//
//	@Summary	Liveness with dependency checks
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
		Checks: make(map[string]string, len(h.checks)),
	}

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed",
				zap.String("check", check.Name),
				zap.Error(err),
			)
			resp.Status = "unhealthy"
			resp.Checks[check.Name] = "error"
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string                            `json:"name"`
	Version   string                            `json:"version"`
	GoVersion string                            `json:"go_version"`
	Uptime    string                            `json:"uptime"`
	Database  *persistence.ConnectionStats      `json:"database,omitempty"`
	Scheduler *scheduler.InvoiceSchedulerStatus `json:"scheduler,omitempty"`
}

// GetSystemInfo godoc
//
//	@Summary	Build info, pool statistics and scheduler status
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=SystemInfoResponse}
//	@Router		/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.dbStats != nil {
		if stats, err := h.dbStats.Stats(); err == nil {
			info.Database = &stats
		}
	}
	if h.runner != nil {
		status := h.runner.Status()
		info.Scheduler = &status
	}
	h.Success(c, info)
}

// RunInvoices godoc
//
//	@Summary		Run the previous-month invoice batch now
//	@Description	Rejected with 409 while a scheduled or manual run is in progress.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=billingapp.BatchInvoiceResult}
//	@Failure		409	{object}	dto.Response
//	@Failure		503	{object}	dto.Response
//	@Router			/system/invoice-run [post]
func (h *SystemHandler) RunInvoices(c *gin.Context) {
	if h.runner == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Invoice scheduler is not configured")
		return
	}

	result, err := h.runner.RunNow(c.Request.Context())
	if errors.Is(err, scheduler.ErrRunInProgress) {
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, err.Error())
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
