package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/interfaces/http/middleware"
)

// UsageService records and aggregates usage events
type UsageService interface {
	IngestUsage(ctx context.Context, req billingapp.IngestUsageRequest) (*billing.UsageEvent, error)
	GetCustomerUsage(ctx context.Context, customerID string, q billingapp.UsageQuery) (*billingapp.CustomerUsageResponse, error)
}

// UsageHandler handles usage ingestion and usage reads
type UsageHandler struct {
	BaseHandler
	usage UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usage UsageService) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// IngestUsage godoc
//
//	@Summary	Record a usage event
//	@Tags		usage
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billingapp.IngestUsageRequest	true	"Usage event"
//	@Success	201		{object}	dto.Response{data=billing.UsageEvent}
//	@Failure	400		{object}	dto.Response
//	@Router		/usage [post]
func (h *UsageHandler) IngestUsage(c *gin.Context) {
	var req billingapp.IngestUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		switch {
		case middleware.FailedOn(err, "quantity", middleware.TagDecimalGT0):
			h.HandleError(c, billing.NewMalformedUsageError(req.Quantity.String()))
			return
		case isNumberLiteralError(err):
			h.HandleError(c, billing.NewMalformedUsageError(""))
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	event, err := h.usage.IngestUsage(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, event)
}

// GetCustomerUsage godoc
//
//	@Summary	Aggregated usage for a customer
//	@Tags		usage
//	@Produce	json
//	@Param		id		path		string	true	"Customer ID"
//	@Param		start	query		string	false	"Window start, ISO-8601 timestamp or date"
//	@Param		end		query		string	false	"Window end, ISO-8601 timestamp or date (inclusive day)"
//	@Param		daily	query		bool	false	"Include per-day breakdown"
//	@Success	200		{object}	dto.Response{data=billingapp.CustomerUsageResponse}
//	@Router		/customers/{id}/usage [get]
func (h *UsageHandler) GetCustomerUsage(c *gin.Context) {
	var q billingapp.UsageQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q, err := q.Normalize()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	usage, err := h.usage.GetCustomerUsage(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, usage)
}

// isNumberLiteralError matches encoding/json's rejection of a quoted
// non-numeric value decoded into json.Number
func isNumberLiteralError(err error) bool {
	return strings.Contains(err.Error(), "into Number")
}
