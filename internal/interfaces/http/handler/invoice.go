package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
)

// InvoiceService generates invoices and reports on them
type InvoiceService interface {
	GenerateInvoice(ctx context.Context, req billingapp.GenerateInvoiceRequest) (*billing.Invoice, error)
	GenerateInvoices(ctx context.Context, req billingapp.GenerateInvoicesRequest) (*billingapp.BatchInvoiceResult, error)
	GeneratePlatformInvoice(ctx context.Context, req billingapp.GeneratePlatformInvoiceRequest) (*billing.Invoice, error)
	ListInvoices(ctx context.Context, q billingapp.InvoiceListQuery) ([]billing.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID string, req billingapp.UpdateInvoiceStatusRequest) (*billing.Invoice, error)
	RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error)
	GetAnalytics(ctx context.Context) (*billing.Analytics, error)
}

// InvoiceHandler handles invoice and analytics endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Generate godoc
//
//	@Summary		Generate an invoice for one customer
//	@Description	Re-generating the same customer and month replaces the stored invoice.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		billingapp.GenerateInvoiceRequest	true	"Customer and period"
//	@Success		201		{object}	dto.Response{data=billing.Invoice}
//	@Failure		404		{object}	dto.Response
//	@Router			/invoices [post]
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req billingapp.GenerateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.GenerateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// GenerateBatch godoc
//
//	@Summary		Generate invoices for many customers
//	@Description	An empty customer_ids bills every customer. Failures are reported per customer.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			request	body		billingapp.GenerateInvoicesRequest	true	"Customers and period"
//	@Success		200		{object}	dto.Response{data=billingapp.BatchInvoiceResult}
//	@Router			/invoices/batch [post]
func (h *InvoiceHandler) GenerateBatch(c *gin.Context) {
	var req billingapp.GenerateInvoicesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.invoices.GenerateInvoices(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GeneratePlatform godoc
//
//	@Summary	Bill a subscribed client for its tier fee and overages
//	@Tags		invoices
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billingapp.GeneratePlatformInvoiceRequest	true	"Client and period"
//	@Success	201		{object}	dto.Response{data=billing.Invoice}
//	@Router		/invoices/platform [post]
func (h *InvoiceHandler) GeneratePlatform(c *gin.Context) {
	var req billingapp.GeneratePlatformInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.GeneratePlatformInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, inv)
}

// List godoc
//
//	@Summary	List invoices, newest first
//	@Tags		invoices
//	@Produce	json
//	@Param		customer_id	query		string	false	"Only this customer"
//	@Success	200			{object}	dto.Response{data=[]billing.Invoice}
//	@Router		/invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var q billingapp.InvoiceListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	invoices, err := h.invoices.ListInvoices(c.Request.Context(), q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if invoices == nil {
		invoices = []billing.Invoice{}
	}
	h.BaseHandler.List(c, invoices, len(invoices))
}

// Get godoc
//
//	@Summary	Get an invoice
//	@Tags		invoices
//	@Produce	json
//	@Param		id	path		string	true	"Invoice ID"
//	@Success	200	{object}	dto.Response{data=billing.Invoice}
//	@Failure	404	{object}	dto.Response
//	@Router		/invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	inv, err := h.invoices.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// PDF godoc
//
//	@Summary	Render an invoice as PDF
//	@Tags		invoices
//	@Produce	application/pdf
//	@Param		id	path	string	true	"Invoice ID"
//	@Success	200	{file}	binary
//	@Failure	503	{object}	dto.Response	"RENDERER_UNAVAILABLE"
//	@Router		/invoices/{id}/pdf [get]
func (h *InvoiceHandler) PDF(c *gin.Context) {
	id := c.Param("id")
	pdf, err := h.invoices.RenderInvoicePDF(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", id+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// UpdateStatus godoc
//
//	@Summary		Move an invoice through its lifecycle
//	@Description	generated -> current -> paid. Backward moves are rejected with 422.
//	@Tags			invoices
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string									true	"Invoice ID"
//	@Param			request	body		billingapp.UpdateInvoiceStatusRequest	true	"Target status"
//	@Success		200		{object}	dto.Response{data=billing.Invoice}
//	@Failure		422		{object}	dto.Response	"INVALID_STATUS_TRANSITION"
//	@Router			/invoices/{id}/status [patch]
func (h *InvoiceHandler) UpdateStatus(c *gin.Context) {
	var req billingapp.UpdateInvoiceStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	inv, err := h.invoices.UpdateInvoiceStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inv)
}

// Analytics godoc
//
//	@Summary	Revenue, invoice and usage summary
//	@Tags		analytics
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=billing.Analytics}
//	@Router		/analytics [get]
func (h *InvoiceHandler) Analytics(c *gin.Context) {
	analytics, err := h.invoices.GetAnalytics(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analytics)
}
