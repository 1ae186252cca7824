package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
)

// CustomerService manages billable customers
type CustomerService interface {
	CreateCustomer(ctx context.Context, req billingapp.CreateCustomerRequest) (*billing.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error)
	UpdateCustomer(ctx context.Context, customerID string, req billingapp.UpdateCustomerRequest) (*billing.Customer, error)
}

// CustomerHandler handles customer endpoints
type CustomerHandler struct {
	BaseHandler
	customers CustomerService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customers CustomerService) *CustomerHandler {
	return &CustomerHandler{customers: customers}
}

// Create godoc
//
//	@Summary	Register a customer
//	@Tags		customers
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billingapp.CreateCustomerRequest	true	"Customer"
//	@Success	201		{object}	dto.Response{data=billing.Customer}
//	@Failure	409		{object}	dto.Response
//	@Router		/customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req billingapp.CreateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// Get godoc
//
//	@Summary	Get a customer
//	@Tags		customers
//	@Produce	json
//	@Param		id	path		string	true	"Customer ID"
//	@Success	200	{object}	dto.Response{data=billing.Customer}
//	@Failure	404	{object}	dto.Response
//	@Router		/customers/{id} [get]
func (h *CustomerHandler) Get(c *gin.Context) {
	customer, err := h.customers.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Update godoc
//
//	@Summary	Update a customer
//	@Tags		customers
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string								true	"Customer ID"
//	@Param		request	body		billingapp.UpdateCustomerRequest	true	"Fields to change"
//	@Success	200		{object}	dto.Response{data=billing.Customer}
//	@Router		/customers/{id} [put]
func (h *CustomerHandler) Update(c *gin.Context) {
	var req billingapp.UpdateCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	customer, err := h.customers.UpdateCustomer(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}
