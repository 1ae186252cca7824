package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/interfaces/http/dto"
)

// PricingService manages subscriptions and prices usage
type PricingService interface {
	CreateSubscription(ctx context.Context, req billingapp.CreateSubscriptionRequest) (*billingapp.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, clientID string) (*billingapp.SubscriptionResponse, error)
	CalculatePricing(ctx context.Context, req billingapp.CalculatePricingRequest) (*billingapp.PricingResult, error)
	UpdatePricingRules(ctx context.Context, clientID string, req billingapp.UpdatePricingRulesRequest) (*billing.Subscription, error)
	ListTiers() []*billing.Tier
}

// PricingHandler handles subscription and pricing endpoints
type PricingHandler struct {
	BaseHandler
	pricing PricingService
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(pricing PricingService) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

// CreateSubscription godoc
//
//	@Summary	Subscribe a client to a tier
//	@Tags		subscriptions
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billingapp.CreateSubscriptionRequest	true	"Subscription"
//	@Success	201		{object}	dto.Response{data=billingapp.SubscriptionResponse}
//	@Failure	400		{object}	dto.Response	"INVALID_TIER"
//	@Failure	409		{object}	dto.Response
//	@Router		/subscriptions [post]
func (h *PricingHandler) CreateSubscription(c *gin.Context) {
	var req billingapp.CreateSubscriptionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sub, err := h.pricing.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, sub)
}

// GetSubscription godoc
//
//	@Summary	Get a client's subscription with tier details
//	@Tags		subscriptions
//	@Produce	json
//	@Param		client_id	path		string	true	"Client ID"
//	@Success	200			{object}	dto.Response{data=billingapp.SubscriptionResponse}
//	@Router		/subscriptions/{client_id} [get]
func (h *PricingHandler) GetSubscription(c *gin.Context) {
	sub, err := h.pricing.GetSubscription(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// CalculatePricing godoc
//
//	@Summary	Price usage for a subscribed client
//	@Tags		pricing
//	@Accept		json
//	@Produce	json
//	@Param		request	body		billingapp.CalculatePricingRequest	true	"Usage"
//	@Success	200		{object}	dto.Response{data=billingapp.PricingResult}
//	@Router		/pricing/calculate [post]
func (h *PricingHandler) CalculatePricing(c *gin.Context) {
	var req billingapp.CalculatePricingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.UsageData == nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRequired, "usage_data is required")
		return
	}

	result, err := h.pricing.CalculatePricing(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdatePricingRules godoc
//
//	@Summary	Replace a client's end-customer rates
//	@Tags		pricing
//	@Accept		json
//	@Produce	json
//	@Param		client_id	path		string								true	"Client ID"
//	@Param		request		body		billingapp.UpdatePricingRulesRequest	true	"Rules"
//	@Success	200			{object}	dto.Response{data=billing.Subscription}
//	@Router		/pricing/rules/{client_id} [put]
func (h *PricingHandler) UpdatePricingRules(c *gin.Context) {
	var req billingapp.UpdatePricingRulesRequest
	if !h.BindJSON(c, &req) {
		return
	}

	sub, err := h.pricing.UpdatePricingRules(c.Request.Context(), c.Param("client_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sub)
}

// ListTiers godoc
//
//	@Summary	List subscription tiers
//	@Tags		pricing
//	@Produce	json
//	@Success	200	{object}	dto.Response{data=[]billing.Tier}
//	@Router		/pricing/tiers [get]
func (h *PricingHandler) ListTiers(c *gin.Context) {
	tiers := h.pricing.ListTiers()
	h.List(c, tiers, len(tiers))
}
