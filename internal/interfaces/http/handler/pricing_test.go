package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/interfaces/http/dto"
)

func newPricingRouter(svc PricingService) *gin.Engine {
	h := NewPricingHandler(svc)
	r := gin.New()
	r.POST("/subscriptions", h.CreateSubscription)
	r.GET("/subscriptions/:client_id", h.GetSubscription)
	r.POST("/pricing/calculate", h.CalculatePricing)
	r.PUT("/pricing/rules/:client_id", h.UpdatePricingRules)
	r.GET("/pricing/tiers", h.ListTiers)
	return r
}

func TestPricingHandler_CreateSubscription(t *testing.T) {
	body := `{"client_id":"acme","company_name":"Acme","email":"ops@acme.test","subscription_tier":"pro"}`

	t.Run("created with tier details", func(t *testing.T) {
		svc := new(mockPricingService)
		sub, err := billing.NewSubscription("acme", "Acme", "ops@acme.test", billing.TierPro, time.Now())
		require.NoError(t, err)
		tier, err := billing.DefaultTierCatalog().Lookup(billing.TierPro)
		require.NoError(t, err)
		svc.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(r billingapp.CreateSubscriptionRequest) bool {
			return r.ClientID == "acme" && r.SubscriptionTier == "pro" && r.PricingRules == nil
		})).Return(&billingapp.SubscriptionResponse{Subscription: sub, TierDetails: tier}, nil)

		w := performRequest(newPricingRouter(svc), http.MethodPost, "/subscriptions", body)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		_, data := decodeResponse(t, w)
		var got map[string]any
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "active", got["status"])
		fee, err := decimal.NewFromString(got["tier_details"].(map[string]any)["monthly_fee"].(string))
		require.NoError(t, err)
		assert.True(t, fee.Equal(decimal.NewFromInt(299)))
	})

	t.Run("invalid tier", func(t *testing.T) {
		svc := new(mockPricingService)
		svc.On("CreateSubscription", mock.Anything, mock.Anything).Return(nil, billing.NewInvalidTierError("gold"))

		w := performRequest(newPricingRouter(svc), http.MethodPost, "/subscriptions",
			`{"client_id":"acme","company_name":"Acme","email":"ops@acme.test","subscription_tier":"gold"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decodeResponse(t, w)
		assert.Equal(t, dto.CodeInvalidTier, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "basic, pro, enterprise")
	})

	t.Run("missing fields", func(t *testing.T) {
		svc := new(mockPricingService)
		w := performRequest(newPricingRouter(svc), http.MethodPost, "/subscriptions", `{"client_id":"acme"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp, _ := decodeResponse(t, w)
		assert.Len(t, resp.Error.Details, 3)
	})
}

func TestPricingHandler_CalculatePricing(t *testing.T) {
	t.Run("priced", func(t *testing.T) {
		svc := new(mockPricingService)
		svc.On("CalculatePricing", mock.Anything, mock.MatchedBy(func(r billingapp.CalculatePricingRequest) bool {
			if r.UsageData == nil {
				return false
			}
			v, ok := r.UsageData.Get(billing.MetricAPICalls)
			return r.ClientID == "acme" && ok && v.Equal(decimal.NewFromInt(12000))
		})).Return(&billingapp.PricingResult{
			ClientID:         "acme",
			SubscriptionTier: billing.TierBasic,
			WithinLimits:     false,
			LimitViolations:  []billing.Violation{},
		}, nil)

		w := performRequest(newPricingRouter(svc), http.MethodPost, "/pricing/calculate",
			`{"client_id":"acme","usage_data":{"api_calls":"12000"}}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"within_limits":false`)
		svc.AssertExpectations(t)
	})

	t.Run("empty usage is still usage", func(t *testing.T) {
		svc := new(mockPricingService)
		svc.On("CalculatePricing", mock.Anything, mock.MatchedBy(func(r billingapp.CalculatePricingRequest) bool {
			return r.UsageData != nil && r.UsageData.Len() == 0
		})).Return(&billingapp.PricingResult{ClientID: "acme", WithinLimits: true}, nil)

		w := performRequest(newPricingRouter(svc), http.MethodPost, "/pricing/calculate",
			`{"client_id":"acme","usage_data":{}}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		svc.AssertExpectations(t)
	})

	for name, body := range map[string]string{
		"usage_data absent": `{"client_id":"acme"}`,
		"usage_data null":   `{"client_id":"acme","usage_data":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := new(mockPricingService)

			w := performRequest(newPricingRouter(svc), http.MethodPost, "/pricing/calculate", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp, _ := decodeResponse(t, w)
			assert.Equal(t, dto.ErrCodeValidationRequired, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, "usage_data")
			svc.AssertNotCalled(t, "CalculatePricing", mock.Anything, mock.Anything)
		})
	}
}

func TestPricingHandler_RulesAndTiers(t *testing.T) {
	t.Run("rules need a subscription", func(t *testing.T) {
		svc := new(mockPricingService)
		svc.On("UpdatePricingRules", mock.Anything, "ghost", mock.Anything).Return(nil, shared.ErrNotFound)

		w := performRequest(newPricingRouter(svc), http.MethodPut, "/pricing/rules/ghost", `{"pricing_rules":{}}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("tiers listed in catalog order", func(t *testing.T) {
		svc := new(mockPricingService)
		svc.On("ListTiers").Return(billing.DefaultTierCatalog().Tiers())

		w := performRequest(newPricingRouter(svc), http.MethodGet, "/pricing/tiers", nil)

		require.Equal(t, http.StatusOK, w.Code)
		resp, data := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.EqualValues(t, 3, resp.Meta.Total)

		var tiers []map[string]any
		require.NoError(t, json.Unmarshal(data, &tiers))
		assert.Equal(t, "basic", tiers[0]["name"])
		assert.Equal(t, "enterprise", tiers[2]["name"])
	})
}
