package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/squill/backend/internal/interfaces/http/handler"
	"github.com/squill/backend/internal/interfaces/http/middleware"
)

// Handlers are the HTTP handlers of the billing API
type Handlers struct {
	Usage     *handler.UsageHandler
	Customers *handler.CustomerHandler
	Pricing   *handler.PricingHandler
	Invoices  *handler.InvoiceHandler
	System    *handler.SystemHandler
}

// BillingGroups returns the route groups served under /api/v1
func BillingGroups(h Handlers) []*DomainGroup {
	usage := NewDomainGroup("usage", "/usage").
		POST("", h.Usage.IngestUsage)

	customers := NewDomainGroup("customers", "/customers").
		POST("", h.Customers.Create).
		GET("/:id", h.Customers.Get).
		PUT("/:id", h.Customers.Update).
		GET("/:id/usage", h.Usage.GetCustomerUsage)

	subscriptions := NewDomainGroup("subscriptions", "/subscriptions").
		POST("", h.Pricing.CreateSubscription).
		GET("/:client_id", h.Pricing.GetSubscription)

	pricing := NewDomainGroup("pricing", "/pricing").
		POST("/calculate", h.Pricing.CalculatePricing).
		PUT("/rules/:client_id", h.Pricing.UpdatePricingRules).
		GET("/tiers", h.Pricing.ListTiers)

	invoices := NewDomainGroup("invoices", "/invoices").
		POST("", h.Invoices.Generate).
		POST("/batch", h.Invoices.GenerateBatch).
		POST("/platform", h.Invoices.GeneratePlatform).
		GET("", h.Invoices.List).
		GET("/:id", h.Invoices.Get).
		GET("/:id/pdf", h.Invoices.PDF).
		PATCH("/:id/status", h.Invoices.UpdateStatus)

	analytics := NewDomainGroup("analytics", "/analytics").
		GET("", h.Invoices.Analytics)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo).
		POST("/invoice-run", h.System.RunInvoices)

	return []*DomainGroup{usage, customers, subscriptions, pricing, invoices, analytics, system}
}

// Mount registers /health and every billing route on engine
func Mount(engine *gin.Engine, h Handlers) {
	engine.GET("/health", h.System.Health)

	r := NewRouter(engine)
	for _, g := range BillingGroups(h) {
		r.Register(g)
	}
	r.Setup()
}

// MountDocs serves the registered OpenAPI document and Swagger UI under
// /swagger, guarded by cfg
func MountDocs(engine *gin.Engine, cfg middleware.SwaggerConfig) {
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg),
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")),
	)
}
