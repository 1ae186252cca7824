package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/squill/backend/internal/infrastructure/logger"
	"github.com/squill/backend/internal/interfaces/http/middleware"
)

// EngineConfig selects the middleware stack of the engine
type EngineConfig struct {
	// ReleaseMode switches gin out of debug mode
	ReleaseMode    bool
	TrustedProxies []string
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
	Tracing     middleware.TracingConfig
	// Meter is optional; nil disables HTTP metrics
	Meter     metric.Meter
	Profiling middleware.ProfilingConfig
}

// NewEngine builds a gin engine with the middleware stack in order:
// recovery, request id, tracing, access log, security headers, CORS,
// body limit, rate limit, metrics, profiling labels.
func NewEngine(cfg EngineConfig, log *zap.Logger) (*gin.Engine, error) {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.RegisterValidators()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.CORS))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
		log.Info("Rate limiting enabled", zap.Int("requests", cfg.RateLimiter.Limit()))
	}

	if cfg.Meter != nil {
		httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
		if err != nil {
			return nil, fmt.Errorf("http metrics: %w", err)
		}
		engine.Use(httpMetrics)
	}

	engine.Use(middleware.Profiling(cfg.Profiling))
	return engine, nil
}
