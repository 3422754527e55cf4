package router

import (
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a handler's routes on a group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and mounts them under /api/<version>.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineConfig configures the operations engine.
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	// Meter records HTTP metrics; nil disables them.
	Meter            metric.Meter
	ProfilingEnabled bool
	// MaxBodyBytes caps request bodies; zero means 1 MiB.
	MaxBodyBytes   int64
	TrustedProxies []string
	Logger         *zap.Logger
}

const defaultMaxBodyBytes = 1 << 20

// NewEngine builds the operations API: probes at the root, everything
// else under /api/v1/ops.
func NewEngine(cfg EngineConfig, health *handler.HealthHandler, registrars ...RouteRegistrar) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	httpMetrics, err := middleware.HTTPMetrics(cfg.Meter)
	if err != nil {
		return nil, err
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	engine.Use(
		logger.Recovery(cfg.Logger),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		logger.GinMiddleware(cfg.Logger),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		httpMetrics,
		middleware.Profiling(cfg.ProfilingEnabled, "/health", "/ready"),
		middleware.BodyLimit(maxBody),
	)

	engine.GET("/health", health.Health)
	engine.GET("/ready", health.Ready)

	r := NewRouter(engine)
	r.Register(opsGroup(registrars))
	r.Setup()
	return engine, nil
}

type opsGroup []RouteRegistrar

func (g opsGroup) RegisterRoutes(rg *gin.RouterGroup) {
	ops := rg.Group("/ops")
	for _, r := range g {
		r.RegisterRoutes(ops)
	}
}
