// Package router assembles the gin engine: the middleware chain, health
// routes and the versioned API group.
package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/infrastructure/config"
	"github.com/fbsamples/cp-reference/internal/infrastructure/logger"
	"github.com/fbsamples/cp-reference/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	health     gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithHealth serves h at /health and under the API group
func WithHealth(h gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.health = h
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make([]RouteRegistrar, 0),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)

	if r.health != nil {
		r.engine.GET("/health", r.health)
		api.GET("/health", r.health)
	}

	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// EngineOptions configures the middleware chain built by NewEngine
type EngineOptions struct {
	ServiceName string
	Env         string
	HTTP        config.HTTPConfig

	Logger *zap.Logger
	// Nil disables the HTTP metrics middleware
	Meter metric.Meter
	// Nil uses the global provider
	TracerProvider trace.TracerProvider

	TracingEnabled   bool
	ProfilingEnabled bool
}

// NewEngine creates a gin engine with the full middleware chain:
// request ID, logging, recovery, security headers, CORS, body limit,
// rate limit, tracing, metrics and profiling labels.
func NewEngine(opts EngineOptions) *gin.Engine {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	if len(opts.HTTP.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = opts.HTTP.CORSAllowOrigins
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	if opts.HTTP.MaxBodyBytes > 0 {
		engine.Use(middleware.BodyLimit(opts.HTTP.MaxBodyBytes))
	}
	if opts.HTTP.RateLimitPerSecond > 0 {
		limiter := middleware.NewRateLimiter(opts.HTTP.RateLimitPerSecond, opts.HTTP.RateLimitBurst, 10*time.Minute)
		engine.Use(middleware.RateLimit(limiter))
	}

	if opts.TracingEnabled {
		tracingConfig := middleware.DefaultTracingConfig()
		if opts.ServiceName != "" {
			tracingConfig.ServiceName = opts.ServiceName
		}
		tracingConfig.TracerProvider = opts.TracerProvider
		engine.Use(middleware.TracingWithConfig(tracingConfig))
		engine.Use(middleware.SpanEnricher())
	}

	engine.Use(middleware.HTTPMetrics(opts.Meter, log))

	profilingConfig := middleware.DefaultProfilingConfig()
	profilingConfig.Enabled = opts.ProfilingEnabled
	engine.Use(middleware.ProfilingWithConfig(profilingConfig))

	return engine
}
