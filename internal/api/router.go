package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/superproxy/relay-gateway/internal/api/handler"
	"github.com/superproxy/relay-gateway/internal/api/middleware"
	"github.com/superproxy/relay-gateway/internal/core/ports"
	"github.com/superproxy/relay-gateway/internal/infrastructure/relay"
)

// Dependencies carries the wired services the router exposes. Construction
// happens in main so lifecycle concerns (allocator workers, usage reporter
// drain) stay out of the HTTP layer.
type Dependencies struct {
	Codec         ports.SessionCodec
	Usage         ports.UsageMeter
	Agents        ports.AgentService
	Subscriptions ports.SubscriptionService
	Allocator     ports.Allocator
	Nodes         ports.NodeRepository
	Domains       ports.DomainRepository
	Accounts      ports.AccountRepository
	Allocations   ports.AllocationRepository
	Registry      *relay.Registry

	Mongo *mongo.Database
	Redis *redis.Client

	JWTSecret   string
	AgentSecret string
	UsageSecret string

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("gateway"))

	// --- Handlers ---
	relayHandler := handler.NewRelayHandler(deps.Codec, deps.Usage, deps.Allocations, deps.Nodes, deps.Registry, deps.Log)
	usageHandler := handler.NewUsageHandler(deps.Usage)
	agentHandler := handler.NewAgentHandler(deps.Agents)
	subscriptionHandler := handler.NewSubscriptionHandler(deps.Subscriptions)
	adminHandler := handler.NewAdminHandler(deps.Nodes, deps.Domains, deps.Accounts, deps.Allocator, deps.Log)
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	authMiddleware := middleware.Auth(deps.JWTSecret)
	adminOnly := middleware.RBAC("admin")

	// --- Tunnel entry point ---
	e.GET("/sp-ws/:token", relayHandler.Connect)

	// --- Health probes (no auth required) ---
	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Machine surfaces (shared secrets) ---
	usage := e.Group("/api/usage", middleware.SharedSecret("X-Usage-Secret", deps.UsageSecret))
	usage.POST("/report", usageHandler.Report)
	usage.GET("/:userId", usageHandler.Current)

	agent := e.Group("/api/agent", middleware.SharedSecret("X-Agent-Secret", deps.AgentSecret))
	agent.GET("/config", agentHandler.Sync)
	agent.POST("/config", agentHandler.Sync)

	// --- Operator surfaces (JWT) ---
	e.GET("/api/subscription/:userId", subscriptionHandler.Resolve, authMiddleware)

	admin := e.Group("/api/admin", authMiddleware, adminOnly)
	admin.POST("/nodes", adminHandler.RegisterNode)
	admin.GET("/nodes", adminHandler.ListNodes)
	admin.POST("/domains", adminHandler.RegisterDomain)
	admin.GET("/domains", adminHandler.ListDomains)
	admin.POST("/users/:id/block", adminHandler.BlockUser)

	return e
}
