package main

import (
	"fleetdesk/internal/audit"
	"fleetdesk/internal/handler"
	"fleetdesk/internal/middleware"
	"fleetdesk/internal/session"
	"fleetdesk/internal/tenant"
	"fleetdesk/pkg/config"
	"fleetdesk/pkg/database"
	"fleetdesk/pkg/jwtutil"
	"fleetdesk/pkg/logger"
	"fleetdesk/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting fleetdesk...", zap.String("environment", cfg.Server.Env))

	// Initialize database (migrations run automatically)
	if err := database.Initialize(&cfg.DB); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	db := database.GetDB()
	log.Info("Database connection established and migrations completed")

	// Initialize token signing
	jwtutil.Initialize(&cfg.JWT)

	// Wire the tenancy core
	recorder := audit.NewRecorder(db, log)
	registry := tenant.NewRegistry(db, recorder, log)
	memberships := tenant.NewMemberships(db, recorder, log)
	invitations := tenant.NewInvitations(db, memberships, recorder, log)
	sessions := session.NewStore(cfg.Tenancy.SessionCookie)

	handler.Init(handler.Deps{
		DB:          db,
		Registry:    registry,
		Memberships: memberships,
		Invitations: invitations,
		Sessions:    sessions,
		Recorder:    recorder,
	})

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.Authenticate(db))
	e.Use(middleware.TenantResolver(middleware.TenantResolverConfig{
		Registry:           registry,
		Memberships:        memberships,
		Sessions:           sessions,
		ReservedSubdomains: cfg.Tenancy.ReservedSubdomains,
		PublicPaths:        cfg.Tenancy.PublicPaths,
		TenantHeader:       cfg.Tenancy.TenantHeader,
	}))

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/logout", handler.Logout, middleware.RequireAuth)
	auth.GET("/profile", handler.GetProfile, middleware.RequireAuth)

	// Tenant management - authentication required, tenant context optional
	tenants := e.Group("/tenants", middleware.RequireAuth)
	tenants.POST("", handler.CreateTenant)
	tenants.GET("", handler.ListUserTenants)
	tenants.GET("/:id", handler.GetTenant)
	tenants.POST("/select", handler.SelectTenant)
	tenants.DELETE("/:id", handler.DeactivateTenant)

	// Membership management inside the active tenant
	members := e.Group("/members", middleware.RequireAuth, middleware.RequireTenantContext)
	members.POST("", handler.AddMember)
	members.DELETE("/:id", handler.RemoveMember)

	// Invitations: creation needs a tenant, acceptance only a login
	invites := e.Group("/invitations", middleware.RequireAuth)
	invites.POST("", handler.CreateInvitation, middleware.RequireTenantContext)
	invites.GET("/:token", handler.GetInvitation)
	invites.POST("/accept/:token", handler.AcceptInvitation)

	// Tenant-scoped business resources
	api := e.Group("/api", middleware.RequireAuth, middleware.RequireTenantContext)

	vehicles := api.Group("/vehicles")
	vehicles.POST("", handler.CreateVehicle)
	vehicles.GET("", handler.ListVehicles)
	vehicles.GET("/:id", handler.GetVehicle)
	vehicles.PATCH("/:id", handler.UpdateVehicle)

	employees := api.Group("/employees")
	employees.POST("", handler.CreateEmployee)
	employees.GET("", handler.ListEmployees)
	employees.GET("/:id", handler.GetEmployee)
	employees.PUT("/:id/driver-profile", handler.UpsertDriverProfile)
	employees.POST("/:id/terminate", handler.TerminateEmployee)

	maintenance := api.Group("/maintenance")
	maintenance.POST("", handler.ScheduleMaintenance)
	maintenance.GET("", handler.ListMaintenance)
	maintenance.POST("/:id/complete", handler.CompleteMaintenance)

	assignments := api.Group("/assignments")
	assignments.POST("", handler.CreateAssignment)
	assignments.GET("", handler.ListAssignments)
	assignments.POST("/:id/end", handler.EndAssignment)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
