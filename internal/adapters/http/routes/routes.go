package routes

import (
	"time"

	"tontinehub/internal/adapters/http/handlers"
	"tontinehub/internal/adapters/http/middleware"
	"tontinehub/internal/adapters/persistence/repositories"
	"tontinehub/internal/config"
	"tontinehub/internal/core/services"
	"tontinehub/internal/pkg/metrics"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application and wires the service
// graph. Returns the draw service so the scheduler can drive it.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.DrawService {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	poolRepo := repositories.NewPoolRepository(db)
	participantRepo := repositories.NewParticipantRepository(db)
	paymentRepo := repositories.NewPaymentRepository(db)
	drawRepo := repositories.NewDrawRepository(db)

	// Metrics registry
	drawMetrics := metrics.New()

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg)
	poolService := services.NewPoolService(poolRepo, userRepo, cfg.Draw.MinRosterSize)

	notifyService := services.NewNotificationService()
	dispatcher := services.NewAsyncDispatcher(notifyService, drawMetrics)

	paymentService := services.NewPaymentService(paymentRepo, poolRepo, dispatcher)

	eligibility := services.NewEligibilityService(cfg.Draw.EligibilityPolicy)
	selector := services.NewSelector(nil)
	drawService := services.NewDrawService(
		poolRepo,
		drawRepo,
		paymentRepo,
		participantRepo,
		eligibility,
		selector,
		dispatcher,
		drawMetrics,
		time.Duration(cfg.Draw.PollIntervalSecs)*time.Second,
	)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	poolHandler := handlers.NewPoolHandler(poolService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	drawHandler := handlers.NewDrawHandler(drawService)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Prometheus metrics
	app.Get("/metrics", adaptor.HTTPHandler(drawMetrics.Handler()))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	setupAPIV1Routes(apiV1, healthHandler, authHandler, poolHandler, paymentHandler, drawHandler, cfg)

	return drawService
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	poolHandler *handlers.PoolHandler,
	paymentHandler *handlers.PaymentHandler,
	drawHandler *handlers.DrawHandler,
	cfg *config.Config,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := router.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	// User management routes (Admin only)
	userRoutes := router.Group("/users")
	userRoutes.Use(middleware.AuthMiddleware(cfg))
	userRoutes.Use(middleware.AdminOnly())
	userRoutes.Get("/", authHandler.ListUsers)

	// Pool routes (Authenticated users)
	poolRoutes := router.Group("/pools")
	poolRoutes.Use(middleware.AuthMiddleware(cfg))
	setupPoolRoutes(poolRoutes, poolHandler, paymentHandler, drawHandler)

	// Payment routes (Authenticated users)
	paymentRoutes := router.Group("/payments")
	paymentRoutes.Use(middleware.AuthMiddleware(cfg))
	setupPaymentRoutes(paymentRoutes, paymentHandler)

	// Draw routes (Treasurer/Admin only)
	drawRoutes := router.Group("/draws")
	drawRoutes.Use(middleware.AuthMiddleware(cfg))
	drawRoutes.Use(middleware.TreasurerOrAdmin())
	drawRoutes.Post("/:id/cancel", drawHandler.CancelDraw)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes (rate limited against brute force)
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
}

// setupPoolRoutes configures pool, roster and round routes
func setupPoolRoutes(router fiber.Router, poolHandler *handlers.PoolHandler, paymentHandler *handlers.PaymentHandler, drawHandler *handlers.DrawHandler) {
	// Pool management
	router.Get("/", poolHandler.ListPools)
	router.Get("/:id", poolHandler.GetPool)

	// Roster and lifecycle changes (Treasurer/Admin)
	router.Post("/", middleware.TreasurerOrAdmin(), poolHandler.CreatePool)
	router.Post("/:id/members", middleware.TreasurerOrAdmin(), poolHandler.AddMember)
	router.Put("/:id/treasurer", middleware.AdminOnly(), poolHandler.SetTreasurer)
	router.Post("/:id/activate", middleware.TreasurerOrAdmin(), poolHandler.Activate)
	router.Post("/:id/suspend", middleware.TreasurerOrAdmin(), poolHandler.Suspend)
	router.Post("/:id/resume", middleware.TreasurerOrAdmin(), poolHandler.Resume)

	// Contributions
	router.Get("/:id/payments", paymentHandler.ListByPool)

	// Round lifecycle
	router.Post("/:id/rounds", middleware.TreasurerOrAdmin(), middleware.DrawRateLimiter(), drawHandler.StartRound)
	router.Post("/:id/rounds/respond", drawHandler.Respond)
	router.Post("/:id/rounds/manual", middleware.AdminOnly(), drawHandler.ManualDraw)
	router.Delete("/:id/rounds/current", middleware.TreasurerOrAdmin(), drawHandler.AbortRound)

	// Round queries (never cached, state changes while the window is open)
	router.Get("/:id/rounds", middleware.NoCacheHeaders(), drawHandler.ListRounds)
	router.Get("/:id/rounds/:round", middleware.NoCacheHeaders(), drawHandler.GetRoundResult)
}

// setupPaymentRoutes configures payment routes
func setupPaymentRoutes(router fiber.Router, handler *handlers.PaymentHandler) {
	router.Post("/", handler.RecordPayment)

	// Validation is a treasurer action
	router.Post("/:id/validate", middleware.TreasurerOrAdmin(), handler.Validate)
	router.Post("/:id/reject", middleware.TreasurerOrAdmin(), handler.Reject)
}
