package router

import (
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/civiclens/civiclens-go/internal/handler"
	"github.com/civiclens/civiclens-go/internal/middleware"
)

// Handlers holds all handler instances needed by the router.
type Handlers struct {
	Submission *handler.SubmissionHandler
	Report     *handler.ReportHandler
	Admin      *handler.AdminHandler
	Ops        *handler.OpsHandler
	Health     *handler.HealthHandler
}

// Setup configures the middleware stack and all API routes on the given Fiber app.
func Setup(app *fiber.App, h *Handlers, corsOrigins string) {
	// Middleware stack (order matters)
	app.Use(recoverer.New())
	app.Use(middleware.NewRequestLogger())
	app.Use(handler.MetricsMiddleware())
	app.Use(middleware.NewCORS(corsOrigins))

	// Probes and metrics (before API group, no rate limits)
	app.Get("/health/live", h.Health.Live)
	app.Get("/health/ready", h.Health.Ready)
	app.Get("/metrics", handler.MetricsHandler())

	submitLimiter := middleware.NewSubmitRateLimiter()
	reportLimiter := middleware.NewReportRateLimiter()
	opsLimiter := middleware.NewOpsRateLimiter()

	api := app.Group("/api")

	// Submission routes
	api.Post("/submissions", h.Submission.Submit, submitLimiter.Handler())
	api.Get("/submissions/:id", h.Submission.Get, reportLimiter.Handler())

	// Public report routes
	api.Get("/reports/:id", h.Report.Get, reportLimiter.Handler())

	// Operator routes
	api.Get("/ops/queue", h.Ops.QueueStats, opsLimiter.Handler())
	api.Post("/ops/queue/requeue", h.Ops.Requeue, opsLimiter.Handler())

	// Admin override routes
	api.Post("/admin/users/:userId/clear-shadow-ban", h.Admin.ClearShadowBan, opsLimiter.Handler())
	api.Post("/admin/users/:userId/suspend", h.Admin.Suspend, opsLimiter.Handler())
	api.Get("/admin/users/:userId/history", h.Admin.UserHistory, opsLimiter.Handler())
	api.Put("/admin/users/:userId/trust-score", h.Admin.SetTrustScore, opsLimiter.Handler())
	api.Delete("/admin/ip-bans/:ipHash", h.Admin.RemoveIPBan, opsLimiter.Handler())
}
