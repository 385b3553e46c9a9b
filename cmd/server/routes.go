package main

import (
	"github.com/gin-gonic/gin"
	"github.com/staysignal/backend/internal/handlers"
	"github.com/staysignal/backend/internal/middleware"
	"github.com/staysignal/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	feedbackHandler := handlers.NewFeedbackHandler(svc.feedback)
	reviewHandler := handlers.NewReviewHandler(svc.ingest, svc.responses)
	responseHandler := handlers.NewResponseHandler(svc.responses)
	alertHandler := handlers.NewAlertHandler(svc.alerts)
	reportHandler := handlers.NewReportHandler(svc.synthesizer, svc.digests, svc.recovery)
	settingsHandler := handlers.NewSettingsHandler(svc.settings)
	imBotHandler := handlers.NewIMBotHandler(svc.imBots)
	llmConfigHandler := handlers.NewLLMConfigHandler(svc.llmConfigs)
	promptHandler := handlers.NewPromptHandler(svc.prompts)
	systemLogHandler := handlers.NewSystemLogHandler(svc.audit)
	authHandler := handlers.NewAuthHandler(svc.auth, svc.cfg.LDAP.Enabled)
	managerHandler := handlers.NewManagerHandler(svc.managers)

	// Health check
	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue)
	r.GET("/health", healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		// Guest QR submissions and sign-in are anonymous, so they are throttled per client.
		publicLimiter := middleware.NewRateLimiter(svc.cfg.Server.PublicRPS, svc.cfg.Server.PublicBurst).WithKey(middleware.TenantAndIP)
		api.POST("/public/tenants/:tenant_id/feedback", publicLimiter.Middleware(), feedbackHandler.Submit)

		authLimiter := middleware.NewRateLimiter(svc.cfg.Server.PublicRPS, svc.cfg.Server.PublicBurst)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authLimiter.Middleware(), authHandler.Login)
			auth.POST("/refresh", authLimiter.Middleware(), authHandler.Refresh)
			auth.GET("/config", authHandler.GetAuthConfig)
		}

		// SSE events (token validated inside the handler)
		sseHandler := handlers.NewSSEHandler(svc.hub)
		api.GET("/events", sseHandler.StreamEvents)

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.Me)
			protected.POST("/auth/logout", authHandler.Logout)
			protected.POST("/auth/change-password", authHandler.ChangePassword)

			// Internal feedback
			protected.GET("/feedback/queue", feedbackHandler.Queue)
			protected.GET("/feedback/:id", feedbackHandler.Get)
			protected.POST("/feedback/:id/acknowledge", feedbackHandler.Acknowledge)
			protected.POST("/feedback/:id/resolve", feedbackHandler.Resolve)

			// External reviews and responses
			protected.POST("/reviews", reviewHandler.Ingest)
			protected.POST("/snapshots", reviewHandler.IngestSnapshot)
			protected.POST("/reviews/:id/responses", reviewHandler.GenerateResponse)
			protected.GET("/reviews/:id/responses", reviewHandler.ListResponses)
			protected.GET("/responses/:id", responseHandler.Get)
			protected.POST("/responses/:id/approve", responseHandler.Approve)
			protected.POST("/responses/:id/reject", responseHandler.Reject)
			protected.POST("/responses/:id/posted", responseHandler.MarkPosted)
			protected.PUT("/responses/:id/text", responseHandler.EditText)

			// Alerts
			protected.GET("/alerts", alertHandler.Active)
			protected.GET("/alerts/history", alertHandler.History)

			// Reports
			protected.GET("/reports", reportHandler.List)
			protected.GET("/reports/:type", reportHandler.Synthesize)
			protected.POST("/reports/:type/:date/resend", reportHandler.Resend)
			protected.POST("/recovery-plan", reportHandler.RecoveryPlan)

			// System logs
			protected.GET("/system-logs", systemLogHandler.List)

			// Settings and channels (management only)
			admin := protected.Group("")
			admin.Use(middleware.RoleRequired("general_manager", "owner"), middleware.AuditLog(svc.audit))
			{
				admin.GET("/settings", settingsHandler.Get)
				admin.PUT("/settings", settingsHandler.Update)

				admin.GET("/managers", managerHandler.List)
				admin.POST("/managers", managerHandler.Create)
				admin.PUT("/managers/:id", managerHandler.Update)
				admin.DELETE("/managers/:id", managerHandler.Delete)

				admin.GET("/im-bots", imBotHandler.List)
				admin.POST("/im-bots", imBotHandler.Create)
				admin.PUT("/im-bots/:id", imBotHandler.Update)
				admin.DELETE("/im-bots/:id", imBotHandler.Delete)

				admin.GET("/llm-configs", llmConfigHandler.List)
				admin.POST("/llm-configs", llmConfigHandler.Create)
				admin.PUT("/llm-configs/:id", llmConfigHandler.Update)
				admin.DELETE("/llm-configs/:id", llmConfigHandler.Delete)

				admin.GET("/prompts", promptHandler.List)
				admin.POST("/prompts", promptHandler.Create)
				admin.PUT("/prompts/:id", promptHandler.Update)
				admin.DELETE("/prompts/:id", promptHandler.Delete)
			}
		}
	}
}
