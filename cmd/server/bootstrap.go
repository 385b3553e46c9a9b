package main

import (
	"context"

	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/services"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/internal/utils"
	"github.com/staysignal/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	db          *gorm.DB
	cfg         *config.Config
	audit       *services.AuditLogger
	settings    *services.TenantSettingsService
	feedback    *services.FeedbackService
	responses   *services.ResponseService
	ingest      *services.IngestService
	alerts      *services.AlertService
	recovery    *services.RecoveryService
	synthesizer *services.Synthesizer
	digests     *services.DigestService
	imBots      *services.IMBotService
	llmConfigs  *services.LLMConfigService
	prompts     *services.PromptService
	auth        *services.AuthService
	managers    *services.ManagerService
	hub         *services.SSEHub
	scheduler   *services.Scheduler
	taskQueue   services.TaskQueue
	worker      *services.Worker
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.Seed(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	st := store.NewGormStore(db)

	auth := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP))
	if err := auth.EnsureOwner(context.Background(), &cfg.Owner); err != nil {
		logger.Warn().Err(err).Msg("Failed to create initial owner")
	}

	audit := services.NewAuditLogger(st)
	settings := services.NewTenantSettingsService(st, cfg)

	// The processor is attached once the services it dispatches to exist.
	taskQueue := services.NewTaskQueue(&cfg.Redis)

	hub := services.NewSSEHub()
	notifier := services.MultiNotifier{services.NewNotificationService(st), hub}

	drafter := services.NewLLMDrafter(db, &cfg.OpenAI)
	feedback := services.NewFeedbackService(st, settings, taskQueue, audit, cfg)
	responses := services.NewResponseService(st, drafter, services.NewKeywordIssueExtractor(), taskQueue, audit, cfg)
	ingest := services.NewIngestService(st, settings, taskQueue, cfg)

	detector := services.NewDetector(st, &cfg.Alerts)
	alerts := services.NewAlertService(detector, st, notifier)
	recovery := services.NewRecoveryService(st, settings)
	synthesizer := services.NewSynthesizer(st, settings, detector, recovery, services.NewHolidayService(), cfg.Reports.Departments)
	digests := services.NewDigestService(st, synthesizer, settings, notifier)
	retry := services.NewDraftRetryService(st, responses, settings, &cfg.Drafting)

	processor := services.NewTaskProcessor(notifier, alerts, responses)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(processor.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis, processor.Process)
		if err := worker.Start(); err != nil {
			logger.Error().Err(err).Msg("Failed to start task worker")
			worker = nil
		}
	}

	scheduler := services.NewScheduler(st, st, cfg, feedback, alerts, digests, retry)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return &appServices{
		db:          db,
		cfg:         cfg,
		audit:       audit,
		settings:    settings,
		feedback:    feedback,
		responses:   responses,
		ingest:      ingest,
		alerts:      alerts,
		recovery:    recovery,
		synthesizer: synthesizer,
		digests:     digests,
		imBots:      services.NewIMBotService(db),
		llmConfigs:  services.NewLLMConfigService(db),
		prompts:     services.NewPromptService(db),
		auth:        auth,
		managers:    services.NewManagerService(db),
		hub:         hub,
		scheduler:   scheduler,
		taskQueue:   taskQueue,
		worker:      worker,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
