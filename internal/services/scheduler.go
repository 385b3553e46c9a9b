package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/staysignal/backend/internal/config"
	"github.com/staysignal/backend/internal/models"
	"github.com/staysignal/backend/internal/store"
	"github.com/staysignal/backend/pkg/logger"
)

const (
	JobMorningDigest = "morning_digest"
	JobWeeklyDigest  = "weekly_digest"
	JobCriticalCheck = "critical_check"
	JobSLASweep      = "sla_sweep"
	JobDraftRetry    = "draft_retry"
	JobLockCleanup   = "lock_cleanup"
)

const jobTimeout = 5 * time.Minute

// Locker claims a job period so that only one instance runs it.
type Locker interface {
	TryLock(ctx context.Context, name, key, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseExpiredLocks(ctx context.Context, cutoff time.Time) (int64, error)
}

type scheduledJob struct {
	name   string
	spec   string
	period func(now time.Time) (key string, ttl time.Duration)
	run    func(ctx context.Context, tenantID uint, now time.Time) error
}

// Scheduler runs the periodic per-tenant jobs on cron specs.
type Scheduler struct {
	cron   *cron.Cron
	store  store.Store
	locker Locker
	owner  string
	jobs   map[string]scheduledJob
	mu     sync.Mutex
}

func NewScheduler(st store.Store, locker Locker, cfg *config.Config, feedback *FeedbackService, alerts *AlertService, digests *DigestService, retry *DraftRetryService) *Scheduler {
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		store:  st,
		locker: locker,
		owner:  uuid.NewString(),
		jobs:   make(map[string]scheduledJob),
	}

	retryEvery := cfg.Drafting.RetryInterval
	if retryEvery <= 0 {
		retryEvery = 10 * time.Minute
	}

	s.register(scheduledJob{
		name:   JobMorningDigest,
		spec:   cfg.Reports.MorningCron,
		period: dailyPeriod,
		run: func(ctx context.Context, tenantID uint, now time.Time) error {
			_, err := digests.Run(ctx, tenantID, models.ReportTypeMorning, now)
			return err
		},
	})
	s.register(scheduledJob{
		name:   JobWeeklyDigest,
		spec:   cfg.Reports.WeeklyCron,
		period: weeklyPeriod,
		run: func(ctx context.Context, tenantID uint, now time.Time) error {
			_, err := digests.Run(ctx, tenantID, models.ReportTypeWeekly, now)
			return err
		},
	})
	s.register(scheduledJob{
		name:   JobCriticalCheck,
		spec:   cfg.Reports.CriticalCron,
		period: windowPeriod(time.Minute),
		run: func(ctx context.Context, tenantID uint, now time.Time) error {
			if _, err := alerts.CheckAndNotify(ctx, tenantID, now); err != nil {
				return err
			}
			_, err := digests.Run(ctx, tenantID, models.ReportTypeCritical, now)
			return err
		},
	})
	s.register(scheduledJob{
		name:   JobSLASweep,
		spec:   cfg.Reports.SLASweepCron,
		period: windowPeriod(time.Minute),
		run: func(ctx context.Context, tenantID uint, now time.Time) error {
			_, err := feedback.SweepSLABreaches(ctx, tenantID, now)
			return err
		},
	})
	s.register(scheduledJob{
		name:   JobDraftRetry,
		spec:   fmt.Sprintf("@every %s", retryEvery),
		period: windowPeriod(retryEvery),
		run: func(ctx context.Context, tenantID uint, now time.Time) error {
			_, err := retry.ProcessTenant(ctx, tenantID)
			return err
		},
	})
	return s
}

func (s *Scheduler) register(job scheduledJob) {
	s.jobs[job.name] = job
}

func dailyPeriod(now time.Time) (string, time.Duration) {
	return now.UTC().Format("2006-01-02"), 36 * time.Hour
}

func weeklyPeriod(now time.Time) (string, time.Duration) {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week), 8 * 24 * time.Hour
}

func windowPeriod(window time.Duration) func(time.Time) (string, time.Duration) {
	return func(now time.Time) (string, time.Duration) {
		return now.UTC().Truncate(window).Format(time.RFC3339), window
	}
}

// Start registers every job with a cron spec and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		if job.spec == "" {
			logger.Infof("[Scheduler] Job %s disabled (empty spec)", name)
			continue
		}
		jobName := name
		if _, err := s.cron.AddFunc(job.spec, func() {
			if err := s.RunJob(context.Background(), jobName, time.Now().UTC()); err != nil {
				logger.Errorf("[Scheduler] Job %s failed: %v", jobName, err)
			}
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, job.spec, err)
		}
		logger.Infof("[Scheduler] Job %s scheduled (cron: %s)", name, job.spec)
	}

	if _, err := s.cron.AddFunc("@daily", func() {
		if n, err := s.locker.ReleaseExpiredLocks(context.Background(), time.Now().Add(-24*time.Hour)); err != nil {
			logger.Warnf("[Scheduler] Lock cleanup failed: %v", err)
		} else if n > 0 {
			logger.Infof("[Scheduler] Removed %d expired locks", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobLockCleanup, err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] Started (owner %s)", s.owner)
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] Stopped")
}

// RunJob runs one job for every active tenant whose period lock this
// instance wins. Tenant failures are logged and do not stop the run.
func (s *Scheduler) RunJob(ctx context.Context, name string, now time.Time) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: unknown job %q", ErrValidation, name)
	}

	tenants, err := s.store.ListActiveTenants(ctx)
	if err != nil {
		return err
	}

	period, ttl := job.period(now)
	ran := 0
	for _, tenant := range tenants {
		key := fmt.Sprintf("%d:%s", tenant.ID, period)
		held, err := s.locker.TryLock(ctx, name, key, s.owner, now, ttl)
		if err != nil {
			logger.Warnf("[Scheduler] Lock %s/%s failed: %v", name, key, err)
			continue
		}
		if !held {
			continue
		}

		tenantCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		err = job.run(tenantCtx, tenant.ID, now)
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("job", name).Uint("tenant_id", tenant.ID).Msg("[Scheduler] Tenant run failed")
			continue
		}
		ran++
	}

	logger.Debug().Str("job", name).Int("tenants", ran).Msg("[Scheduler] Job complete")
	return nil
}
