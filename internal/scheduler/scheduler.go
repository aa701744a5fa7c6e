package scheduler

import (
	"context"
	"time"

	"github.com/creditrail/creditrail/internal/credits"
	"github.com/creditrail/creditrail/internal/metrics"
	"github.com/creditrail/creditrail/internal/models"
	"github.com/creditrail/creditrail/internal/plans"
	"github.com/creditrail/creditrail/internal/settings"
	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Scheduler runs the periodic background jobs: recovery ticks for wallets
// with an active package and the package expiry sweep.
type Scheduler struct {
	db       *gorm.DB
	recovery *credits.RecoveryService
	sched    gocron.Scheduler
}

// New constructs a scheduler; call Start to begin running jobs.
func New(db *gorm.DB) (*Scheduler, error) {
	sched, errNew := gocron.NewScheduler()
	if errNew != nil {
		return nil, errNew
	}
	return &Scheduler{
		db:       db,
		recovery: credits.NewRecoveryService(db),
		sched:    sched,
	}, nil
}

// Start registers the jobs and begins the schedule. Intervals come from
// DB-backed settings and are read once at start.
func (s *Scheduler) Start(ctx context.Context) error {
	recoveryInterval := time.Duration(settings.IntValue(settings.RecoverySweepIntervalSecondsKey, settings.DefaultRecoverySweepIntervalSeconds)) * time.Second
	expiryInterval := time.Duration(settings.IntValue(settings.ExpirySweepIntervalSecondsKey, settings.DefaultExpirySweepIntervalSeconds)) * time.Second

	if _, errJob := s.sched.NewJob(
		gocron.DurationJob(recoveryInterval),
		gocron.NewTask(func() { s.recoverySweep(ctx) }),
	); errJob != nil {
		return errJob
	}
	if _, errJob := s.sched.NewJob(
		gocron.DurationJob(expiryInterval),
		gocron.NewTask(func() { s.expirySweep(ctx) }),
	); errJob != nil {
		return errJob
	}

	s.sched.Start()
	log.WithFields(log.Fields{
		"recovery_interval": recoveryInterval,
		"expiry_interval":   expiryInterval,
	}).Info("scheduler started")
	return nil
}

// Stop shuts the schedule down and waits for running jobs.
func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// recoverySweep ticks every wallet whose owner has an unexpired active
// package. Conflicts are skipped; the next sweep catches the wallet up
// because recovery is computed from elapsed time, not from tick count.
func (s *Scheduler) recoverySweep(ctx context.Context) {
	now := time.Now().UTC()

	var userIDs []uint64
	errFind := s.db.WithContext(ctx).
		Model(&models.UserPackage{}).
		Where("is_active = ? AND end_at > ?", true, now).
		Distinct().
		Pluck("user_id", &userIDs).Error
	if errFind != nil {
		log.WithError(errFind).Error("recovery sweep: list users")
		return
	}

	for _, userID := range userIDs {
		res, errTick := s.recovery.Tick(ctx, userID, now)
		if errTick != nil {
			log.WithError(errTick).WithField("user_id", userID).Error("recovery tick")
			continue
		}
		metrics.RecoveriesTotal.WithLabelValues(metrics.Outcome(res.Success, string(res.ErrorCode))).Inc()
		if res.Success && res.Recovered > 0 {
			metrics.RecoveredTokensTotal.Add(float64(res.Recovered))
			log.WithFields(log.Fields{
				"user_id":   userID,
				"recovered": res.Recovered,
				"balance":   res.Balance,
			}).Debug("recovery tick")
		}
	}
}

// expirySweep flips lapsed assignments to inactive.
func (s *Scheduler) expirySweep(ctx context.Context) {
	now := time.Now().UTC()
	var expired int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errExpire error
		expired, errExpire = plans.ExpireLapsedTx(ctx, tx, now)
		return errExpire
	})
	if errTx != nil {
		log.WithError(errTx).Error("expiry sweep")
		return
	}
	if expired > 0 {
		log.WithField("expired", expired).Info("expiry sweep deactivated packages")
	}
}
