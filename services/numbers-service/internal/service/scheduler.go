package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vanityline/vanityline/pkg/logger"
)

const (
	JobExpiry      = "expiry"
	JobReminder    = "reminder"
	JobReservation = "reservation"
)

// ReminderDays are the days-before-expiry on which a renewal reminder is sent.
var ReminderDays = []int{7, 3, 1}

// SubscriptionEvents is what the sweeps trigger.
type SubscriptionEvents interface {
	Expiring(ctx context.Context, subscriptionID primitive.ObjectID, days int) error
	Expired(ctx context.Context, subscriptionID primitive.ObjectID) error
}

type SchedulerConfig struct {
	ExpirySpec                 string
	ReminderSpec               string
	ReservationSpec            string
	ReleaseExpiredReservations bool
	LockTTL                    time.Duration
	Location                   *time.Location
}

// Scheduler runs the periodic subscription sweeps on a cron goroutine. Each sweep processes
// documents one at a time and stops at the first error; the next tick starts over.
type Scheduler struct {
	cron          *cron.Cron
	cfg           SchedulerConfig
	subscriptions SubscriptionRepository
	events        SubscriptionEvents
	phones        *PhoneService
	locker        Locker
	metrics       *Metrics
	logger        logger.Logger
	now           func() time.Time
}

func NewScheduler(
	cfg SchedulerConfig,
	subscriptions SubscriptionRepository,
	events SubscriptionEvents,
	phones *PhoneService,
	locker Locker,
	metrics *Metrics,
	log logger.Logger,
) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Scheduler{
		cron:          cron.New(cron.WithLocation(cfg.Location)),
		cfg:           cfg,
		subscriptions: subscriptions,
		events:        events,
		phones:        phones,
		locker:        locker,
		metrics:       metrics,
		logger:        log,
		now:           time.Now,
	}
}

type sweep func(ctx context.Context) (int, error)

type cronJob struct {
	name string
	spec string
	run  sweep
}

func (s *Scheduler) Start() error {
	jobs := []cronJob{
		{JobExpiry, s.cfg.ExpirySpec, s.RunExpirySweep},
		{JobReminder, s.cfg.ReminderSpec, s.RunReminderSweep},
	}
	if s.cfg.ReleaseExpiredReservations {
		jobs = append(jobs, cronJob{JobReservation, s.cfg.ReservationSpec, s.RunReservationSweep})
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() { s.runLocked(job.name, job.run) }); err != nil {
			return fmt.Errorf("failed to schedule %s job %q: %w", job.name, job.spec, err)
		}
		s.logger.Info("Scheduled job", logger.F("job", job.name), logger.F("spec", job.spec))
	}

	s.cron.Start()
	return nil
}

// Stop prevents new ticks and waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with a sweep still running")
	}
}

func (s *Scheduler) runLocked(job string, run sweep) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()
	log := s.logger.WithField("job", job)

	unlock, err := s.locker.TryLock(ctx, "scheduler:"+job, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			s.metrics.SweepSkipped.WithLabelValues(job).Inc()
			log.Debug("Sweep skipped, lock held elsewhere")
			return
		}
		s.metrics.SweepErrors.WithLabelValues(job).Inc()
		log.Error("Failed to acquire scheduler lock", logger.Err(err))
		return
	}
	defer unlock()

	start := time.Now()
	processed, err := run(ctx)
	s.metrics.SweepDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	s.metrics.SweepProcessed.WithLabelValues(job).Add(float64(processed))

	if err != nil {
		s.metrics.SweepErrors.WithLabelValues(job).Inc()
		log.Error("Sweep failed", logger.F("processed", processed), logger.Err(err))
		return
	}
	log.Info("Sweep finished", logger.F("processed", processed))
}

// RunExpirySweep expires every subscription whose end date has passed.
func (s *Scheduler) RunExpirySweep(ctx context.Context) (int, error) {
	expired, err := s.subscriptions.FindExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to find expired subscriptions: %w", err)
	}

	for i, sub := range expired {
		if err := s.events.Expired(ctx, sub.ID); err != nil {
			return i, fmt.Errorf("failed to expire subscription %s: %w", sub.ID.Hex(), err)
		}
	}
	return len(expired), nil
}

// RunReminderSweep sends reminders for subscriptions ending on the calendar day that is
// 7, 3 or 1 days from now.
func (s *Scheduler) RunReminderSweep(ctx context.Context) (int, error) {
	now := s.now().In(s.cfg.Location)
	processed := 0

	for _, days := range ReminderDays {
		start, end := reminderWindow(now, days)
		subs, err := s.subscriptions.FindExpiringBetween(ctx, start, end)
		if err != nil {
			return processed, fmt.Errorf("failed to find subscriptions expiring in %d days: %w", days, err)
		}

		for _, sub := range subs {
			if err := s.events.Expiring(ctx, sub.ID, days); err != nil {
				return processed, fmt.Errorf("failed to remind subscription %s: %w", sub.ID.Hex(), err)
			}
			processed++
		}
	}
	return processed, nil
}

// reminderWindow is [local midnight of now+days, the following midnight).
func reminderWindow(now time.Time, days int) (time.Time, time.Time) {
	target := now.AddDate(0, 0, days)
	start := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func (s *Scheduler) RunReservationSweep(ctx context.Context) (int, error) {
	return s.phones.ReleaseExpired(ctx)
}
