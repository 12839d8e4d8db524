package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"eventpass/internal/domain"
)

// QueueConfig tunes the notification dispatch queue.
type QueueConfig struct {
	// DispatchInterval is how often the dispatcher scans for due jobs.
	DispatchInterval time.Duration
	// RetryDelay is how far a failed job's ScheduledFor is pushed.
	RetryDelay time.Duration
	// MaxAttempts caps retries; once reached the job is dropped as
	// dead-lettered. Zero means retry forever.
	MaxAttempts int
}

// DefaultQueueConfig mirrors the production defaults: a 30s tick and a
// 5 minute retry delay with unbounded retries.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		DispatchInterval: 30 * time.Second,
		RetryDelay:       5 * time.Minute,
	}
}

// DispatchQueue is an in-memory notification queue with a scheduled,
// retrying dispatcher. Each instance owns its own dispatcher loop, so
// independent queues can run side by side. Jobs live only for the
// process lifetime.
type DispatchQueue struct {
	mailer    domain.Mailer
	eventRepo domain.EventRepository
	regRepo   domain.RegistrationRepository
	cfg       QueueConfig
	logger    *slog.Logger

	cron *cron.Cron
	now  func() time.Time

	mu          sync.Mutex
	jobs        []*domain.NotificationJob
	inFlight    map[string]bool
	dispatching bool
}

// NewDispatchQueue creates a stopped queue. Call Start to run the
// dispatcher loop and Stop to drain it.
func NewDispatchQueue(
	mailer domain.Mailer,
	eventRepo domain.EventRepository,
	regRepo domain.RegistrationRepository,
	cfg QueueConfig,
	logger *slog.Logger,
) *DispatchQueue {
	if cfg.DispatchInterval <= 0 {
		cfg.DispatchInterval = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Minute
	}
	return &DispatchQueue{
		mailer:    mailer,
		eventRepo: eventRepo,
		regRepo:   regRepo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		inFlight:  make(map[string]bool),
	}
}

// Start launches the dispatcher tick. DelayIfStillRunning serializes
// ticks: an overrunning scan delays the next one instead of
// overlapping it, which would race duplicate sends on the same job.
func (q *DispatchQueue) Start() {
	c := cron.New(cron.WithLocation(time.UTC), cron.WithSeconds())
	schedule := fmt.Sprintf("@every %s", q.cfg.DispatchInterval)
	_, err := c.AddJob(schedule, cron.NewChain(
		cron.DelayIfStillRunning(cron.DiscardLogger),
	).Then(cron.FuncJob(q.dispatchDue)))
	if err != nil {
		q.logger.Error("failed to register dispatch tick", "error", err)
		return
	}
	q.cron = c
	c.Start()
	q.logger.Info("notification dispatcher started", "interval", q.cfg.DispatchInterval)
}

// Stop halts the dispatcher and waits for an in-progress tick to
// finish. Pending jobs stay queued but will no longer be attempted.
func (q *DispatchQueue) Stop() {
	if q.cron == nil {
		return
	}
	ctx := q.cron.Stop()
	<-ctx.Done()
	q.logger.Info("notification dispatcher stopped")
}

// Enqueue adds a job. ScheduledFor defaults to now; callers may set a
// future time for deferred sends such as event reminders. High
// priority jobs get an immediate out-of-band attempt instead of
// waiting for the next tick.
func (q *DispatchQueue) Enqueue(job *domain.NotificationJob) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Kind == "" && job.Payload != nil {
		job.Kind = job.Payload.JobKind()
	}
	now := q.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.ScheduledFor.IsZero() {
		job.ScheduledFor = now
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	immediate := job.Priority == domain.PriorityHigh && !job.ScheduledFor.After(now)
	if immediate {
		q.inFlight[job.ID] = true
	}
	q.mu.Unlock()

	q.logger.Debug("notification enqueued",
		"job_id", job.ID, "kind", job.Kind, "priority", job.Priority,
		"scheduled_for", job.ScheduledFor)

	if immediate {
		go q.attempt(job)
	}
}

// ScheduleEventReminders enqueues a day-before and an hour-before
// reminder for every active registration of the event. Reminders whose
// send time is already past are skipped; the event is imminent or
// underway and a late reminder would only confuse.
func (q *DispatchQueue) ScheduleEventReminders(ctx context.Context, eventID string) error {
	event, err := q.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	regs, err := q.regRepo.ListActiveByEventID(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list active registrations: %w", err)
	}

	leads := []time.Duration{24 * time.Hour, time.Hour}
	now := q.now()
	scheduled := 0
	for _, reg := range regs {
		for _, lead := range leads {
			sendAt := event.StartTime.Add(-lead)
			if !sendAt.After(now) {
				continue
			}
			q.Enqueue(domain.NewNotificationJob(
				domain.Recipient{Email: reg.Email, Name: reg.Name},
				domain.EventReminderPayload{
					EventName:     event.Name,
					EventLocation: event.Location,
					StartsAt:      event.StartTime,
					Lead:          lead,
				},
				domain.PriorityMedium,
				sendAt,
			))
			scheduled++
		}
	}
	q.logger.Info("event reminders scheduled",
		"event_id", eventID, "registrations", len(regs), "jobs", scheduled)
	return nil
}

// Status reports queue depth and whether a tick is in progress.
func (q *DispatchQueue) Status() domain.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return domain.QueueStatus{Pending: len(q.jobs), Dispatching: q.dispatching}
}

// dispatchDue runs one tick: it snapshots the jobs that are due,
// ordered by when they became due, then attempts each one. A failed or
// slow send affects only that job; the scheduling decisions for the
// tick were already made at scan time.
func (q *DispatchQueue) dispatchDue() {
	now := q.now()

	q.mu.Lock()
	q.dispatching = true
	var due []*domain.NotificationJob
	for _, job := range q.jobs {
		if q.inFlight[job.ID] {
			continue
		}
		if !job.ScheduledFor.After(now) {
			due = append(due, job)
			q.inFlight[job.ID] = true
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	q.mu.Unlock()

	for _, job := range due {
		q.attempt(job)
	}

	q.mu.Lock()
	q.dispatching = false
	q.mu.Unlock()
}

// attempt delivers one job. Callers must have marked it in-flight.
func (q *DispatchQueue) attempt(job *domain.NotificationJob) {
	subject, body := renderJob(job)
	err := q.mailer.Send(job.Recipient.Email, subject, "", body)

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, job.ID)

	if err == nil {
		q.remove(job.ID)
		q.logger.Info("notification delivered",
			"job_id", job.ID, "kind", job.Kind, "to", job.Recipient.Email,
			"attempts", job.Attempts+1)
		return
	}

	job.Attempts++
	if q.cfg.MaxAttempts > 0 && job.Attempts >= q.cfg.MaxAttempts {
		q.remove(job.ID)
		q.logger.Error("notification dead-lettered",
			"job_id", job.ID, "kind", job.Kind, "to", job.Recipient.Email,
			"attempts", job.Attempts, "error", err)
		return
	}
	job.ScheduledFor = q.now().Add(q.cfg.RetryDelay)
	q.logger.Warn("notification delivery failed, rescheduled",
		"job_id", job.ID, "kind", job.Kind, "to", job.Recipient.Email,
		"attempts", job.Attempts, "next_attempt", job.ScheduledFor, "error", err)
}

// remove drops a job by ID. Caller holds q.mu.
func (q *DispatchQueue) remove(id string) {
	for i, job := range q.jobs {
		if job.ID == id {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}
