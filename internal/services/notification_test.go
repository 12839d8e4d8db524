package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventpass/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(mailer domain.Mailer, eventRepo domain.EventRepository, regRepo domain.RegistrationRepository) *DispatchQueue {
	return NewDispatchQueue(mailer, eventRepo, regRepo, QueueConfig{
		DispatchInterval: 30 * time.Second,
		RetryDelay:       5 * time.Minute,
	}, testLogger())
}

func generalJob(priority domain.JobPriority, scheduledFor time.Time) *domain.NotificationJob {
	return domain.NewNotificationJob(
		domain.Recipient{Email: "ada@example.com", Name: "Ada"},
		domain.GeneralPayload{Subject: "Hello", Body: "World"},
		priority,
		scheduledFor,
	)
}

func TestEnqueueDefaults(t *testing.T) {
	q := newTestQueue(&mockMailer{}, &mockEventRepository{}, newMockRegistrationRepository())
	before := time.Now()
	job := generalJob(domain.PriorityLow, time.Time{})
	q.Enqueue(job)

	require.NotEmpty(t, job.ID)
	require.Equal(t, domain.JobGeneral, job.Kind)
	require.False(t, job.ScheduledFor.Before(before))
	require.Equal(t, 1, q.Status().Pending)
	require.False(t, q.Status().Dispatching)
}

func TestDispatchDeliversDueJobsInOrder(t *testing.T) {
	mailer := &mockMailer{}
	q := newTestQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository())

	now := time.Now()
	q.now = func() time.Time { return now }

	second := generalJob(domain.PriorityLow, now.Add(-time.Minute))
	second.Payload = domain.GeneralPayload{Subject: "second", Body: "b"}
	first := generalJob(domain.PriorityLow, now.Add(-2*time.Minute))
	first.Payload = domain.GeneralPayload{Subject: "first", Body: "a"}
	future := generalJob(domain.PriorityLow, now.Add(time.Hour))
	future.Payload = domain.GeneralPayload{Subject: "future", Body: "c"}

	q.Enqueue(second)
	q.Enqueue(first)
	q.Enqueue(future)

	q.dispatchDue()

	sent := mailer.sentEmails()
	require.Len(t, sent, 2)
	require.Equal(t, "first", sent[0].subject)
	require.Equal(t, "second", sent[1].subject)
	require.Equal(t, 1, q.Status().Pending) // only the future job remains
}

func TestRetryAdvancesFromNewBaseline(t *testing.T) {
	mailer := &mockMailer{failSends: 2, err: errors.New("smtp unavailable")}
	q := newTestQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository())

	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	job := generalJob(domain.PriorityLow, now)
	q.Enqueue(job)

	// First failure: one attempt recorded, rescheduled 5m out.
	q.dispatchDue()
	require.Equal(t, 1, job.Attempts)
	require.True(t, job.ScheduledFor.Equal(now.Add(5*time.Minute)))
	require.Equal(t, 1, q.Status().Pending)

	// Second failure advances from the new baseline, not the original.
	now = now.Add(5 * time.Minute)
	q.dispatchDue()
	require.Equal(t, 2, job.Attempts)
	require.True(t, job.ScheduledFor.Equal(now.Add(5*time.Minute)))

	// Transport recovers; the job drains.
	now = now.Add(5 * time.Minute)
	q.dispatchDue()
	require.Equal(t, 0, q.Status().Pending)
	require.Equal(t, 1, mailer.sentCount())
}

func TestOneFailureDoesNotAbortTheTick(t *testing.T) {
	mailer := &mockMailer{failSends: 1, err: errors.New("boom")}
	q := newTestQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository())

	now := time.Now()
	q.now = func() time.Time { return now }

	failing := generalJob(domain.PriorityLow, now.Add(-2*time.Minute))
	healthy := generalJob(domain.PriorityLow, now.Add(-time.Minute))
	q.Enqueue(failing)
	q.Enqueue(healthy)

	q.dispatchDue()

	// The failing job was rescheduled; the healthy one went out.
	require.Equal(t, 1, mailer.sentCount())
	require.Equal(t, 1, q.Status().Pending)
	require.Equal(t, 1, failing.Attempts)
}

func TestHighPriorityDispatchesImmediately(t *testing.T) {
	mailer := &mockMailer{}
	q := newTestQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository())

	q.Enqueue(generalJob(domain.PriorityHigh, time.Time{}))

	// Delivered without any tick having run.
	require.Eventually(t, func() bool {
		return mailer.sentCount() == 1 && q.Status().Pending == 0
	}, time.Second, 5*time.Millisecond)
}

func TestHighPriorityFutureJobWaitsForItsSlot(t *testing.T) {
	mailer := &mockMailer{}
	q := newTestQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository())

	q.Enqueue(generalJob(domain.PriorityHigh, time.Now().Add(time.Hour)))

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 0, mailer.sentCount())
	require.Equal(t, 1, q.Status().Pending)
}

func TestDeadLetterCap(t *testing.T) {
	mailer := &mockMailer{failSends: 10, err: errors.New("boom")}
	q := NewDispatchQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository(), QueueConfig{
		DispatchInterval: 30 * time.Second,
		RetryDelay:       time.Minute,
		MaxAttempts:      3,
	}, testLogger())

	now := time.Now()
	q.now = func() time.Time { return now }

	job := generalJob(domain.PriorityLow, now)
	q.Enqueue(job)

	for i := 0; i < 3; i++ {
		q.dispatchDue()
		now = now.Add(time.Minute)
	}

	// Third failure hit the cap: the job is gone, never delivered.
	require.Equal(t, 0, q.Status().Pending)
	require.Equal(t, 0, mailer.sentCount())
	require.Equal(t, 3, job.Attempts)
}

func TestScheduleEventReminders(t *testing.T) {
	ctx := context.Background()

	t.Run("two reminders per active registration", func(t *testing.T) {
		event := openEventFixture()
		event.StartTime = time.Now().Add(48 * time.Hour)
		eventRepo := &mockEventRepository{events: map[string]*domain.Event{event.ID: event}}

		regRepo := newMockRegistrationRepository()
		regRepo.add(registeredFixture("reg-1", event.ID))
		reg2 := registeredFixture("reg-2", event.ID)
		reg2.UniqueCode = "D4E5F6"
		reg2.Email = "grace@example.com"
		regRepo.add(reg2)
		cancelled := registeredFixture("reg-3", event.ID)
		cancelled.UniqueCode = "G7H8I9"
		cancelled.Status = domain.StatusCancelled
		regRepo.add(cancelled)

		q := newTestQueue(&mockMailer{}, eventRepo, regRepo)
		require.NoError(t, q.ScheduleEventReminders(ctx, event.ID))

		// Two active registrations, one day-before and one hour-before
		// job each.
		require.Equal(t, 4, q.Status().Pending)
		dayBefore, hourBefore := 0, 0
		q.mu.Lock()
		for _, job := range q.jobs {
			require.Equal(t, domain.JobEventReminder, job.Kind)
			p := job.Payload.(domain.EventReminderPayload)
			switch p.Lead {
			case 24 * time.Hour:
				dayBefore++
				require.True(t, job.ScheduledFor.Equal(event.StartTime.Add(-24*time.Hour)))
			case time.Hour:
				hourBefore++
				require.True(t, job.ScheduledFor.Equal(event.StartTime.Add(-time.Hour)))
			}
		}
		q.mu.Unlock()
		require.Equal(t, 2, dayBefore)
		require.Equal(t, 2, hourBefore)
	})

	t.Run("imminent event skips past reminders", func(t *testing.T) {
		event := openEventFixture()
		event.StartTime = time.Now().Add(30 * time.Minute)
		eventRepo := &mockEventRepository{events: map[string]*domain.Event{event.ID: event}}
		regRepo := newMockRegistrationRepository()
		regRepo.add(registeredFixture("reg-1", event.ID))

		q := newTestQueue(&mockMailer{}, eventRepo, regRepo)
		require.NoError(t, q.ScheduleEventReminders(ctx, event.ID))
		require.Equal(t, 0, q.Status().Pending)
	})

	t.Run("unknown event", func(t *testing.T) {
		q := newTestQueue(&mockMailer{}, &mockEventRepository{}, newMockRegistrationRepository())
		err := q.ScheduleEventReminders(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestStartStop(t *testing.T) {
	mailer := &mockMailer{}
	q := NewDispatchQueue(mailer, &mockEventRepository{}, newMockRegistrationRepository(), QueueConfig{
		DispatchInterval: time.Second,
		RetryDelay:       time.Minute,
	}, testLogger())

	q.Enqueue(generalJob(domain.PriorityMedium, time.Time{}))
	q.Start()
	defer q.Stop()

	// A medium-priority job gets no fast path; the tick picks it up.
	require.Eventually(t, func() bool {
		return mailer.sentCount() == 1
	}, 5*time.Second, 50*time.Millisecond)
	require.Equal(t, 0, q.Status().Pending)
}

func TestRenderJob(t *testing.T) {
	tests := []struct {
		name        string
		payload     domain.JobPayload
		wantSubject string
		wantInBody  []string
	}{
		{
			name: "registration confirmation carries the code",
			payload: domain.RegistrationConfirmationPayload{
				EventName:     "Annual Gala",
				EventLocation: "Town Hall",
				StartsAt:      time.Date(2026, 5, 12, 19, 0, 0, 0, time.UTC),
				UniqueCode:    "A1B2C3",
			},
			wantSubject: "You're registered for Annual Gala",
			wantInBody:  []string{"A1B2C3", "Town Hall"},
		},
		{
			name: "day-before reminder says tomorrow",
			payload: domain.EventReminderPayload{
				EventName: "Annual Gala",
				StartsAt:  time.Date(2026, 5, 12, 19, 0, 0, 0, time.UTC),
				Lead:      24 * time.Hour,
			},
			wantSubject: "Reminder: Annual Gala starts tomorrow",
			wantInBody:  []string{"Annual Gala"},
		},
		{
			name: "payment receipt formats the amount",
			payload: domain.PaymentSuccessPayload{
				EventName:   "Annual Gala",
				AmountCents: 2550,
				Reference:   "pay_abc123",
			},
			wantSubject: "Payment received for Annual Gala",
			wantInBody:  []string{"$25.50", "pay_abc123"},
		},
		{
			name:        "general passes through",
			payload:     domain.GeneralPayload{Subject: "Hi", Body: "There"},
			wantSubject: "Hi",
			wantInBody:  []string{"There"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := domain.NewNotificationJob(
				domain.Recipient{Email: "ada@example.com", Name: "Ada"},
				tt.payload, domain.PriorityLow, time.Time{})
			subject, body := renderJob(job)
			require.Equal(t, tt.wantSubject, subject)
			for _, want := range tt.wantInBody {
				require.Contains(t, body, want)
			}
		})
	}
}
