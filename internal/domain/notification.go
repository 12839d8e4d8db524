package domain

import (
	"context"
	"time"
)

// JobKind identifies the kind of notification a job carries.
type JobKind string

const (
	JobRegistrationConfirmation JobKind = "registration_confirmation"
	JobEventReminder            JobKind = "event_reminder"
	JobPaymentSuccess           JobKind = "payment_success"
	JobOrganizationApproval     JobKind = "organization_approval"
	JobGeneral                  JobKind = "general"
)

// JobPriority orders notification jobs. High-priority jobs get an
// immediate out-of-band dispatch attempt at enqueue time instead of
// waiting for the next tick.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityMedium JobPriority = "medium"
	PriorityHigh   JobPriority = "high"
)

// Recipient is the addressee of a notification.
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// JobPayload is a closed union over job kinds: each variant carries
// the strongly-typed data its kind needs, and the dispatcher switches
// on the concrete type to render the message.
type JobPayload interface {
	JobKind() JobKind
}

// RegistrationConfirmationPayload confirms a freshly created
// registration and carries the code the participant will type at the
// door.
type RegistrationConfirmationPayload struct {
	EventName     string
	EventLocation string
	StartsAt      time.Time
	UniqueCode    string
}

func (RegistrationConfirmationPayload) JobKind() JobKind { return JobRegistrationConfirmation }

// EventReminderPayload reminds a registered participant that the event
// starts soon. Lead is how far ahead of the start the reminder fires.
type EventReminderPayload struct {
	EventName     string
	EventLocation string
	StartsAt      time.Time
	Lead          time.Duration
}

func (EventReminderPayload) JobKind() JobKind { return JobEventReminder }

// PaymentSuccessPayload is the receipt for a settled registration
// payment.
type PaymentSuccessPayload struct {
	EventName   string
	AmountCents int
	Reference   string
}

func (PaymentSuccessPayload) JobKind() JobKind { return JobPaymentSuccess }

// OrganizationApprovalPayload notifies an organization that its
// account was approved.
type OrganizationApprovalPayload struct {
	OrganizationName string
}

func (OrganizationApprovalPayload) JobKind() JobKind { return JobOrganizationApproval }

// GeneralPayload is a free-form message.
type GeneralPayload struct {
	Subject string
	Body    string
}

func (GeneralPayload) JobKind() JobKind { return JobGeneral }

// NotificationJob is one pending notification. It is held in the queue
// until ScheduledFor is due, then attempted; failures increment
// Attempts and push ScheduledFor forward.
type NotificationJob struct {
	ID           string      `json:"id"`
	Kind         JobKind     `json:"kind"`
	Recipient    Recipient   `json:"recipient"`
	Payload      JobPayload  `json:"-"`
	Priority     JobPriority `json:"priority"`
	ScheduledFor time.Time   `json:"scheduled_for"`
	Attempts     int         `json:"attempts"`
	CreatedAt    time.Time   `json:"created_at"`
}

// NewNotificationJob builds a job for the given payload. A zero
// scheduledFor means "due immediately".
func NewNotificationJob(recipient Recipient, payload JobPayload, priority JobPriority, scheduledFor time.Time) *NotificationJob {
	return &NotificationJob{
		Kind:         payload.JobKind(),
		Recipient:    recipient,
		Payload:      payload,
		Priority:     priority,
		ScheduledFor: scheduledFor,
	}
}

// QueueStatus is a snapshot of the dispatch queue for observability.
type QueueStatus struct {
	Pending     int  `json:"pending"`
	Dispatching bool `json:"dispatching"`
}

// NotificationQueue holds pending notifications and delivers them
// through the injected transport. Transport failures are retried
// internally and never surface to the enqueuing caller.
type NotificationQueue interface {
	Enqueue(job *NotificationJob)
	// ScheduleEventReminders derives day-before and hour-before
	// reminder jobs for every active registration of the event,
	// skipping reminders whose send time is already past.
	ScheduleEventReminders(ctx context.Context, eventID string) error
	Status() QueueStatus
}

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}
