package services

import (
	"fmt"
	"time"

	"eventpass/internal/domain"
)

// renderJob produces the subject and plain-text body for a job by
// switching on its payload variant.
func renderJob(job *domain.NotificationJob) (subject, body string) {
	name := job.Recipient.Name
	if name == "" {
		name = "there"
	}

	switch p := job.Payload.(type) {
	case domain.RegistrationConfirmationPayload:
		subject = fmt.Sprintf("You're registered for %s", p.EventName)
		body = fmt.Sprintf(`Dear %s,

Your registration for %s is confirmed.

When: %s
Where: %s

Your check-in code is %s. Show the QR code on your ticket at the door,
or give this code to a member of staff.

See you there!`,
			name, p.EventName,
			p.StartsAt.Format("Monday, 2 January 2006 at 15:04"),
			p.EventLocation, p.UniqueCode)

	case domain.EventReminderPayload:
		subject = fmt.Sprintf("Reminder: %s starts %s", p.EventName, leadPhrase(p.Lead))
		body = fmt.Sprintf(`Dear %s,

This is a reminder that %s starts %s.

When: %s
Where: %s

Have your QR code or check-in code ready at the door.`,
			name, p.EventName, leadPhrase(p.Lead),
			p.StartsAt.Format("Monday, 2 January 2006 at 15:04"),
			p.EventLocation)

	case domain.PaymentSuccessPayload:
		subject = fmt.Sprintf("Payment received for %s", p.EventName)
		body = fmt.Sprintf(`Dear %s,

We have received your payment of $%.2f for %s.

Payment reference: %s

This email is your receipt.`,
			name, float64(p.AmountCents)/100.0, p.EventName, p.Reference)

	case domain.OrganizationApprovalPayload:
		subject = fmt.Sprintf("%s has been approved", p.OrganizationName)
		body = fmt.Sprintf(`Dear %s,

Your organization %s has been approved. You can now create events and
register participants.`,
			name, p.OrganizationName)

	case domain.GeneralPayload:
		subject = p.Subject
		body = p.Body

	default:
		subject = "Notification"
		body = fmt.Sprintf("Dear %s,\n\nYou have a new notification.", name)
	}
	return subject, body
}

func leadPhrase(lead time.Duration) string {
	switch {
	case lead >= 24*time.Hour:
		return "tomorrow"
	case lead >= time.Hour:
		return fmt.Sprintf("in %d hour(s)", int(lead.Hours()))
	default:
		return "soon"
	}
}
