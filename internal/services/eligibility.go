package services

import (
	"fmt"
	"time"

	"eventpass/internal/domain"
)

// Candidate carries the participant facts that eligibility rules look
// at.
type Candidate struct {
	Kind  domain.ParticipantKind
	Group string
}

// Evaluate scores a registration request against the event's rules.
// Checks run in order and short-circuit on the first failure:
// registration window, participant-kind gate, group gate, capacity
// gate. The returned reason is shown to the user verbatim. Evaluate
// has no side effects; the active registration count is passed in by
// the caller.
func Evaluate(event *domain.Event, c Candidate, activeCount int, now time.Time) (bool, string) {
	if !event.RegistrationStart.IsZero() && !event.RegistrationEnd.IsZero() {
		if now.Before(event.RegistrationStart) {
			return false, "Registration has not opened yet"
		}
		if now.After(event.RegistrationEnd) {
			return false, "Registration window has closed"
		}
	}
	if ok, reason := checkParticipantGates(event, c); !ok {
		return false, reason
	}
	if event.MaxAttendees > 0 && activeCount >= event.MaxAttendees {
		return false, "Event is full"
	}
	return true, ""
}

// EvaluateForValidation rechecks the configuration gates at check-in
// time. The registration window and capacity gates are skipped: the
// window has legitimately closed by event day, and the participant
// already holds one of the counted registrations. What can still have
// changed is which kinds and groups the event admits.
func EvaluateForValidation(event *domain.Event, c Candidate) (bool, string) {
	return checkParticipantGates(event, c)
}

func checkParticipantGates(event *domain.Event, c Candidate) (bool, string) {
	switch c.Kind {
	case domain.KindGuest:
		if !event.AllowGuests {
			return false, "Guest registrations are not allowed for this event"
		}
	case domain.KindInvitee:
		if !event.AllowInvitees {
			return false, "Invitee registrations are not allowed for this event"
		}
	}
	if len(event.EligibleGroups) > 0 {
		found := false
		for _, g := range event.EligibleGroups {
			if g == c.Group {
				found = true
				break
			}
		}
		if !found {
			return false, fmt.Sprintf("Group %q is not eligible for this event", c.Group)
		}
	}
	return true, ""
}
