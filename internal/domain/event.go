package domain

import (
	"context"
	"time"
)

// Event represents an event that participants can register for and
// check in to. Registration windows and the token validity window are
// optional: a zero time or zero duration means "not set".
type Event struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Location          string        `json:"location"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	RegistrationStart time.Time     `json:"registration_start"`
	RegistrationEnd   time.Time     `json:"registration_end"`
	AllowGuests       bool          `json:"allow_guests"`
	AllowInvitees     bool          `json:"allow_invitees"`
	EligibleGroups    []string      `json:"eligible_groups"`
	MaxAttendees      int           `json:"max_attendees"`
	RequiresPayment   bool          `json:"requires_payment"`
	TokenValidity     time.Duration `json:"token_validity"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(name, location string, start, end time.Time) *Event {
	now := time.Now()
	return &Event{
		Name:      name,
		Location:  location,
		StartTime: start,
		EndTime:   end,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EventRepository defines storage operations for events.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
}
