package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across repositories and services.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// IneligibleError reports why a registration request or validation was
// rejected by the event's eligibility rules. The reason is shown to the
// end user verbatim.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("ineligible: %s", e.Reason)
}

// ParticipantKind discriminates the three kinds of participants an
// event can admit.
type ParticipantKind string

const (
	KindMember  ParticipantKind = "member"
	KindGuest   ParticipantKind = "guest"
	KindInvitee ParticipantKind = "invitee"
)

// RegistrationStatus is the lifecycle status of a registration.
// Transitions are registered -> attended and registered -> cancelled;
// attended and cancelled are terminal.
type RegistrationStatus string

const (
	StatusRegistered RegistrationStatus = "registered"
	StatusAttended   RegistrationStatus = "attended"
	StatusCancelled  RegistrationStatus = "cancelled"
)

// ValidationChannel identifies which check-in channel performed a
// validation.
type ValidationChannel string

const (
	ChannelQR     ValidationChannel = "qr"
	ChannelManual ValidationChannel = "manual"
	ChannelFace   ValidationChannel = "face"
)

// Registration represents one participant's registration for an event.
type Registration struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	Kind       ParticipantKind `json:"participant_kind"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Group      string          `json:"group"`
	UniqueCode string          `json:"unique_code"`
	ProofToken string          `json:"proof_token"`

	Status RegistrationStatus `json:"status"`

	ValidatedAt      *time.Time        `json:"validated_at,omitempty"`
	ValidatedChannel ValidationChannel `json:"validated_channel,omitempty"`
	ValidatedBy      string            `json:"validated_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidationMeta is the metadata stamped on a registration when it
// transitions to attended.
type ValidationMeta struct {
	ValidatedAt time.Time
	Channel     ValidationChannel
	ValidatedBy string
}

// TransitionOutcome is the result of an attendance transition attempt.
// OutcomeAlreadyValidated is an expected operational occurrence
// (duplicate scans), not a fault.
type TransitionOutcome string

const (
	OutcomeOK               TransitionOutcome = "ok"
	OutcomeAlreadyValidated TransitionOutcome = "already_validated"
	OutcomeIneligible       TransitionOutcome = "ineligible"
	OutcomeNotFound         TransitionOutcome = "not_found"
)

// RegistrationRepository defines storage operations for registrations.
// AtomicTransition is the single compare-and-swap primitive through
// which all status mutation flows: it moves the registration from
// `from` to `to` only if its current status is `from`, and reports
// whether the swap happened. Meta may be nil for transitions that do
// not stamp validation metadata (cancellation).
type RegistrationRepository interface {
	Create(ctx context.Context, reg *Registration) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetByCode(ctx context.Context, code string) (*Registration, error)
	ListActiveByEventID(ctx context.Context, eventID string) ([]*Registration, error)
	CountActiveByEventID(ctx context.Context, eventID string) (int, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AtomicTransition(ctx context.Context, id string, from, to RegistrationStatus, meta *ValidationMeta) (bool, error)
}

// NewRegistrationInput carries the participant fields for a
// registration request.
type NewRegistrationInput struct {
	Kind  ParticipantKind
	Name  string
	Email string
	Group string
}

// RegistrationService owns the registration lifecycle. It is the only
// component allowed to move a registration between statuses.
type RegistrationService interface {
	// Register creates a registration for the event after the
	// eligibility gate, issuing the unique code and proof token.
	Register(ctx context.Context, eventID string, input NewRegistrationInput) (*Registration, error)
	// TryValidate attempts the registered -> attended transition.
	// Exactly one concurrent caller observes OutcomeOK; the rest
	// observe OutcomeAlreadyValidated with the winner's metadata.
	TryValidate(ctx context.Context, id string, channel ValidationChannel, validatorID string) (*Registration, TransitionOutcome, error)
	// Cancel moves a registration to cancelled. Only legal from
	// registered; otherwise ErrInvalidTransition.
	Cancel(ctx context.Context, id string) (*Registration, error)
	// RecordPaymentSuccess enqueues a payment receipt notification for
	// a registration whose payment the gateway reported as settled.
	RecordPaymentSuccess(ctx context.Context, id string, amountCents int, reference string) error
}
