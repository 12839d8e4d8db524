package domain

import "context"

// ValidationOutcome is the uniform outcome contract every check-in
// channel produces. already_validated is distinct from invalid so the
// UI can tell event staff "already checked in by X at T" instead of a
// generic error.
type ValidationOutcome string

const (
	ValidationValid            ValidationOutcome = "valid"
	ValidationAlreadyValidated ValidationOutcome = "already_validated"
	ValidationInvalid          ValidationOutcome = "invalid"
	ValidationNotFound         ValidationOutcome = "not_found"
)

// ValidationResult is what every validation channel returns to the
// delivery layer.
type ValidationResult struct {
	Outcome      ValidationOutcome `json:"outcome"`
	Registration *Registration     `json:"registration,omitempty"`
	Event        *Event            `json:"event,omitempty"`
	Reason       string            `json:"reason,omitempty"`
}

// FaceVerdict is the result of an external face-recognition match,
// supplied by the caller. The core never calls the recognition API
// itself.
type FaceVerdict struct {
	Matched        bool    `json:"matched"`
	RegistrationID string  `json:"registration_id"`
	Confidence     float64 `json:"confidence"`
}

// ChannelValidator normalizes the three check-in inputs into one
// attendance transition attempt with a uniform result.
type ChannelValidator interface {
	ValidateByQR(ctx context.Context, rawScan string, validatorID string) *ValidationResult
	ValidateByCode(ctx context.Context, code string, validatorID string) *ValidationResult
	ValidateByFaceVerdict(ctx context.Context, verdict FaceVerdict, eventID string, validatorID string) *ValidationResult
}
