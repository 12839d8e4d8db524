package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventpass/internal/domain"
)

// ValidatorConfig tunes the face-match channel.
type ValidatorConfig struct {
	// FaceMatchThreshold is the minimum confidence a face verdict
	// needs before it may trigger a validation.
	FaceMatchThreshold float64
	// FaceMatchTimeout bounds the face channel end to end. A timeout
	// maps to an invalid result, not an error, so the operator can
	// fall back to manual or QR entry.
	FaceMatchTimeout time.Duration
}

type channelValidator struct {
	regRepo   domain.RegistrationRepository
	eventRepo domain.EventRepository
	regSvc    domain.RegistrationService
	codec     domain.ProofCodec
	cfg       ValidatorConfig
}

// NewChannelValidator creates the multi-channel validator that adapts
// QR scans, manual code entry, and face verdicts into one attendance
// transition with a uniform result contract.
func NewChannelValidator(
	regRepo domain.RegistrationRepository,
	eventRepo domain.EventRepository,
	regSvc domain.RegistrationService,
	codec domain.ProofCodec,
	cfg ValidatorConfig,
) domain.ChannelValidator {
	return &channelValidator{
		regRepo:   regRepo,
		eventRepo: eventRepo,
		regSvc:    regSvc,
		codec:     codec,
		cfg:       cfg,
	}
}

func (v *channelValidator) ValidateByQR(ctx context.Context, rawScan string, validatorID string) *domain.ValidationResult {
	payload, err := v.codec.Decode(rawScan)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedToken):
			return invalid("Scanned code is not a valid proof token")
		case errors.Is(err, domain.ErrCorruptToken):
			return invalid("Proof token failed the integrity check")
		default:
			return invalid("Proof token could not be decoded")
		}
	}

	reg, err := v.resolvePayload(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ValidationResult{Outcome: domain.ValidationNotFound, Reason: "No registration matches this proof token"}
		}
		return invalid("Registration lookup failed")
	}

	event, err := v.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return invalid("Event lookup failed")
	}
	if event.TokenValidity > 0 && v.codec.IsExpired(payload, event.TokenValidity) {
		return invalid("Proof token has expired")
	}
	return v.validate(ctx, reg, event, domain.ChannelQR, validatorID)
}

func (v *channelValidator) ValidateByCode(ctx context.Context, code string, validatorID string) *domain.ValidationResult {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return invalid("No code entered")
	}
	reg, err := v.regRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ValidationResult{Outcome: domain.ValidationNotFound, Reason: "No registration matches this code"}
		}
		return invalid("Registration lookup failed")
	}
	event, err := v.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return invalid("Event lookup failed")
	}
	return v.validate(ctx, reg, event, domain.ChannelManual, validatorID)
}

func (v *channelValidator) ValidateByFaceVerdict(ctx context.Context, verdict domain.FaceVerdict, eventID string, validatorID string) *domain.ValidationResult {
	if v.cfg.FaceMatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.FaceMatchTimeout)
		defer cancel()
	}

	if !verdict.Matched {
		return invalid("Face was not recognized")
	}
	if verdict.Confidence < v.cfg.FaceMatchThreshold {
		return invalid(fmt.Sprintf("Face match confidence %.2f is below the required %.2f", verdict.Confidence, v.cfg.FaceMatchThreshold))
	}

	reg, err := v.regRepo.GetByID(ctx, verdict.RegistrationID)
	if err != nil {
		if timedOut(ctx, err) {
			return invalid("Face recognition timed out")
		}
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.ValidationResult{Outcome: domain.ValidationNotFound, Reason: "No registration matches this face"}
		}
		return invalid("Registration lookup failed")
	}
	if reg.EventID != eventID {
		return invalid("Registration does not belong to this event")
	}
	event, err := v.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		if timedOut(ctx, err) {
			return invalid("Face recognition timed out")
		}
		return invalid("Event lookup failed")
	}
	res := v.validate(ctx, reg, event, domain.ChannelFace, validatorID)
	if res.Outcome == domain.ValidationInvalid && ctx.Err() != nil {
		return invalid("Face recognition timed out")
	}
	return res
}

// validate runs the shared tail of every channel: the eligibility
// recheck against current event configuration, then the attendance
// transition.
func (v *channelValidator) validate(ctx context.Context, reg *domain.Registration, event *domain.Event, channel domain.ValidationChannel, validatorID string) *domain.ValidationResult {
	if ok, reason := EvaluateForValidation(event, Candidate{Kind: reg.Kind, Group: reg.Group}); !ok {
		return &domain.ValidationResult{
			Outcome:      domain.ValidationInvalid,
			Registration: reg,
			Event:        event,
			Reason:       reason,
		}
	}

	validated, outcome, err := v.regSvc.TryValidate(ctx, reg.ID, channel, validatorID)
	if err != nil {
		if timedOut(ctx, err) {
			return invalid("Face recognition timed out")
		}
		return invalid("Validation failed")
	}

	switch outcome {
	case domain.OutcomeOK:
		return &domain.ValidationResult{Outcome: domain.ValidationValid, Registration: validated, Event: event}
	case domain.OutcomeAlreadyValidated:
		reason := "Already checked in"
		if validated.ValidatedAt != nil {
			reason = fmt.Sprintf("Already checked in via %s at %s", validated.ValidatedChannel, validated.ValidatedAt.Format(time.RFC3339))
			if validated.ValidatedBy != "" {
				reason += " by " + validated.ValidatedBy
			}
		}
		return &domain.ValidationResult{
			Outcome:      domain.ValidationAlreadyValidated,
			Registration: validated,
			Event:        event,
			Reason:       reason,
		}
	case domain.OutcomeIneligible:
		return &domain.ValidationResult{
			Outcome:      domain.ValidationInvalid,
			Registration: validated,
			Event:        event,
			Reason:       "Registration has been cancelled",
		}
	default:
		return &domain.ValidationResult{Outcome: domain.ValidationNotFound, Reason: "Registration not found"}
	}
}

// resolvePayload maps a decoded token payload to its registration.
// The unique code is preferred over the raw registration reference;
// tokens from before the code claim existed carry the reference under
// a legacy field, tried last.
func (v *channelValidator) resolvePayload(ctx context.Context, payload *domain.TokenPayload) (*domain.Registration, error) {
	if payload.UniqueCode != "" {
		return v.regRepo.GetByCode(ctx, payload.UniqueCode)
	}
	if payload.RegistrationID != "" {
		return v.regRepo.GetByID(ctx, payload.RegistrationID)
	}
	if payload.LegacyRegistrationID != "" {
		return v.regRepo.GetByID(ctx, payload.LegacyRegistrationID)
	}
	return nil, domain.ErrNotFound
}

func invalid(reason string) *domain.ValidationResult {
	return &domain.ValidationResult{Outcome: domain.ValidationInvalid, Reason: reason}
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
