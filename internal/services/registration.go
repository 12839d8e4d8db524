package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"eventpass/internal/domain"
)

type registrationService struct {
	eventRepo domain.EventRepository
	regRepo   domain.RegistrationRepository
	codec     domain.ProofCodec
	queue     domain.NotificationQueue
}

// NewRegistrationService creates a RegistrationService with the given
// collaborators. The queue receives the confirmation and receipt jobs
// the lifecycle produces; delivery is the queue's concern.
func NewRegistrationService(
	eventRepo domain.EventRepository,
	regRepo domain.RegistrationRepository,
	codec domain.ProofCodec,
	queue domain.NotificationQueue,
) domain.RegistrationService {
	return &registrationService{
		eventRepo: eventRepo,
		regRepo:   regRepo,
		codec:     codec,
		queue:     queue,
	}
}

func (s *registrationService) Register(ctx context.Context, eventID string, input domain.NewRegistrationInput) (*domain.Registration, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	active, err := s.regRepo.CountActiveByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("count active registrations: %w", err)
	}
	candidate := Candidate{Kind: input.Kind, Group: input.Group}
	if ok, reason := Evaluate(event, candidate, active, time.Now()); !ok {
		return nil, &domain.IneligibleError{Reason: reason}
	}

	code, err := s.issueUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue unique code: %w", err)
	}

	now := time.Now()
	reg := &domain.Registration{
		ID:         uuid.NewString(),
		EventID:    eventID,
		Kind:       input.Kind,
		Name:       input.Name,
		Email:      input.Email,
		Group:      input.Group,
		UniqueCode: code,
		Status:     domain.StatusRegistered,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	token, err := s.codec.Issue(reg)
	if err != nil {
		return nil, fmt.Errorf("issue proof token: %w", err)
	}
	reg.ProofToken = token

	if err := s.regRepo.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.queue.Enqueue(domain.NewNotificationJob(
		domain.Recipient{Email: reg.Email, Name: reg.Name},
		domain.RegistrationConfirmationPayload{
			EventName:     event.Name,
			EventLocation: event.Location,
			StartsAt:      event.StartTime,
			UniqueCode:    reg.UniqueCode,
		},
		domain.PriorityHigh,
		time.Time{},
	))
	return reg, nil
}

func (s *registrationService) TryValidate(ctx context.Context, id string, channel domain.ValidationChannel, validatorID string) (*domain.Registration, domain.TransitionOutcome, error) {
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.OutcomeNotFound, nil
		}
		return nil, "", fmt.Errorf("get registration: %w", err)
	}

	switch reg.Status {
	case domain.StatusAttended:
		return reg, domain.OutcomeAlreadyValidated, nil
	case domain.StatusCancelled:
		return reg, domain.OutcomeIneligible, nil
	}

	meta := &domain.ValidationMeta{
		ValidatedAt: time.Now(),
		Channel:     channel,
		ValidatedBy: validatorID,
	}
	ok, err := s.regRepo.AtomicTransition(ctx, id, domain.StatusRegistered, domain.StatusAttended, meta)
	if err != nil {
		return nil, "", fmt.Errorf("transition registration: %w", err)
	}
	if !ok {
		// Lost the race. Re-read to report the winner's metadata.
		reg, err = s.regRepo.GetByID(ctx, id)
		if err != nil {
			return nil, "", fmt.Errorf("get registration after lost transition: %w", err)
		}
		if reg.Status == domain.StatusCancelled {
			return reg, domain.OutcomeIneligible, nil
		}
		return reg, domain.OutcomeAlreadyValidated, nil
	}

	reg.Status = domain.StatusAttended
	reg.ValidatedAt = &meta.ValidatedAt
	reg.ValidatedChannel = meta.Channel
	reg.ValidatedBy = meta.ValidatedBy
	return reg, domain.OutcomeOK, nil
}

func (s *registrationService) Cancel(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.Status != domain.StatusRegistered {
		return nil, domain.ErrInvalidTransition
	}
	ok, err := s.regRepo.AtomicTransition(ctx, id, domain.StatusRegistered, domain.StatusCancelled, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel registration: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidTransition
	}
	reg.Status = domain.StatusCancelled
	return reg, nil
}

func (s *registrationService) RecordPaymentSuccess(ctx context.Context, id string, amountCents int, reference string) error {
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get registration: %w", err)
	}
	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	s.queue.Enqueue(domain.NewNotificationJob(
		domain.Recipient{Email: reg.Email, Name: reg.Name},
		domain.PaymentSuccessPayload{
			EventName:   event.Name,
			AmountCents: amountCents,
			Reference:   reference,
		},
		domain.PriorityHigh,
		time.Time{},
	))
	return nil
}

// Unique codes are 6 uppercase alphanumeric characters, regenerated on
// collision. After uniqueCodeAttempts collisions the code widens to 8
// characters for a final round of attempts.
const (
	uniqueCodeLength     = 6
	uniqueCodeWideLength = 8
	uniqueCodeAttempts   = 5
)

var uniqueCodeAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

func (s *registrationService) issueUniqueCode(ctx context.Context) (string, error) {
	length := uniqueCodeLength
	for attempt := 0; attempt < 2*uniqueCodeAttempts; attempt++ {
		if attempt >= uniqueCodeAttempts {
			length = uniqueCodeWideLength
		}
		code, err := generateUniqueCode(length)
		if err != nil {
			return "", err
		}
		exists, err := s.regRepo.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not find a free unique code after %d attempts", 2*uniqueCodeAttempts)
}

func generateUniqueCode(length int) (string, error) {
	b := make([]rune, length)
	max := big.NewInt(int64(len(uniqueCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = uniqueCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
