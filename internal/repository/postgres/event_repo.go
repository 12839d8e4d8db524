package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"eventpass/internal/domain"
)

type eventRepository struct {
	DB *sql.DB
}

// NewEventRepository returns a domain.EventRepository implemented with Postgres.
func NewEventRepository(db *sql.DB) domain.EventRepository {
	return &eventRepository{DB: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.Event) error {
	query := `
		INSERT INTO events (
			name, location, start_time, end_time,
			registration_start, registration_end,
			allow_guests, allow_invitees, eligible_groups,
			max_attendees, requires_payment, token_validity_seconds,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query,
		event.Name, event.Location, event.StartTime, event.EndTime,
		nullTime(event.RegistrationStart), nullTime(event.RegistrationEnd),
		event.AllowGuests, event.AllowInvitees, pq.Array(event.EligibleGroups),
		event.MaxAttendees, event.RequiresPayment, int64(event.TokenValidity.Seconds()),
		event.CreatedAt, event.UpdatedAt).
		Scan(&event.ID)
}

func (r *eventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `
		SELECT id, name, location, start_time, end_time,
		       registration_start, registration_end,
		       allow_guests, allow_invitees, eligible_groups,
		       max_attendees, requires_payment, token_validity_seconds,
		       created_at, updated_at
		FROM events
		WHERE id = $1
	`
	event := &domain.Event{}
	var (
		regStart        sql.NullTime
		regEnd          sql.NullTime
		groups          pq.StringArray
		validitySeconds int64
	)
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.Name, &event.Location, &event.StartTime, &event.EndTime,
		&regStart, &regEnd,
		&event.AllowGuests, &event.AllowInvitees, &groups,
		&event.MaxAttendees, &event.RequiresPayment, &validitySeconds,
		&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if regStart.Valid {
		event.RegistrationStart = regStart.Time
	}
	if regEnd.Valid {
		event.RegistrationEnd = regEnd.Time
	}
	event.EligibleGroups = []string(groups)
	event.TokenValidity = time.Duration(validitySeconds) * time.Second
	return event, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
