package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"eventpass/internal/domain"
)

type registrationRepository struct {
	DB *sql.DB
}

// NewRegistrationRepository returns a domain.RegistrationRepository implemented with Postgres.
func NewRegistrationRepository(db *sql.DB) domain.RegistrationRepository {
	return &registrationRepository{DB: db}
}

const registrationColumns = `
	id, event_id, participant_kind, name, email, group_label,
	unique_code, proof_token, status,
	validated_at, validated_channel, validated_by,
	created_at, updated_at
`

func (r *registrationRepository) Create(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (
			id, event_id, participant_kind, name, email, group_label,
			unique_code, proof_token, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.DB.ExecContext(ctx, query,
		reg.ID, reg.EventID, string(reg.Kind), reg.Name, reg.Email, reg.Group,
		reg.UniqueCode, reg.ProofToken, string(reg.Status), reg.CreatedAt, reg.UpdatedAt)
	return err
}

func (r *registrationRepository) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, id))
}

func (r *registrationRepository) GetByCode(ctx context.Context, code string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE unique_code = $1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, code))
}

func (r *registrationRepository) ListActiveByEventID(ctx context.Context, eventID string) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status != 'cancelled'
		ORDER BY created_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	return regs, nil
}

func (r *registrationRepository) CountActiveByEventID(ctx context.Context, eventID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM registrations
		WHERE event_id = $1 AND status != 'cancelled'
	`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *registrationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM registrations WHERE unique_code = $1)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AtomicTransition is the compare-and-swap behind the at-most-once
// validation guarantee: the UPDATE only matches while the row still
// holds the expected status, so of any number of concurrent callers
// exactly one observes a swap.
func (r *registrationRepository) AtomicTransition(ctx context.Context, id string, from, to domain.RegistrationStatus, meta *domain.ValidationMeta) (bool, error) {
	var (
		validatedAt      sql.NullTime
		validatedChannel sql.NullString
		validatedBy      sql.NullString
	)
	if meta != nil {
		validatedAt = sql.NullTime{Time: meta.ValidatedAt, Valid: true}
		validatedChannel = sql.NullString{String: string(meta.Channel), Valid: true}
		validatedBy = sql.NullString{String: meta.ValidatedBy, Valid: meta.ValidatedBy != ""}
	}
	query := `
		UPDATE registrations
		SET status = $1, validated_at = $2, validated_channel = $3, validated_by = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	result, err := r.DB.ExecContext(ctx, query,
		string(to), validatedAt, validatedChannel, validatedBy, time.Now(),
		id, string(from))
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *registrationRepository) scanOne(row rowScanner) (*domain.Registration, error) {
	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return reg, nil
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var (
		kind             string
		status           string
		validatedAt      sql.NullTime
		validatedChannel sql.NullString
		validatedBy      sql.NullString
	)
	err := row.Scan(
		&reg.ID, &reg.EventID, &kind, &reg.Name, &reg.Email, &reg.Group,
		&reg.UniqueCode, &reg.ProofToken, &status,
		&validatedAt, &validatedChannel, &validatedBy,
		&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	reg.Kind = domain.ParticipantKind(kind)
	reg.Status = domain.RegistrationStatus(status)
	if validatedAt.Valid {
		t := validatedAt.Time
		reg.ValidatedAt = &t
	}
	if validatedChannel.Valid {
		reg.ValidatedChannel = domain.ValidationChannel(validatedChannel.String)
	}
	if validatedBy.Valid {
		reg.ValidatedBy = validatedBy.String
	}
	return reg, nil
}
