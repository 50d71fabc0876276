package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"claystudio/internal/domain"
)

const registrationColumns = `id, event_id, user_id, status, seats_reserved, price, discount,
		request_at, approved_at, paid_at, confirmed_at, cancelled_at, created_at, updated_at`

const eventColumns = `id, title, seat_price, total_seats, available_seats, created_at, updated_at`

type registrationStore struct {
	DB *sql.DB
}

// NewRegistrationStore returns a RegistrationStore backed by PostgreSQL.
func NewRegistrationStore(db *sql.DB) domain.RegistrationStore {
	return &registrationStore{
		DB: db,
	}
}

func (s *registrationStore) Transact(ctx context.Context, fn func(tx domain.RegistrationTx) error) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return translateError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&registrationTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return translateError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *registrationStore) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE id = $1
	`
	return scanRegistration(s.DB.QueryRowContext(ctx, query, id))
}

func (s *registrationStore) GetEventByID(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	return scanEvent(s.DB.QueryRowContext(ctx, query, eventID))
}

func (s *registrationStore) ListByEventID(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.DB.QueryContext(ctx, query, eventID, params.Limit(), params.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	regs := make([]*domain.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, 0, err
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return regs, total, nil
}

// registrationTx implements domain.RegistrationTx on a single *sql.Tx.
type registrationTx struct {
	tx *sql.Tx
}

func (t *registrationTx) LockRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE id = $1
		FOR UPDATE
	`
	reg, err := scanRegistration(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return reg, nil
}

func (t *registrationTx) LockEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
		FOR UPDATE
	`
	e, err := scanEvent(t.tx.QueryRowContext(ctx, query, eventID))
	if err != nil {
		return nil, translateError(err)
	}
	return e, nil
}

func (t *registrationTx) FindActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND user_id = $2 AND status NOT IN ('REJECTED', 'CANCELLED')
		ORDER BY created_at DESC
		LIMIT 1
	`
	reg, err := scanRegistration(t.tx.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		return nil, translateError(err)
	}
	return reg, nil
}

func (t *registrationTx) CreateRegistration(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (event_id, user_id, status, seats_reserved, price, discount, request_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		reg.EventID, reg.UserID, string(reg.Status), reg.SeatsReserved, reg.Price, reg.Discount,
		nullTime(reg.RequestAt), reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	return translateError(err)
}

func (t *registrationTx) UpdateRegistration(ctx context.Context, reg *domain.Registration) error {
	query := `
		UPDATE registrations
		SET status = $2, seats_reserved = $3, price = $4, discount = $5,
			request_at = $6, approved_at = $7, paid_at = $8, confirmed_at = $9, cancelled_at = $10,
			updated_at = $11
		WHERE id = $1
	`
	result, err := t.tx.ExecContext(ctx, query,
		reg.ID, string(reg.Status), reg.SeatsReserved, reg.Price, reg.Discount,
		nullTime(reg.RequestAt), nullTime(reg.ApprovedAt), nullTime(reg.PaidAt),
		nullTime(reg.ConfirmedAt), nullTime(reg.CancelledAt),
		reg.UpdatedAt,
	)
	if err != nil {
		return translateError(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *registrationTx) AdjustAvailableSeats(ctx context.Context, eventID string, delta int) (int, error) {
	// The WHERE clause keeps available_seats within [0, total_seats] regardless of what the caller read.
	query := `
		UPDATE events
		SET available_seats = available_seats + $2, updated_at = NOW()
		WHERE id = $1 AND available_seats + $2 >= 0 AND available_seats + $2 <= total_seats
		RETURNING available_seats
	`
	var available int
	err := t.tx.QueryRowContext(ctx, query, eventID, delta).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if delta < 0 {
				return 0, fmt.Errorf("%w: event %s cannot give %d more seats", domain.ErrInsufficientSeats, eventID, -delta)
			}
			return 0, fmt.Errorf("release %d seats on event %s: available seats would exceed total", delta, eventID)
		}
		return 0, translateError(err)
	}
	return available, nil
}

func (t *registrationTx) SumHeldSeats(ctx context.Context, eventID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(seats_reserved), 0)
		FROM registrations
		WHERE event_id = $1 AND status IN ('PAID', 'CONFIRMED')
	`
	var held int
	if err := t.tx.QueryRowContext(ctx, query, eventID).Scan(&held); err != nil {
		return 0, translateError(err)
	}
	return held, nil
}

func (t *registrationTx) SetAvailableSeats(ctx context.Context, eventID string, available int) error {
	query := `UPDATE events SET available_seats = $2, updated_at = NOW() WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, eventID, available)
	if err != nil {
		return translateError(err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.Registration, error) {
	reg := &domain.Registration{}
	var status string
	var requestAt, approvedAt, paidAt, confirmedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &status, &reg.SeatsReserved, &reg.Price, &reg.Discount,
		&requestAt, &approvedAt, &paidAt, &confirmedAt, &cancelledAt, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	reg.Status = domain.RegistrationStatus(status)
	reg.RequestAt = timePtr(requestAt)
	reg.ApprovedAt = timePtr(approvedAt)
	reg.PaidAt = timePtr(paidAt)
	reg.ConfirmedAt = timePtr(confirmedAt)
	reg.CancelledAt = timePtr(cancelledAt)
	return reg, nil
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	e := &domain.Event{}
	err := row.Scan(&e.ID, &e.Title, &e.SeatPrice, &e.TotalSeats, &e.AvailableSeats, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// PostgreSQL SQLSTATE codes mapped onto domain errors.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
)

// translateError maps driver errors onto domain sentinels, keeping the original error in the chain.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	case codeCheckViolation:
		if pqErr.Constraint == "events_available_seats_check" {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientSeats, err)
		}
	case codeUniqueViolation:
		if pqErr.Constraint == "idx_registrations_active_user" {
			return fmt.Errorf("%w: %w", domain.ErrAlreadyRegistered, err)
		}
	}
	return err
}
