package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle status of a workshop registration.
type RegistrationStatus string

const (
	StatusPending   RegistrationStatus = "PENDING"
	StatusApproved  RegistrationStatus = "APPROVED"
	StatusRejected  RegistrationStatus = "REJECTED"
	StatusPaid      RegistrationStatus = "PAID"
	StatusConfirmed RegistrationStatus = "CONFIRMED"
	StatusCancelled RegistrationStatus = "CANCELLED"
)

// mainFlow lists the main-flow statuses in order; a status' rank is its index + 1.
var mainFlow = []RegistrationStatus{StatusPending, StatusApproved, StatusPaid, StatusConfirmed}

var mainFlowRank = map[RegistrationStatus]int{
	StatusPending:   1,
	StatusApproved:  2,
	StatusPaid:      3,
	StatusConfirmed: 4,
}

// ParseRegistrationStatus converts s (case-insensitive) to a RegistrationStatus.
func ParseRegistrationStatus(s string) (RegistrationStatus, error) {
	st := RegistrationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown registration status %q", ErrInvalidInput, s)
	}
	return st, nil
}

// Valid reports whether s is one of the six known statuses.
func (s RegistrationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaid, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Rank returns the main-flow position of s (PENDING=1 .. CONFIRMED=4).
// ok is false for REJECTED and CANCELLED, which are off the main flow.
func (s RegistrationStatus) Rank() (rank int, ok bool) {
	rank, ok = mainFlowRank[s]
	return rank, ok
}

// HoldsSeat reports whether a registration in status s counts against event capacity.
func (s RegistrationStatus) HoldsSeat() bool {
	return s == StatusPaid || s == StatusConfirmed
}

// Registration is a user's claim on seats of a workshop event.
// swagger:model Registration
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	UserID        string             `json:"user_id"`
	Status        RegistrationStatus `json:"status"`
	SeatsReserved int                `json:"seats_reserved"`
	Price         float64            `json:"price"`
	Discount      float64            `json:"discount"`
	RequestAt     *time.Time         `json:"request_at"`
	ApprovedAt    *time.Time         `json:"approved_at"`
	PaidAt        *time.Time         `json:"paid_at"`
	ConfirmedAt   *time.Time         `json:"confirmed_at"`
	CancelledAt   *time.Time         `json:"cancelled_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewRegistration returns a PENDING registration with request_at set. ID is set by the store on create.
func NewRegistration(eventID, userID string, seatsReserved int, price float64, now time.Time) *Registration {
	return &Registration{
		EventID:       eventID,
		UserID:        userID,
		Status:        StatusPending,
		SeatsReserved: seatsReserved,
		Price:         price,
		RequestAt:     stamp(now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// stageField returns the timestamp field recorded when entering status s, or nil for REJECTED.
func (r *Registration) stageField(s RegistrationStatus) **time.Time {
	switch s {
	case StatusPending:
		return &r.RequestAt
	case StatusApproved:
		return &r.ApprovedAt
	case StatusPaid:
		return &r.PaidAt
	case StatusConfirmed:
		return &r.ConfirmedAt
	case StatusCancelled:
		return &r.CancelledAt
	}
	return nil
}

// TransitionTo moves r to status to, setting and clearing lifecycle timestamps.
// It returns false and leaves r untouched when to equals the current status.
//
// Rules:
//   - main-flow forward: every unset stage after the current one up to to is stamped with now
//   - main-flow rollback: stages after to are cleared
//   - leaving CANCELLED clears cancelled_at
//   - leaving REJECTED for the main flow clears approved_at, paid_at and confirmed_at
//   - reinstating from REJECTED/CANCELLED clears stages after to and backfills up to to
//   - to's own timestamp is always set if still unset
func (r *Registration) TransitionTo(to RegistrationStatus, now time.Time) bool {
	from := r.Status
	if from == to {
		return false
	}
	fromRank, fromMain := from.Rank()
	toRank, toMain := to.Rank()

	if from == StatusCancelled {
		r.CancelledAt = nil
	}
	if from == StatusRejected && toMain {
		r.ApprovedAt, r.PaidAt, r.ConfirmedAt = nil, nil, nil
	}

	switch {
	case fromMain && toMain && toRank > fromRank:
		r.backfill(fromRank, toRank, now)
	case fromMain && toMain:
		r.clearAfter(toRank)
	case toMain:
		r.clearAfter(toRank)
		r.backfill(0, toRank, now)
	}

	if f := r.stageField(to); f != nil && *f == nil {
		*f = stamp(now)
	}
	r.Status = to
	r.UpdatedAt = now
	return true
}

// backfill stamps every unset main-flow stage with rank in (after, upTo].
func (r *Registration) backfill(after, upTo int, now time.Time) {
	for _, s := range mainFlow[after:upTo] {
		if f := r.stageField(s); *f == nil {
			*f = stamp(now)
		}
	}
}

// clearAfter clears every main-flow stage with rank greater than rank.
func (r *Registration) clearAfter(rank int) {
	for _, s := range mainFlow[rank:] {
		*r.stageField(s) = nil
	}
}

func stamp(t time.Time) *time.Time {
	return &t
}

// StatusSeatDelta returns the change to an event's available seats when a registration
// holding seats moves from one status to another. Only the seat-holding classification matters.
func StatusSeatDelta(from, to RegistrationStatus, seats int) int {
	switch {
	case !from.HoldsSeat() && to.HoldsSeat():
		return -seats
	case from.HoldsSeat() && !to.HoldsSeat():
		return seats
	}
	return 0
}

// EditSeatDelta returns the change to an event's available seats when a registration in status
// changes seats_reserved from oldSeats to newSeats. Non-holding registrations never affect the event.
func EditSeatDelta(status RegistrationStatus, oldSeats, newSeats int) int {
	if !status.HoldsSeat() {
		return 0
	}
	return oldSeats - newSeats
}

// RegistrationTx is the set of storage operations available inside one atomic unit of work.
// Lock methods take a row lock held until the unit of work ends; callers lock the
// registration before its event.
type RegistrationTx interface {
	LockRegistration(ctx context.Context, id string) (*Registration, error)
	LockEvent(ctx context.Context, eventID string) (*Event, error)
	FindActiveByEventAndUser(ctx context.Context, eventID, userID string) (*Registration, error)
	CreateRegistration(ctx context.Context, reg *Registration) error
	UpdateRegistration(ctx context.Context, reg *Registration) error
	// AdjustAvailableSeats adds delta to the event's available seats and returns the new value.
	// It fails with ErrInsufficientSeats instead of leaving [0, total_seats].
	AdjustAvailableSeats(ctx context.Context, eventID string, delta int) (int, error)
	SumHeldSeats(ctx context.Context, eventID string) (int, error)
	SetAvailableSeats(ctx context.Context, eventID string, available int) error
}

// RegistrationStore defines storage for registrations and their events.
// Transact runs fn in a single transaction: it commits if fn returns nil and rolls back otherwise.
type RegistrationStore interface {
	Transact(ctx context.Context, fn func(tx RegistrationTx) error) error
	GetByID(ctx context.Context, id string) (*Registration, error)
	GetEventByID(ctx context.Context, eventID string) (*Event, error)
	ListByEventID(ctx context.Context, eventID string, params PaginationParams) ([]*Registration, int, error)
}

// RegistrationService defines the registration lifecycle and seat reconciliation operations.
// Callers are expected to be authorized before invoking mutations.
type RegistrationService interface {
	// Register creates a PENDING registration. Returns (reg, created, err): created is false when
	// the user already has an active registration for the event.
	Register(ctx context.Context, eventID, userID string, seatsReserved int) (*Registration, bool, error)
	GetRegistration(ctx context.Context, id string) (*Registration, error)
	ListEventRegistrations(ctx context.Context, eventID string, params PaginationParams) ([]*Registration, int, error)
	TransitionStatus(ctx context.Context, id string, status RegistrationStatus) (*Registration, error)
	EditRegistrationDetails(ctx context.Context, id string, price, discount float64, seatsReserved int) (*Registration, error)
	UpdateRegistrationPrice(ctx context.Context, id string, price float64) (*Registration, error)
	ReconcileEventSeats(ctx context.Context, eventID string) (*SeatReconciliation, error)
}
