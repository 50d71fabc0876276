package domain

import (
	"context"
	"time"
)

// Event represents a studio workshop with a fixed seat capacity.
// swagger:model Event
type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	SeatPrice      float64   `json:"seat_price"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HeldSeats returns the number of seats currently claimed by seat-holding registrations.
func (e *Event) HeldSeats() int {
	return e.TotalSeats - e.AvailableSeats
}

// SeatsChange describes a committed change of an event's available seats.
// It is published after commit so the storefront catalog can refresh availability.
type SeatsChange struct {
	EventID        string    `json:"event_id"`
	RegistrationID string    `json:"registration_id,omitempty"`
	Delta          int       `json:"delta"`
	AvailableSeats int       `json:"available_seats"`
	TotalSeats     int       `json:"total_seats,omitempty"`
	Reason         string    `json:"reason"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Reasons attached to SeatsChange.
const (
	SeatsChangeStatus    = "status_transition"
	SeatsChangeEdit      = "details_edit"
	SeatsChangeReconcile = "reconcile"
)

// SeatsChangePublisher announces seat availability changes to other services (infrastructure port).
type SeatsChangePublisher interface {
	PublishSeatsChanged(ctx context.Context, change *SeatsChange) error
}

// SeatReconciliation is the outcome of recomputing an event's available seats from its registrations.
// swagger:model SeatReconciliation
type SeatReconciliation struct {
	EventID    string `json:"event_id"`
	TotalSeats int    `json:"total_seats"`
	HeldSeats  int    `json:"held_seats"`
	Previous   int    `json:"previous_available_seats"`
	Recomputed int    `json:"recomputed_available_seats"`
	Drift      int    `json:"drift"`
}
