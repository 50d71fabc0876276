package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"claystudio/internal/domain"
)

type registrationService struct {
	store          domain.RegistrationStore
	publisher      domain.SeatsChangePublisher
	logger         *slog.Logger
	contextTimeout time.Duration
	now            func() time.Time
}

// NewRegistrationService creates a RegistrationService. publisher may be nil when seat
// changes do not need to be announced.
func NewRegistrationService(
	store domain.RegistrationStore,
	publisher domain.SeatsChangePublisher,
	logger *slog.Logger,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		store:          store,
		publisher:      publisher,
		logger:         logger,
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func (s *registrationService) Register(ctx context.Context, eventID, userID string, seatsReserved int) (*domain.Registration, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	if seatsReserved < 1 {
		return nil, false, fmt.Errorf("%w: seats_reserved must be at least 1", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var result *domain.Registration
	created := false
	err := s.store.Transact(ctx, func(tx domain.RegistrationTx) error {
		// The event lock serializes concurrent sign-ups of the same user.
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}

		if existing, err := tx.FindActiveByEventAndUser(ctx, eventID, userID); err == nil {
			result = existing
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get active registration: %w", err)
		}

		if event.AvailableSeats < seatsReserved {
			return fmt.Errorf("%w: %d requested, %d available", domain.ErrInsufficientSeats, seatsReserved, event.AvailableSeats)
		}

		reg := domain.NewRegistration(eventID, userID, seatsReserved, event.SeatPrice*float64(seatsReserved), s.now())
		if err := tx.CreateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		result, created = reg, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *registrationService) GetRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *registrationService) ListEventRegistrations(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.store.GetEventByID(ctx, eventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("get event: %w", err)
	}
	regs, total, err := s.store.ListByEventID(ctx, eventID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	return regs, total, nil
}

func (s *registrationService) TransitionStatus(ctx context.Context, id string, status domain.RegistrationStatus) (*domain.Registration, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown registration status %q", domain.ErrInvalidInput, status)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var result *domain.Registration
	var change *domain.SeatsChange
	err := s.store.Transact(ctx, func(tx domain.RegistrationTx) error {
		reg, err := tx.LockRegistration(ctx, id)
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}
		if reg.Status == status {
			result = reg
			return nil
		}

		delta := domain.StatusSeatDelta(reg.Status, status, reg.SeatsReserved)
		if err := s.checkCapacity(ctx, tx, reg.EventID, delta); err != nil {
			return err
		}

		reg.TransitionTo(status, s.now())
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		change, err = s.applySeatDelta(ctx, tx, reg, delta, domain.SeatsChangeStatus)
		if err != nil {
			return err
		}
		result = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, change)
	return result, nil
}

func (s *registrationService) EditRegistrationDetails(ctx context.Context, id string, price, discount float64, seatsReserved int) (*domain.Registration, error) {
	if err := validateAmount("price", price); err != nil {
		return nil, err
	}
	if err := validateAmount("discount", discount); err != nil {
		return nil, err
	}
	if seatsReserved < 1 {
		return nil, fmt.Errorf("%w: seats_reserved must be at least 1", domain.ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var result *domain.Registration
	var change *domain.SeatsChange
	err := s.store.Transact(ctx, func(tx domain.RegistrationTx) error {
		reg, err := tx.LockRegistration(ctx, id)
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}

		delta := domain.EditSeatDelta(reg.Status, reg.SeatsReserved, seatsReserved)
		if err := s.checkCapacity(ctx, tx, reg.EventID, delta); err != nil {
			return err
		}

		reg.Price = price
		reg.Discount = discount
		reg.SeatsReserved = seatsReserved
		reg.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		change, err = s.applySeatDelta(ctx, tx, reg, delta, domain.SeatsChangeEdit)
		if err != nil {
			return err
		}
		result = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, change)
	return result, nil
}

func (s *registrationService) UpdateRegistrationPrice(ctx context.Context, id string, price float64) (*domain.Registration, error) {
	if err := validateAmount("price", price); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var result *domain.Registration
	err := s.store.Transact(ctx, func(tx domain.RegistrationTx) error {
		reg, err := tx.LockRegistration(ctx, id)
		if err != nil {
			return fmt.Errorf("lock registration: %w", err)
		}
		reg.Price = price
		reg.UpdatedAt = s.now()
		if err := tx.UpdateRegistration(ctx, reg); err != nil {
			return fmt.Errorf("update registration: %w", err)
		}
		result = reg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *registrationService) ReconcileEventSeats(ctx context.Context, eventID string) (*domain.SeatReconciliation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var result *domain.SeatReconciliation
	var change *domain.SeatsChange
	err := s.store.Transact(ctx, func(tx domain.RegistrationTx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}
		held, err := tx.SumHeldSeats(ctx, eventID)
		if err != nil {
			return fmt.Errorf("sum held seats: %w", err)
		}
		recomputed := event.TotalSeats - held
		if recomputed < 0 {
			return fmt.Errorf("%w: event %s is oversold by %d seats", domain.ErrInsufficientSeats, eventID, -recomputed)
		}
		result = &domain.SeatReconciliation{
			EventID:    eventID,
			TotalSeats: event.TotalSeats,
			HeldSeats:  held,
			Previous:   event.AvailableSeats,
			Recomputed: recomputed,
			Drift:      recomputed - event.AvailableSeats,
		}
		if result.Drift == 0 {
			return nil
		}
		if err := tx.SetAvailableSeats(ctx, eventID, recomputed); err != nil {
			return fmt.Errorf("set available seats: %w", err)
		}
		change = &domain.SeatsChange{
			EventID:        eventID,
			Delta:          result.Drift,
			AvailableSeats: recomputed,
			TotalSeats:     event.TotalSeats,
			Reason:         domain.SeatsChangeReconcile,
			OccurredAt:     s.now(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.logger.WarnContext(ctx, "available seats drift corrected",
			"event_id", eventID,
			"previous", result.Previous,
			"recomputed", result.Recomputed,
		)
	}
	s.announce(ctx, change)
	return result, nil
}

// checkCapacity locks the event and fails with ErrInsufficientSeats when a negative delta
// exceeds the seats still available. Positive and zero deltas need no check.
func (s *registrationService) checkCapacity(ctx context.Context, tx domain.RegistrationTx, eventID string, delta int) error {
	if delta >= 0 {
		return nil
	}
	event, err := tx.LockEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("lock event: %w", err)
	}
	if event.AvailableSeats < -delta {
		return fmt.Errorf("%w: %d needed, %d available", domain.ErrInsufficientSeats, -delta, event.AvailableSeats)
	}
	return nil
}

// applySeatDelta writes delta to the event inside tx and describes the change for publishing.
func (s *registrationService) applySeatDelta(ctx context.Context, tx domain.RegistrationTx, reg *domain.Registration, delta int, reason string) (*domain.SeatsChange, error) {
	if delta == 0 {
		return nil, nil
	}
	available, err := tx.AdjustAvailableSeats(ctx, reg.EventID, delta)
	if err != nil {
		return nil, fmt.Errorf("adjust available seats: %w", err)
	}
	return &domain.SeatsChange{
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		Delta:          delta,
		AvailableSeats: available,
		Reason:         reason,
		OccurredAt:     reg.UpdatedAt,
	}, nil
}

// announce logs a committed seat change and hands it to the publisher. Publish failures are logged only.
func (s *registrationService) announce(ctx context.Context, change *domain.SeatsChange) {
	if change == nil {
		return
	}
	s.logger.InfoContext(ctx, "available seats changed",
		"event_id", change.EventID,
		"registration_id", change.RegistrationID,
		"delta", change.Delta,
		"available_seats", change.AvailableSeats,
		"reason", change.Reason,
	)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSeatsChanged(ctx, change); err != nil {
		s.logger.ErrorContext(ctx, "publish seats change failed", "event_id", change.EventID, "err", err)
	}
}

func validateAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, field)
	}
	return nil
}
