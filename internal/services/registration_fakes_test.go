package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"claystudio/internal/domain"
)

// fakeRegistrationStore is an in-memory RegistrationStore for tests.
// Transact holds a store-wide lock for the whole unit of work and swaps in
// the working copy only when fn succeeds.
type fakeRegistrationStore struct {
	mu        sync.Mutex
	regs      map[string]*domain.Registration
	events    map[string]*domain.Event
	nextID    int
	adjustErr error // if set, AdjustAvailableSeats returns this error
	commits   int
}

func newFakeRegistrationStore() *fakeRegistrationStore {
	return &fakeRegistrationStore{
		regs:   make(map[string]*domain.Registration),
		events: make(map[string]*domain.Event),
		nextID: 1,
	}
}

func (f *fakeRegistrationStore) addEvent(e *domain.Event) {
	f.events[e.ID] = e
}

func (f *fakeRegistrationStore) addRegistration(r *domain.Registration) {
	f.regs[r.ID] = r
}

func (f *fakeRegistrationStore) registration(id string) domain.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.regs[id]
}

func (f *fakeRegistrationStore) event(id string) domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.events[id]
}

func (f *fakeRegistrationStore) Transact(ctx context.Context, fn func(tx domain.RegistrationTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &fakeRegistrationTx{
		store:  f,
		regs:   make(map[string]*domain.Registration, len(f.regs)),
		events: make(map[string]*domain.Event, len(f.events)),
		nextID: f.nextID,
	}
	for id, r := range f.regs {
		cp := *r
		tx.regs[id] = &cp
	}
	for id, e := range f.events {
		cp := *e
		tx.events[id] = &cp
	}
	if err := fn(tx); err != nil {
		return err
	}
	f.regs, f.events, f.nextID = tx.regs, tx.events, tx.nextID
	f.commits++
	return nil
}

func (f *fakeRegistrationStore) GetByID(ctx context.Context, id string) (*domain.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRegistrationStore) GetEventByID(ctx context.Context, eventID string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRegistrationStore) ListByEventID(ctx context.Context, eventID string, params domain.PaginationParams) ([]*domain.Registration, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.Registration
	for _, r := range f.regs {
		if r.EventID == eventID {
			cp := *r
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := min(params.Offset(), total)
	end := min(start+params.Limit(), total)
	return all[start:end], total, nil
}

type fakeRegistrationTx struct {
	store  *fakeRegistrationStore
	regs   map[string]*domain.Registration
	events map[string]*domain.Event
	nextID int
}

func (t *fakeRegistrationTx) LockRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	r, ok := t.regs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (t *fakeRegistrationTx) LockEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	e, ok := t.events[eventID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *fakeRegistrationTx) FindActiveByEventAndUser(ctx context.Context, eventID, userID string) (*domain.Registration, error) {
	for _, r := range t.regs {
		if r.EventID == eventID && r.UserID == userID && r.Status != domain.StatusRejected && r.Status != domain.StatusCancelled {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *fakeRegistrationTx) CreateRegistration(ctx context.Context, reg *domain.Registration) error {
	reg.ID = fmt.Sprintf("r%d", t.nextID)
	t.nextID++
	cp := *reg
	t.regs[reg.ID] = &cp
	return nil
}

func (t *fakeRegistrationTx) UpdateRegistration(ctx context.Context, reg *domain.Registration) error {
	if _, ok := t.regs[reg.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *reg
	t.regs[reg.ID] = &cp
	return nil
}

func (t *fakeRegistrationTx) AdjustAvailableSeats(ctx context.Context, eventID string, delta int) (int, error) {
	if t.store.adjustErr != nil {
		return 0, t.store.adjustErr
	}
	e, ok := t.events[eventID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	next := e.AvailableSeats + delta
	if next < 0 || next > e.TotalSeats {
		return 0, fmt.Errorf("%w: adjust by %d", domain.ErrInsufficientSeats, delta)
	}
	e.AvailableSeats = next
	return next, nil
}

func (t *fakeRegistrationTx) SumHeldSeats(ctx context.Context, eventID string) (int, error) {
	held := 0
	for _, r := range t.regs {
		if r.EventID == eventID && r.Status.HoldsSeat() {
			held += r.SeatsReserved
		}
	}
	return held, nil
}

func (t *fakeRegistrationTx) SetAvailableSeats(ctx context.Context, eventID string, available int) error {
	e, ok := t.events[eventID]
	if !ok {
		return domain.ErrNotFound
	}
	e.AvailableSeats = available
	return nil
}

// fakeSeatsPublisher records published seat changes.
type fakeSeatsPublisher struct {
	mu      sync.Mutex
	changes []*domain.SeatsChange
	err     error
}

func (p *fakeSeatsPublisher) PublishSeatsChanged(ctx context.Context, change *domain.SeatsChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.changes = append(p.changes, change)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
