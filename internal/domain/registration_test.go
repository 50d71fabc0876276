package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	t2 = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
)

func TestRegistrationStatus_Rank(t *testing.T) {
	tests := []struct {
		status   RegistrationStatus
		wantRank int
		wantOK   bool
	}{
		{StatusPending, 1, true},
		{StatusApproved, 2, true},
		{StatusPaid, 3, true},
		{StatusConfirmed, 4, true},
		{StatusRejected, 0, false},
		{StatusCancelled, 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			rank, ok := tt.status.Rank()
			assert.Equal(t, tt.wantRank, rank)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
	require.Len(t, mainFlow, len(mainFlowRank))
	for i, s := range mainFlow {
		rank, _ := s.Rank()
		require.Equal(t, i+1, rank, "mainFlow order must match explicit ranks")
	}
}

func TestRegistrationStatus_HoldsSeat(t *testing.T) {
	holding := map[RegistrationStatus]bool{
		StatusPending:   false,
		StatusApproved:  false,
		StatusRejected:  false,
		StatusPaid:      true,
		StatusConfirmed: true,
		StatusCancelled: false,
	}
	for s, want := range holding {
		assert.Equal(t, want, s.HoldsSeat(), string(s))
	}
}

func TestParseRegistrationStatus(t *testing.T) {
	got, err := ParseRegistrationStatus(" confirmed ")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got)

	_, err = ParseRegistrationStatus("shipped")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRegistration_TransitionTo(t *testing.T) {
	tests := []struct {
		name          string
		reg           func() *Registration
		to            RegistrationStatus
		wantChanged   bool
		wantRequest   *time.Time
		wantApproved  *time.Time
		wantPaid      *time.Time
		wantConfirmed *time.Time
		wantCancelled *time.Time
	}{
		{
			name: "same status is a no-op",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.ApprovedAt = StatusApproved, stamp(t1)
				return r
			},
			to:           StatusApproved,
			wantChanged:  false,
			wantRequest:  &t0,
			wantApproved: &t1,
		},
		{
			name:          "forward skip backfills intermediate stages",
			reg:           func() *Registration { return NewRegistration("e1", "u1", 1, 40, t0) },
			to:            StatusConfirmed,
			wantChanged:   true,
			wantRequest:   &t0,
			wantApproved:  &t2,
			wantPaid:      &t2,
			wantConfirmed: &t2,
		},
		{
			name: "forward step keeps existing stamps",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.ApprovedAt = StatusApproved, stamp(t1)
				return r
			},
			to:           StatusPaid,
			wantChanged:  true,
			wantRequest:  &t0,
			wantApproved: &t1,
			wantPaid:     &t2,
		},
		{
			name: "rollback clears later stages",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status = StatusConfirmed
				r.ApprovedAt, r.PaidAt, r.ConfirmedAt = stamp(t1), stamp(t1), stamp(t1)
				return r
			},
			to:           StatusApproved,
			wantChanged:  true,
			wantRequest:  &t0,
			wantApproved: &t1,
		},
		{
			name: "rollback sets missing target stamp",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.RequestAt, r.PaidAt = StatusPaid, nil, stamp(t1)
				return r
			},
			to:          StatusPending,
			wantChanged: true,
			wantRequest: &t2,
		},
		{
			name: "cancel keeps progress and stamps cancelled_at",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.ApprovedAt, r.PaidAt = StatusPaid, stamp(t1), stamp(t1)
				return r
			},
			to:            StatusCancelled,
			wantChanged:   true,
			wantRequest:   &t0,
			wantApproved:  &t1,
			wantPaid:      &t1,
			wantCancelled: &t2,
		},
		{
			name: "reinstate from cancelled clears cancelled_at and later stages",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status = StatusCancelled
				r.ApprovedAt, r.PaidAt, r.ConfirmedAt, r.CancelledAt = stamp(t1), stamp(t1), stamp(t1), stamp(t1)
				return r
			},
			to:           StatusApproved,
			wantChanged:  true,
			wantRequest:  &t0,
			wantApproved: &t1,
		},
		{
			name: "reinstate from rejected restamps progress",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.ApprovedAt = StatusRejected, stamp(t1)
				return r
			},
			to:            StatusConfirmed,
			wantChanged:   true,
			wantRequest:   &t0,
			wantApproved:  &t2,
			wantPaid:      &t2,
			wantConfirmed: &t2,
		},
		{
			name: "reject keeps timestamps",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.ApprovedAt = StatusApproved, stamp(t1)
				return r
			},
			to:           StatusRejected,
			wantChanged:  true,
			wantRequest:  &t0,
			wantApproved: &t1,
		},
		{
			name: "cancelled to rejected clears cancelled_at",
			reg: func() *Registration {
				r := NewRegistration("e1", "u1", 1, 40, t0)
				r.Status, r.CancelledAt = StatusCancelled, stamp(t1)
				return r
			},
			to:          StatusRejected,
			wantChanged: true,
			wantRequest: &t0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.reg()
			changed := r.TransitionTo(tt.to, t2)
			require.Equal(t, tt.wantChanged, changed)
			require.Equal(t, tt.to, r.Status)
			assert.Equal(t, tt.wantRequest, r.RequestAt, "request_at")
			assert.Equal(t, tt.wantApproved, r.ApprovedAt, "approved_at")
			assert.Equal(t, tt.wantPaid, r.PaidAt, "paid_at")
			assert.Equal(t, tt.wantConfirmed, r.ConfirmedAt, "confirmed_at")
			assert.Equal(t, tt.wantCancelled, r.CancelledAt, "cancelled_at")
		})
	}
}

func TestRegistration_TransitionTo_StampsAreIndependent(t *testing.T) {
	r := NewRegistration("e1", "u1", 1, 40, t0)
	r.TransitionTo(StatusConfirmed, t1)
	require.NotSame(t, r.ApprovedAt, r.PaidAt)
	*r.ApprovedAt = t2
	require.Equal(t, t1, *r.PaidAt)
}

func TestStatusSeatDelta(t *testing.T) {
	tests := []struct {
		from, to RegistrationStatus
		want     int
	}{
		{StatusPending, StatusConfirmed, -3},
		{StatusApproved, StatusPaid, -3},
		{StatusPaid, StatusConfirmed, 0},
		{StatusConfirmed, StatusApproved, 3},
		{StatusConfirmed, StatusCancelled, 3},
		{StatusPaid, StatusRejected, 3},
		{StatusRejected, StatusConfirmed, -3},
		{StatusCancelled, StatusPending, 0},
		{StatusPending, StatusRejected, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusSeatDelta(tt.from, tt.to, 3))
		})
	}
}

func TestEditSeatDelta(t *testing.T) {
	assert.Equal(t, -4, EditSeatDelta(StatusConfirmed, 1, 5))
	assert.Equal(t, 2, EditSeatDelta(StatusPaid, 3, 1))
	assert.Equal(t, 0, EditSeatDelta(StatusApproved, 1, 5))
	assert.Equal(t, 0, EditSeatDelta(StatusCancelled, 5, 1))
}

func TestPaginationParams(t *testing.T) {
	p := PaginationParams{Page: 3, PageSize: 20}
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, 20, p.Limit())
	assert.Equal(t, 0, PaginationParams{}.Offset())
	assert.Equal(t, 1, PaginationParams{}.Limit())
}
