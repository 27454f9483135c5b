package waitlist_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rail-reservation/internal/ledger"
	"rail-reservation/internal/model"
	"rail-reservation/internal/repository"
	"rail-reservation/internal/repository/memory"
	"rail-reservation/internal/waitlist"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = model.NewLedgerKey(12951, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), model.QuotaGeneral, "2A")

type fixture struct {
	store  *memory.Store
	ledger *ledger.Ledger
	queue  *waitlist.Queue
	seq    int
}

// newFixture seeds a sold-out key of the given size.
func newFixture(t *testing.T, seats int) *fixture {
	t.Helper()
	l := ledger.New()
	f := &fixture{store: memory.NewStore(time.Second), ledger: l, queue: waitlist.NewQueue(l)}
	f.locked(t, func(ctx context.Context, tx repository.Tx) error {
		if _, err := l.GetOrInit(ctx, tx, key, seats); err != nil {
			return err
		}
		_, _, err := l.TryReserve(ctx, tx, key, seats)
		return err
	})
	return f
}

func (f *fixture) locked(t *testing.T, fn func(ctx context.Context, tx repository.Tx) error) {
	t.Helper()
	require.NoError(t, f.store.WithLock(context.Background(), key, fn))
}

// enqueue creates a booking of count passengers and waitlists it.
func (f *fixture) enqueue(t *testing.T, count int) (int64, int) {
	t.Helper()
	f.seq++
	b := &model.Booking{
		PNR:            fmt.Sprintf("%010d", f.seq),
		UserID:         int64(f.seq),
		TrainID:        key.TrainID,
		JourneyDate:    key.JourneyDate,
		CoachClass:     key.CoachClass,
		Quota:          key.Quota,
		PassengerCount: count,
	}
	var pos int
	f.locked(t, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CreateBooking(ctx, b); err != nil {
			return err
		}
		var err error
		pos, err = f.queue.Enqueue(ctx, tx, b)
		return err
	})
	return b.ID, pos
}

func (f *fixture) release(t *testing.T, count int) {
	t.Helper()
	f.locked(t, func(ctx context.Context, tx repository.Tx) error {
		_, err := f.ledger.Release(ctx, tx, key, count)
		return err
	})
}

func (f *fixture) promote(t *testing.T) *model.Booking {
	t.Helper()
	var promoted *model.Booking
	f.locked(t, func(ctx context.Context, tx repository.Tx) error {
		row, err := tx.LoadLedger(ctx, key)
		if err != nil {
			return err
		}
		promoted, err = f.queue.Promote(ctx, tx, key, row.AvailableSeats)
		return err
	})
	return promoted
}

func (f *fixture) positions(t *testing.T) map[int64]int {
	t.Helper()
	entries, err := f.store.ListWaitlist(context.Background(), key)
	require.NoError(t, err)
	out := make(map[int64]int, len(entries))
	for i, e := range entries {
		assert.Equal(t, i+1, e.Position, "positions stay contiguous")
		out[e.BookingID] = e.Position
	}
	return out
}

func TestQueue_EnqueueAppends(t *testing.T) {
	f := newFixture(t, 2)

	_, first := f.enqueue(t, 1)
	_, second := f.enqueue(t, 3)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)

	row, err := f.store.LedgerSnapshot(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 2, row.WaitingCount)
}

func TestQueue_PromoteHeadOnly(t *testing.T) {
	f := newFixture(t, 3)
	big, _ := f.enqueue(t, 2)
	small, _ := f.enqueue(t, 1)

	f.release(t, 1)
	assert.Nil(t, f.promote(t), "a head that does not fit blocks the queue")
	assert.Len(t, f.positions(t), 2)

	f.release(t, 1)
	promoted := f.promote(t)
	require.NotNil(t, promoted)
	assert.Equal(t, big, promoted.ID)
	assert.Equal(t, model.BookingStatusConfirmed, promoted.Status)
	assert.Nil(t, promoted.WaitlistPosition)

	assert.Equal(t, map[int64]int{small: 1}, f.positions(t))

	b, err := f.store.FindBookingByID(context.Background(), small)
	require.NoError(t, err)
	require.NotNil(t, b.WaitlistPosition)
	assert.Equal(t, 1, *b.WaitlistPosition)

	row, err := f.store.LedgerSnapshot(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 0, row.AvailableSeats)
	assert.Equal(t, 1, row.WaitingCount)
}

func TestQueue_PromoteEmpty(t *testing.T) {
	f := newFixture(t, 1)
	f.release(t, 1)
	assert.Nil(t, f.promote(t))
}

func TestQueue_RemoveCompacts(t *testing.T) {
	f := newFixture(t, 1)
	a, _ := f.enqueue(t, 1)
	b, _ := f.enqueue(t, 1)
	c, _ := f.enqueue(t, 1)

	var held int
	f.locked(t, func(ctx context.Context, tx repository.Tx) error {
		var err error
		held, err = f.queue.Remove(ctx, tx, key, b)
		return err
	})

	assert.Equal(t, 2, held)
	assert.Equal(t, map[int64]int{a: 1, c: 2}, f.positions(t))
}

func TestQueue_RemoveUnknownIsInvariantError(t *testing.T) {
	f := newFixture(t, 1)

	err := f.store.WithLock(context.Background(), key, func(ctx context.Context, tx repository.Tx) error {
		_, err := f.queue.Remove(ctx, tx, key, 404)
		return err
	})

	var inv *apperrors.InvariantError
	assert.ErrorAs(t, err, &inv)
}
