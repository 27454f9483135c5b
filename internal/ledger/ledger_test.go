package ledger_test

import (
	"context"
	"testing"
	"time"

	"rail-reservation/internal/ledger"
	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rowStore struct {
	rows  map[string]model.LedgerRow
	saves int
}

func newRowStore() *rowStore {
	return &rowStore{rows: make(map[string]model.LedgerRow)}
}

func (s *rowStore) LoadLedger(_ context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	row, ok := s.rows[key.String()]
	if !ok {
		return &model.LedgerRow{Key: key}, nil
	}
	return &row, nil
}

func (s *rowStore) SaveLedger(_ context.Context, row *model.LedgerRow) error {
	s.rows[row.Key.String()] = *row
	s.saves++
	return nil
}

var testKey = model.NewLedgerKey(12951, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), model.QuotaGeneral, "3A")

func TestLedger_GetOrInit(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds a new row", func(t *testing.T) {
		rows := newRowStore()
		row, err := ledger.New().GetOrInit(ctx, rows, testKey, 85)
		require.NoError(t, err)
		assert.Equal(t, 85, row.TotalSeats)
		assert.Equal(t, 85, row.AvailableSeats)
		assert.Equal(t, int64(1), row.Version)
	})

	t.Run("existing row is returned untouched", func(t *testing.T) {
		rows := newRowStore()
		l := ledger.New()
		_, err := l.GetOrInit(ctx, rows, testKey, 10)
		require.NoError(t, err)
		_, _, err = l.TryReserve(ctx, rows, testKey, 4)
		require.NoError(t, err)

		row, err := l.GetOrInit(ctx, rows, testKey, 10)
		require.NoError(t, err)
		assert.Equal(t, 6, row.AvailableSeats)
		assert.Equal(t, 2, rows.saves)
	})

	t.Run("grown seed adds the difference", func(t *testing.T) {
		rows := newRowStore()
		l := ledger.New()
		_, err := l.GetOrInit(ctx, rows, testKey, 10)
		require.NoError(t, err)
		_, _, err = l.TryReserve(ctx, rows, testKey, 4)
		require.NoError(t, err)

		row, err := l.GetOrInit(ctx, rows, testKey, 15)
		require.NoError(t, err)
		assert.Equal(t, 15, row.TotalSeats)
		assert.Equal(t, 11, row.AvailableSeats)
	})

	t.Run("shrunk seed never lowers total", func(t *testing.T) {
		rows := newRowStore()
		l := ledger.New()
		_, err := l.GetOrInit(ctx, rows, testKey, 10)
		require.NoError(t, err)

		row, err := l.GetOrInit(ctx, rows, testKey, 3)
		require.NoError(t, err)
		assert.Equal(t, 10, row.TotalSeats)
		assert.Equal(t, 10, row.AvailableSeats)
	})
}

func TestLedger_TryReserve(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()

	t.Run("all or nothing", func(t *testing.T) {
		rows := newRowStore()
		_, err := l.GetOrInit(ctx, rows, testKey, 3)
		require.NoError(t, err)

		outcome, row, err := l.TryReserve(ctx, rows, testKey, 4)
		require.NoError(t, err)
		assert.Equal(t, ledger.Insufficient, outcome)
		assert.Equal(t, 3, row.AvailableSeats)

		outcome, row, err = l.TryReserve(ctx, rows, testKey, 3)
		require.NoError(t, err)
		assert.Equal(t, ledger.Reserved, outcome)
		assert.Equal(t, 0, row.AvailableSeats)
	})

	t.Run("non positive count", func(t *testing.T) {
		rows := newRowStore()
		_, _, err := l.TryReserve(ctx, rows, testKey, 0)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	})
}

func TestLedger_ReserveReleaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()
	rows := newRowStore()
	_, err := l.GetOrInit(ctx, rows, testKey, 20)
	require.NoError(t, err)

	for count := 1; count <= 6; count++ {
		before, _ := rows.LoadLedger(ctx, testKey)
		outcome, _, err := l.TryReserve(ctx, rows, testKey, count)
		require.NoError(t, err)
		require.Equal(t, ledger.Reserved, outcome)

		after, err := l.Release(ctx, rows, testKey, count)
		require.NoError(t, err)
		assert.Equal(t, before.AvailableSeats, after.AvailableSeats)
	}
}

func TestLedger_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("beyond total is an invariant violation", func(t *testing.T) {
		rows := newRowStore()
		l := ledger.New()
		_, err := l.GetOrInit(ctx, rows, testKey, 5)
		require.NoError(t, err)

		_, err = l.Release(ctx, rows, testKey, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)

		var invErr *apperrors.InvariantError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, testKey.String(), invErr.Key)

		row, _ := rows.LoadLedger(ctx, testKey)
		assert.Equal(t, 5, row.AvailableSeats)
	})

	t.Run("clamping ledger caps at total", func(t *testing.T) {
		rows := newRowStore()
		l := ledger.New(ledger.WithClampOnRelease())
		_, err := l.GetOrInit(ctx, rows, testKey, 5)
		require.NoError(t, err)

		row, err := l.Release(ctx, rows, testKey, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, row.AvailableSeats)
	})
}

func TestLedger_AdjustWaiting(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()
	rows := newRowStore()
	_, err := l.GetOrInit(ctx, rows, testKey, 1)
	require.NoError(t, err)

	row, err := l.AdjustWaiting(ctx, rows, testKey, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, row.WaitingCount)

	_, err = l.AdjustWaiting(ctx, rows, testKey, -3)
	assert.ErrorIs(t, err, apperrors.ErrInvariantViolation)
}
