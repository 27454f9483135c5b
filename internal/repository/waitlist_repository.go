package repository

import (
	"context"
	"fmt"
	"time"

	"rail-reservation/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WaitlistRepository interface {
	ListByKey(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error)

	// Transaction methods
	ListByKeyTx(ctx context.Context, tx pgx.Tx, key model.LedgerKey) ([]*model.WaitlistEntry, error)
	Insert(ctx context.Context, tx pgx.Tx, entry *model.WaitlistEntry) error
	Delete(ctx context.Context, tx pgx.Tx, key model.LedgerKey, bookingID int64) error
	ShiftAfter(ctx context.Context, tx pgx.Tx, key model.LedgerKey, after int) error
}

type WaitlistRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewWaitlistRepository(pool *pgxpool.Pool) WaitlistRepository {
	return &WaitlistRepositoryImpl{
		pool: pool,
	}
}

func (r *WaitlistRepositoryImpl) ListByKey(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	return r.listByKey(ctx, r.pool, key)
}

func (r *WaitlistRepositoryImpl) ListByKeyTx(ctx context.Context, tx pgx.Tx, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	return r.listByKey(ctx, tx, key)
}

func (r *WaitlistRepositoryImpl) listByKey(ctx context.Context, db DBTX, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	query := `
		SELECT booking_id, passenger_count, position, created_at
		FROM waitlist_entries
		WHERE train_id = $1 AND journey_date = $2 AND quota = $3 AND coach_class = $4
		ORDER BY position
	`

	rows, err := db.Query(ctx, query, key.TrainID, key.JourneyDate, key.Quota, key.CoachClass)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.WaitlistEntry, 0)
	for rows.Next() {
		entry := model.WaitlistEntry{Key: key}
		if err := rows.Scan(
			&entry.BookingID,
			&entry.PassengerCount,
			&entry.Position,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *WaitlistRepositoryImpl) Insert(ctx context.Context, tx pgx.Tx, entry *model.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (
			booking_id, train_id, journey_date, quota, coach_class,
			passenger_count, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := tx.Exec(ctx, query,
		entry.BookingID, entry.Key.TrainID, entry.Key.JourneyDate, entry.Key.Quota,
		entry.Key.CoachClass, entry.PassengerCount, entry.Position, entry.CreatedAt,
	)
	return err
}

func (r *WaitlistRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, key model.LedgerKey, bookingID int64) error {
	query := `
		DELETE FROM waitlist_entries
		WHERE booking_id = $1
			AND train_id = $2 AND journey_date = $3 AND quota = $4 AND coach_class = $5
	`

	result, err := tx.Exec(ctx, query, bookingID, key.TrainID, key.JourneyDate, key.Quota, key.CoachClass)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("no waitlist entry for booking %d", bookingID)
	}

	return nil
}

// ShiftAfter closes the gap left at position. The unique (key, position)
// constraint is deferred, so the shifted rows may collide until commit.
func (r *WaitlistRepositoryImpl) ShiftAfter(ctx context.Context, tx pgx.Tx, key model.LedgerKey, after int) error {
	shift := `
		UPDATE waitlist_entries
		SET position = position - 1
		WHERE train_id = $1 AND journey_date = $2 AND quota = $3 AND coach_class = $4
			AND position > $5
	`
	if _, err := tx.Exec(ctx, shift, key.TrainID, key.JourneyDate, key.Quota, key.CoachClass, after); err != nil {
		return err
	}

	sync := `
		UPDATE bookings b
		SET waitlist_position = w.position, updated_at = $6
		FROM waitlist_entries w
		WHERE w.booking_id = b.id
			AND w.train_id = $1 AND w.journey_date = $2 AND w.quota = $3 AND w.coach_class = $4
			AND w.position >= $5
	`
	_, err := tx.Exec(ctx, sync, key.TrainID, key.JourneyDate, key.Quota, key.CoachClass, after, time.Now().UTC())
	return err
}
