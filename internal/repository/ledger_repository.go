package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rail-reservation/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LedgerRepository interface {
	FindByKey(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error)

	// Transaction methods
	Ensure(ctx context.Context, tx pgx.Tx, key model.LedgerKey) error
	FindByKeyWithLock(ctx context.Context, tx pgx.Tx, key model.LedgerKey) (*model.LedgerRow, error)
	Save(ctx context.Context, tx pgx.Tx, row *model.LedgerRow) error
}

type LedgerRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) LedgerRepository {
	return &LedgerRepositoryImpl{
		pool: pool,
	}
}

const ledgerColumns = `
	train_id, journey_date, quota, coach_class,
	total_seats, available_seats, waiting_count, version,
	created_at, updated_at`

func scanLedgerRow(row pgx.Row) (*model.LedgerRow, error) {
	var r model.LedgerRow
	err := row.Scan(
		&r.Key.TrainID,
		&r.Key.JourneyDate,
		&r.Key.Quota,
		&r.Key.CoachClass,
		&r.TotalSeats,
		&r.AvailableSeats,
		&r.WaitingCount,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Key.JourneyDate = model.TruncateDate(r.Key.JourneyDate)
	return &r, nil
}

// FindByKey returns nil, nil for a key that has no row yet.
func (r *LedgerRepositoryImpl) FindByKey(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM seat_ledger
		WHERE train_id = $1 AND journey_date = $2 AND quota = $3 AND coach_class = $4
	`

	row, err := scanLedgerRow(r.pool.QueryRow(ctx, query,
		key.TrainID, key.JourneyDate, key.Quota, key.CoachClass))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}

// Ensure inserts an empty placeholder row so there is always something to lock.
func (r *LedgerRepositoryImpl) Ensure(ctx context.Context, tx pgx.Tx, key model.LedgerKey) error {
	query := `
		INSERT INTO seat_ledger (train_id, journey_date, quota, coach_class)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (train_id, journey_date, quota, coach_class) DO NOTHING
	`

	_, err := tx.Exec(ctx, query, key.TrainID, key.JourneyDate, key.Quota, key.CoachClass)
	return err
}

func (r *LedgerRepositoryImpl) FindByKeyWithLock(ctx context.Context, tx pgx.Tx, key model.LedgerKey) (*model.LedgerRow, error) {
	query := `SELECT ` + ledgerColumns + `
		FROM seat_ledger
		WHERE train_id = $1 AND journey_date = $2 AND quota = $3 AND coach_class = $4
		FOR UPDATE
	`

	row, err := scanLedgerRow(tx.QueryRow(ctx, query,
		key.TrainID, key.JourneyDate, key.Quota, key.CoachClass))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ledger row %s missing after ensure", key)
		}
		return nil, err
	}
	return row, nil
}

func (r *LedgerRepositoryImpl) Save(ctx context.Context, tx pgx.Tx, row *model.LedgerRow) error {
	query := `
		UPDATE seat_ledger
		SET total_seats = $1, available_seats = $2, waiting_count = $3,
			version = $4, updated_at = $5
		WHERE train_id = $6 AND journey_date = $7 AND quota = $8 AND coach_class = $9
	`

	row.UpdatedAt = time.Now().UTC()
	result, err := tx.Exec(ctx, query,
		row.TotalSeats, row.AvailableSeats, row.WaitingCount, row.Version, row.UpdatedAt,
		row.Key.TrainID, row.Key.JourneyDate, row.Key.Quota, row.Key.CoachClass,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("ledger row %s not found", row.Key)
	}

	return nil
}
