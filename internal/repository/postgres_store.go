package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore locks a ledger key by holding its seat_ledger row FOR UPDATE
// for the length of one transaction.
type PostgresStore struct {
	pool        *pgxpool.Pool
	ledgers     LedgerRepository
	bookings    BookingRepository
	waitlists   WaitlistRepository
	lockTimeout time.Duration
}

func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) Store {
	return &PostgresStore{
		pool:        pool,
		ledgers:     NewLedgerRepository(pool),
		bookings:    NewBookingRepository(pool),
		waitlists:   NewWaitlistRepository(pool),
		lockTimeout: lockTimeout,
	}
}

func (s *PostgresStore) WithLock(ctx context.Context, key model.LedgerKey, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	timeout := s.lockTimeout.Milliseconds()
	if timeout < 1 {
		timeout = 1
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout)); err != nil {
		return err
	}

	if err := s.ledgers.Ensure(ctx, tx, key); err != nil {
		return classify(key, err)
	}
	if _, err := s.ledgers.FindByKeyWithLock(ctx, tx, key); err != nil {
		return classify(key, err)
	}

	if err := fn(ctx, &postgresTx{store: s, tx: tx}); err != nil {
		return classify(key, err)
	}

	return classify(key, tx.Commit(ctx))
}

// classify turns lock timeouts and check violations into domain errors.
func classify(key model.LedgerKey, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "55P03", "40P01":
		return fmt.Errorf("ledger %s: %s: %w", key, pgErr.Message, apperrors.ErrBusy)
	case "23514":
		return &apperrors.InvariantError{Key: key.String(), Detail: "check " + pgErr.ConstraintName + " failed"}
	}
	return err
}

func (s *PostgresStore) FindBookingByID(ctx context.Context, id int64) (*model.Booking, error) {
	return s.bookings.FindByID(ctx, id)
}

func (s *PostgresStore) FindBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error) {
	return s.bookings.FindByPNR(ctx, pnr)
}

func (s *PostgresStore) FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error) {
	return s.bookings.FindByRequestID(ctx, requestID)
}

func (s *PostgresStore) ListBookingsByUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

func (s *PostgresStore) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	return s.bookings.ListPendingBefore(ctx, cutoff, limit)
}

func (s *PostgresStore) LedgerSnapshot(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	row, err := s.ledgers.FindByKey(ctx, key)
	if err != nil || row == nil {
		return nil, err
	}
	// placeholder rows of an aborted first booking were never seeded
	if row.Version == 0 {
		return nil, nil
	}
	return row, nil
}

func (s *PostgresStore) ListWaitlist(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	return s.waitlists.ListByKey(ctx, key)
}

type postgresTx struct {
	store *PostgresStore
	tx    pgx.Tx
}

func (t *postgresTx) LoadLedger(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	return t.store.ledgers.FindByKeyWithLock(ctx, t.tx, key)
}

func (t *postgresTx) SaveLedger(ctx context.Context, row *model.LedgerRow) error {
	return t.store.ledgers.Save(ctx, t.tx, row)
}

func (t *postgresTx) WaitlistEntries(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	return t.store.waitlists.ListByKeyTx(ctx, t.tx, key)
}

func (t *postgresTx) InsertWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	return t.store.waitlists.Insert(ctx, t.tx, entry)
}

func (t *postgresTx) DeleteWaitlistEntry(ctx context.Context, key model.LedgerKey, bookingID int64) error {
	return t.store.waitlists.Delete(ctx, t.tx, key, bookingID)
}

func (t *postgresTx) ShiftWaitlist(ctx context.Context, key model.LedgerKey, after int) error {
	return t.store.waitlists.ShiftAfter(ctx, t.tx, key, after)
}

func (t *postgresTx) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return t.store.bookings.FindByIDWithLock(ctx, t.tx, id)
}

func (t *postgresTx) FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error) {
	return t.store.bookings.FindByRequestIDTx(ctx, t.tx, requestID)
}

func (t *postgresTx) CreateBooking(ctx context.Context, booking *model.Booking) error {
	return t.store.bookings.Create(ctx, t.tx, booking)
}

func (t *postgresTx) UpdateBooking(ctx context.Context, booking *model.Booking) error {
	return t.store.bookings.Update(ctx, t.tx, booking)
}
