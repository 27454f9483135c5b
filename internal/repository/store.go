package repository

import (
	"context"
	"time"

	"rail-reservation/internal/model"
)

// Tx is valid only inside WithLock; writes land on commit.
type Tx interface {
	// unseeded rows come back zeroed with version 0
	LoadLedger(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error)
	SaveLedger(ctx context.Context, row *model.LedgerRow) error

	// ordered by position
	WaitlistEntries(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error)
	InsertWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
	DeleteWaitlistEntry(ctx context.Context, key model.LedgerKey, bookingID int64) error
	// ShiftWaitlist closes the gap after position, bookings included.
	ShiftWaitlist(ctx context.Context, key model.LedgerKey, after int) error

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error)
	CreateBooking(ctx context.Context, booking *model.Booking) error
	UpdateBooking(ctx context.Context, booking *model.Booking) error
}

// Store serializes writers per ledger key. WithLock fails with ErrBusy on
// timeout; an error from fn discards its writes.
type Store interface {
	WithLock(ctx context.Context, key model.LedgerKey, fn func(ctx context.Context, tx Tx) error) error

	FindBookingByID(ctx context.Context, id int64) (*model.Booking, error)
	FindBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error)
	FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID int64) ([]*model.Booking, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error)

	// LedgerSnapshot is a dirty read, nil for unseeded keys.
	LedgerSnapshot(ctx context.Context, key model.LedgerKey) (*model.LedgerRow, error)
	ListWaitlist(ctx context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error)
}
