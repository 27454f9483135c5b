package waitlist

import (
	"context"
	"fmt"
	"time"

	"rail-reservation/internal/ledger"
	"rail-reservation/internal/model"
	"rail-reservation/internal/repository"
	apperrors "rail-reservation/pkg/app_errors"
)

// Queue keeps one FIFO per ledger key with positions 1..n and no gaps.
// Every method must run inside the WithLock of the key it touches.
type Queue struct {
	ledger *ledger.Ledger
}

func NewQueue(l *ledger.Ledger) *Queue {
	return &Queue{ledger: l}
}

// Enqueue appends booking at max(position)+1 and marks it waitlisted.
func (q *Queue) Enqueue(ctx context.Context, tx repository.Tx, booking *model.Booking) (int, error) {
	key := booking.Key()
	entries, err := tx.WaitlistEntries(ctx, key)
	if err != nil {
		return 0, err
	}

	position := 1
	if n := len(entries); n > 0 {
		position = entries[n-1].Position + 1
	}

	entry := &model.WaitlistEntry{
		BookingID:      booking.ID,
		Key:            key,
		PassengerCount: booking.PassengerCount,
		Position:       position,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.InsertWaitlistEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("insert waitlist entry: %w", err)
	}

	booking.Status = model.BookingStatusWaitlisted
	booking.WaitlistPosition = &position
	if err := tx.UpdateBooking(ctx, booking); err != nil {
		return 0, err
	}

	if _, err := q.ledger.AdjustWaiting(ctx, tx, key, 1); err != nil {
		return 0, err
	}
	return position, nil
}

// Promote confirms the head if it fits in freed, nil otherwise. No best fit.
func (q *Queue) Promote(ctx context.Context, tx repository.Tx, key model.LedgerKey, freed int) (*model.Booking, error) {
	entries, err := tx.WaitlistEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	head := entries[0]
	if head.PassengerCount > freed {
		return nil, nil
	}

	outcome, _, err := q.ledger.TryReserve(ctx, tx, key, head.PassengerCount)
	if err != nil {
		return nil, err
	}
	if outcome == ledger.Insufficient {
		return nil, nil
	}

	booking, err := tx.GetBooking(ctx, head.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.BookingStatusWaitlisted {
		return nil, &apperrors.InvariantError{
			Key:    key.String(),
			Detail: fmt.Sprintf("queued booking %d is %s", booking.ID, booking.Status),
		}
	}

	if err := q.dequeue(ctx, tx, key, head); err != nil {
		return nil, err
	}

	booking.Status = model.BookingStatusConfirmed
	booking.WaitlistPosition = nil
	if err := tx.UpdateBooking(ctx, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

// Remove returns the position bookingID held.
func (q *Queue) Remove(ctx context.Context, tx repository.Tx, key model.LedgerKey, bookingID int64) (int, error) {
	entries, err := tx.WaitlistEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if entry.BookingID == bookingID {
			if err := q.dequeue(ctx, tx, key, entry); err != nil {
				return 0, err
			}
			return entry.Position, nil
		}
	}
	return 0, &apperrors.InvariantError{
		Key:    key.String(),
		Detail: fmt.Sprintf("waitlisted booking %d has no queue entry", bookingID),
	}
}

func (q *Queue) Len(ctx context.Context, tx repository.Tx, key model.LedgerKey) (int, error) {
	entries, err := tx.WaitlistEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (q *Queue) dequeue(ctx context.Context, tx repository.Tx, key model.LedgerKey, entry *model.WaitlistEntry) error {
	if err := tx.DeleteWaitlistEntry(ctx, key, entry.BookingID); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	if err := tx.ShiftWaitlist(ctx, key, entry.Position); err != nil {
		return fmt.Errorf("compact waitlist: %w", err)
	}
	_, err := q.ledger.AdjustWaiting(ctx, tx, key, -1)
	return err
}
