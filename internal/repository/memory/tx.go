package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"
)

type tx struct {
	store *Store
	key   model.LedgerKey

	ledger         *model.LedgerRow
	waitlist       []*model.WaitlistEntry
	waitlistLoaded bool
	bookings       map[int64]*model.Booking
}

func newTx(s *Store, key model.LedgerKey) *tx {
	return &tx{
		store:    s,
		key:      key,
		bookings: make(map[int64]*model.Booking),
	}
}

func (t *tx) checkKey(key model.LedgerKey) error {
	if key.String() != t.key.String() {
		return fmt.Errorf("key %s is not held, lock owns %s", key, t.key)
	}
	return nil
}

func (t *tx) LoadLedger(_ context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	if t.ledger == nil {
		t.store.mu.RLock()
		committed, ok := t.store.ledgers[key.String()]
		t.store.mu.RUnlock()

		if ok {
			cp := *committed
			t.ledger = &cp
		} else {
			t.ledger = &model.LedgerRow{Key: t.key}
		}
	}
	cp := *t.ledger
	return &cp, nil
}

func (t *tx) SaveLedger(_ context.Context, row *model.LedgerRow) error {
	if err := t.checkKey(row.Key); err != nil {
		return err
	}
	cp := *row
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	t.ledger = &cp
	return nil
}

func (t *tx) loadWaitlist() {
	if t.waitlistLoaded {
		return
	}
	t.store.mu.RLock()
	t.waitlist = copyEntries(t.store.waitlists[t.key.String()])
	t.store.mu.RUnlock()
	t.waitlistLoaded = true
}

func (t *tx) WaitlistEntries(_ context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	t.loadWaitlist()
	return copyEntries(t.waitlist), nil
}

func (t *tx) InsertWaitlistEntry(_ context.Context, entry *model.WaitlistEntry) error {
	if err := t.checkKey(entry.Key); err != nil {
		return err
	}
	t.loadWaitlist()
	for _, e := range t.waitlist {
		if e.BookingID == entry.BookingID || e.Position == entry.Position {
			return fmt.Errorf("waitlist entry for booking %d at position %d conflicts with booking %d",
				entry.BookingID, entry.Position, e.BookingID)
		}
	}
	cp := *entry
	t.waitlist = append(t.waitlist, &cp)
	sort.Slice(t.waitlist, func(i, j int) bool { return t.waitlist[i].Position < t.waitlist[j].Position })
	return nil
}

func (t *tx) DeleteWaitlistEntry(_ context.Context, key model.LedgerKey, bookingID int64) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	t.loadWaitlist()
	for i, e := range t.waitlist {
		if e.BookingID == bookingID {
			t.waitlist = append(t.waitlist[:i], t.waitlist[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no waitlist entry for booking %d", bookingID)
}

func (t *tx) ShiftWaitlist(ctx context.Context, key model.LedgerKey, after int) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	t.loadWaitlist()
	for _, e := range t.waitlist {
		if e.Position <= after {
			continue
		}
		e.Position--

		b, err := t.GetBooking(ctx, e.BookingID)
		if err != nil {
			return err
		}
		pos := e.Position
		b.WaitlistPosition = &pos
		b.UpdatedAt = time.Now().UTC()
		t.bookings[b.ID] = b
	}
	return nil
}

func (t *tx) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return b.Clone(), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	b, ok := t.store.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (t *tx) FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error) {
	for _, b := range t.bookings {
		if b.RequestID == requestID {
			return b.Clone(), nil
		}
	}
	return t.store.FindBookingByRequestID(ctx, requestID)
}

func (t *tx) CreateBooking(_ context.Context, booking *model.Booking) error {
	if booking.PNR == "" {
		return fmt.Errorf("booking without pnr")
	}
	booking.ID = t.store.nextID.Add(1)
	now := time.Now().UTC()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	t.bookings[booking.ID] = booking.Clone()
	return nil
}

func (t *tx) UpdateBooking(ctx context.Context, booking *model.Booking) error {
	if _, err := t.GetBooking(ctx, booking.ID); err != nil {
		return err
	}
	booking.UpdatedAt = time.Now().UTC()
	t.bookings[booking.ID] = booking.Clone()
	return nil
}
