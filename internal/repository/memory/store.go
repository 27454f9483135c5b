package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"rail-reservation/internal/model"
	"rail-reservation/internal/repository"
	apperrors "rail-reservation/pkg/app_errors"
)

// Store is a single process repository.Store. Each ledger key has its own
// semaphore; writes made under the lock are staged and applied on success.
type Store struct {
	mu          sync.RWMutex
	locks       *keyLocks
	lockTimeout time.Duration
	nextID      atomic.Int64

	ledgers   map[string]*model.LedgerRow
	waitlists map[string][]*model.WaitlistEntry
	bookings  map[int64]*model.Booking
	byPNR     map[string]int64
	byRequest map[string]int64
}

var _ repository.Store = (*Store)(nil)

func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		locks:       newKeyLocks(),
		lockTimeout: lockTimeout,
		ledgers:     make(map[string]*model.LedgerRow),
		waitlists:   make(map[string][]*model.WaitlistEntry),
		bookings:    make(map[int64]*model.Booking),
		byPNR:       make(map[string]int64),
		byRequest:   make(map[string]int64),
	}
}

func (s *Store) WithLock(ctx context.Context, key model.LedgerKey, fn func(ctx context.Context, tx repository.Tx) error) error {
	release, err := s.locks.acquire(ctx, key.String(), s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	t := newTx(s, key)
	if err := fn(ctx, t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, b := range t.bookings {
		if owner, ok := s.byPNR[b.PNR]; ok && owner != id {
			return fmt.Errorf("pnr %s already issued to booking %d", b.PNR, owner)
		}
		if b.RequestID != "" {
			if owner, ok := s.byRequest[b.RequestID]; ok && owner != id {
				return fmt.Errorf("request %s already used by booking %d", b.RequestID, owner)
			}
		}
	}

	k := t.key.String()
	if t.ledger != nil {
		s.ledgers[k] = t.ledger
	}
	if t.waitlistLoaded {
		s.waitlists[k] = t.waitlist
	}
	for id, b := range t.bookings {
		s.bookings[id] = b
		s.byPNR[b.PNR] = id
		if b.RequestID != "" {
			s.byRequest[b.RequestID] = id
		}
	}
	return nil
}

func (s *Store) FindBookingByID(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (s *Store) FindBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error) {
	s.mu.RLock()
	id, ok := s.byPNR[pnr]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return s.FindBookingByID(ctx, id)
}

func (s *Store) FindBookingByRequestID(ctx context.Context, requestID string) (*model.Booking, error) {
	s.mu.RLock()
	id, ok := s.byRequest[requestID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrBookingNotFound
	}
	return s.FindBookingByID(ctx, id)
}

func (s *Store) ListBookingsByUser(_ context.Context, userID int64) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			bookings = append(bookings, b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID > bookings[j].ID })
	return bookings, nil
}

func (s *Store) ListPendingBefore(_ context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.Status == model.BookingStatusPendingPayment && b.CreatedAt.Before(cutoff) {
			bookings = append(bookings, b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	if limit > 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings, nil
}

func (s *Store) LedgerSnapshot(_ context.Context, key model.LedgerKey) (*model.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.ledgers[key.String()]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *Store) ListWaitlist(_ context.Context, key model.LedgerKey) ([]*model.WaitlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEntries(s.waitlists[key.String()]), nil
}

func copyEntries(entries []*model.WaitlistEntry) []*model.WaitlistEntry {
	out := make([]*model.WaitlistEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

type keyLocks struct {
	mu   sync.Mutex
	sems map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{sems: make(map[string]chan struct{})}
}

func (l *keyLocks) acquire(ctx context.Context, name string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[name]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[name] = sem
	}
	l.mu.Unlock()

	release := func() { <-sem }

	if timeout <= 0 {
		select {
		case sem <- struct{}{}:
			return release, nil
		default:
			return nil, fmt.Errorf("lock %s: %w", name, apperrors.ErrBusy)
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return release, nil
	case <-timer.C:
		return nil, fmt.Errorf("lock %s: %w", name, apperrors.ErrBusy)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
