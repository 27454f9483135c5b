package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/cache"
	"rail-reservation/internal/ledger"
	"rail-reservation/internal/model"
	"rail-reservation/internal/pnr"
	"rail-reservation/internal/queue"
	"rail-reservation/internal/repository"
	"rail-reservation/internal/waitlist"
	apperrors "rail-reservation/pkg/app_errors"
	"rail-reservation/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Submit allocates seats or a waitlist position for a request.
	Submit(ctx context.Context, req model.BookingRequest) (*model.Booking, error)
	// Cancel is idempotent; freed seats go to the waitlist head first.
	Cancel(ctx context.Context, id int64) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, id int64) (*model.Booking, error)
	FailPayment(ctx context.Context, id int64, reason string) (*model.Booking, error)
	ExpireBooking(ctx context.Context, id int64) (*model.Booking, error)
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)

	GetAvailability(ctx context.Context, q model.AvailabilityQuery) (*model.Availability, error)
	ListWaitlist(ctx context.Context, q model.AvailabilityQuery) ([]*model.WaitlistEntry, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	GetBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]*model.Booking, error)
}

// ExpiryScheduler arranges a payment timeout check for a pending booking.
type ExpiryScheduler interface {
	SchedulePaymentExpiry(ctx context.Context, bookingID int64, at time.Time) error
}

// Dependencies of the booking service. Cache, Events and Expiry are optional.
type Dependencies struct {
	Store    repository.Store
	Trains   repository.TrainRepository
	Stations repository.StationRepository
	PNR      pnr.Generator
	Ledger   *ledger.Ledger
	Cache    cache.AvailabilityCache
	Events   queue.EventQueue
	Expiry   ExpiryScheduler
	Now      func() time.Time
}

type BookingServiceImpl struct {
	store     repository.Store
	trains    repository.TrainRepository
	stations  repository.StationRepository
	pnrs      pnr.Generator
	ledger    *ledger.Ledger
	waitlist  *waitlist.Queue
	cache     cache.AvailabilityCache
	events    queue.EventQueue
	expiry    ExpiryScheduler
	validator *requestValidator
	cfg       config.AllocationConfig
	now       func() time.Time
	log       *zap.Logger
}

func NewBookingService(deps Dependencies, cfg config.AllocationConfig) BookingService {
	l := deps.Ledger
	if l == nil {
		l = ledger.New()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &BookingServiceImpl{
		store:     deps.Store,
		trains:    deps.Trains,
		stations:  deps.Stations,
		pnrs:      deps.PNR,
		ledger:    l,
		waitlist:  waitlist.NewQueue(l),
		cache:     deps.Cache,
		events:    deps.Events,
		expiry:    deps.Expiry,
		validator: newRequestValidator(cfg),
		cfg:       cfg,
		now:       now,
		log:       logger.WithComponent("engine"),
	}
}

// outcome collects what a locked section changed, for the post-commit side effects.
type outcome struct {
	booking  *model.Booking
	promoted []*model.Booking
	row      *model.LedgerRow
	events   []model.BookingEventType
	replay   bool
}

func (s *BookingServiceImpl) Submit(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	normalize(&req)
	journey, err := s.validator.check(&req, s.now())
	if err != nil {
		return nil, err
	}

	class, err := s.resolveClass(ctx, &req)
	if err != nil {
		return nil, err
	}

	pool, err := ledger.ResolvePool(*class, journey, req.Quota)
	if err != nil {
		return nil, fmt.Errorf("resolve pool: %w", err)
	}

	if req.RequestID != "" {
		existing, err := s.store.FindBookingByRequestID(ctx, req.RequestID)
		if err == nil {
			return s.replay(existing, &req)
		}
		if !errors.Is(err, apperrors.ErrBookingNotFound) {
			return nil, err
		}
	}

	out := &outcome{}
	err = s.store.WithLock(ctx, pool.Key, func(ctx context.Context, tx repository.Tx) error {
		*out = outcome{}

		if req.RequestID != "" {
			existing, err := tx.FindBookingByRequestID(ctx, req.RequestID)
			if err == nil {
				out.booking, out.replay = existing, true
				return nil
			}
			if !errors.Is(err, apperrors.ErrBookingNotFound) {
				return err
			}
		}

		if _, err := s.ledger.GetOrInit(ctx, tx, pool.Key, pool.Seats); err != nil {
			return err
		}
		queued, err := s.waitlist.Len(ctx, tx, pool.Key)
		if err != nil {
			return err
		}

		number, err := s.pnrs.Next(ctx)
		if err != nil {
			return fmt.Errorf("next pnr: %w", err)
		}
		booking := &model.Booking{
			PNR:            number,
			RequestID:      req.RequestID,
			UserID:         req.UserID,
			TrainID:        req.TrainID,
			FromStationID:  req.FromStationID,
			ToStationID:    req.ToStationID,
			JourneyDate:    journey,
			CoachClass:     req.CoachClass,
			PassengerCount: req.PassengerCount,
			Passengers:     req.Passengers,
			Quota:          req.Quota,
			BookingType:    req.BookingType,
			Amount:         class.Fare(req.BookingType) * float64(req.PassengerCount),
		}

		waitlistOpen := s.cfg.WaitlistEnabled(string(req.Quota))

		// while others are queued, fresh requests must not take the seats the head waits for
		if queued == 0 || !waitlistOpen {
			result, _, err := s.ledger.TryReserve(ctx, tx, pool.Key, req.PassengerCount)
			if err != nil {
				return err
			}
			if result == ledger.Reserved {
				booking.Status = model.BookingStatusPendingPayment
				if err := tx.CreateBooking(ctx, booking); err != nil {
					return err
				}
				out.booking = booking
				out.events = []model.BookingEventType{model.BookingEventCreated, model.BookingEventPaymentRequested}
				return s.loadRow(ctx, tx, pool.Key, out)
			}
		}

		if !waitlistOpen {
			return fmt.Errorf("%s quota on %s: %w", req.Quota, pool.Key, apperrors.ErrSoldOut)
		}
		if s.cfg.WaitlistLimit > 0 && queued >= s.cfg.WaitlistLimit {
			return fmt.Errorf("waitlist of %s is full at %d: %w", pool.Key, queued, apperrors.ErrSoldOut)
		}

		booking.Status = model.BookingStatusWaitlisted
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}
		if _, err := s.waitlist.Enqueue(ctx, tx, booking); err != nil {
			return err
		}
		out.booking = booking
		out.events = []model.BookingEventType{model.BookingEventWaitlisted}
		return s.loadRow(ctx, tx, pool.Key, out)
	})
	if err != nil {
		s.logFailure("submit", pool.Key, err)
		return nil, err
	}

	if out.replay {
		return s.replay(out.booking, &req)
	}

	s.log.Info("booking allocated",
		zap.Int64("booking_id", out.booking.ID),
		zap.String("pnr", out.booking.PNR),
		zap.String("key", pool.Key.String()),
		zap.String("status", string(out.booking.Status)),
		zap.Int("passengers", out.booking.PassengerCount))

	s.afterCommit(ctx, pool.Key, out)
	if out.booking.Status == model.BookingStatusPendingPayment {
		s.scheduleExpiry(ctx, out.booking)
	}
	return out.booking, nil
}

// replay answers a retried request with the booking it already produced.
func (s *BookingServiceImpl) replay(existing *model.Booking, req *model.BookingRequest) (*model.Booking, error) {
	if existing.UserID != req.UserID {
		return nil, apperrors.InvalidRequest("request_id %q belongs to another user", req.RequestID)
	}
	s.log.Debug("replayed booking request",
		zap.String("request_id", req.RequestID), zap.Int64("booking_id", existing.ID))
	return existing, nil
}

func (s *BookingServiceImpl) resolveClass(ctx context.Context, req *model.BookingRequest) (*model.TrainClass, error) {
	for _, id := range []int64{req.FromStationID, req.ToStationID} {
		station, err := s.stations.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrStationNotFound) {
				return nil, fmt.Errorf("%w: station %d: %w", apperrors.ErrInvalidRequest, id, err)
			}
			return nil, err
		}
		if !station.Active {
			return nil, apperrors.InvalidRequest("station %s is closed", station.Code)
		}
	}

	train, err := s.trains.FindByID(ctx, req.TrainID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTrainNotFound) {
			return nil, fmt.Errorf("%w: train %d: %w", apperrors.ErrInvalidRequest, req.TrainID, err)
		}
		return nil, err
	}
	if !train.Active {
		return nil, apperrors.InvalidRequest("train %s is not running", train.Number)
	}

	class, ok := train.Class(req.CoachClass)
	if !ok {
		return nil, apperrors.InvalidRequest("train %s has no %s class", train.Number, req.CoachClass)
	}
	return class, nil
}

func (s *BookingServiceImpl) Cancel(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.store.FindBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == model.BookingStatusCancelled {
		return booking, nil
	}

	key := booking.Key()
	out := &outcome{}
	err = s.store.WithLock(ctx, key, func(ctx context.Context, tx repository.Tx) error {
		*out = outcome{}

		cur, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		out.booking = cur

		switch cur.Status {
		case model.BookingStatusCancelled:
			return nil
		case model.BookingStatusWaitlisted:
			if _, err := s.waitlist.Remove(ctx, tx, key, cur.ID); err != nil {
				return err
			}
			if err := s.markCancelled(ctx, tx, cur); err != nil {
				return err
			}
			// a blocked head leaving may let the next one fit
			if err := s.drainWaitlist(ctx, tx, key, out); err != nil {
				return err
			}
		default:
			if err := s.releaseAndCancel(ctx, tx, cur, out); err != nil {
				return err
			}
		}

		out.events = []model.BookingEventType{model.BookingEventCancelled}
		return s.loadRow(ctx, tx, key, out)
	})
	if err != nil {
		s.logFailure("cancel", key, err)
		return nil, err
	}

	s.afterCommit(ctx, key, out)
	return out.booking, nil
}

func (s *BookingServiceImpl) ConfirmPayment(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.store.FindBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := booking.Key()
	out := &outcome{}
	err = s.store.WithLock(ctx, key, func(ctx context.Context, tx repository.Tx) error {
		*out = outcome{}

		cur, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		out.booking = cur

		switch cur.Status {
		case model.BookingStatusConfirmed:
			return nil
		case model.BookingStatusPendingPayment:
		default:
			return fmt.Errorf("confirm payment of %s booking %d: %w", cur.Status, cur.ID, apperrors.ErrInvalidStatusTransition)
		}

		cur.Status = model.BookingStatusConfirmed
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return err
		}
		out.events = []model.BookingEventType{model.BookingEventConfirmed}
		return nil
	})
	if err != nil {
		s.logFailure("confirm_payment", key, err)
		return nil, err
	}

	s.afterCommit(ctx, key, out)
	return out.booking, nil
}

// FailPayment cancels a pending booking after a declined payment and hands
// its seats to the waitlist.
func (s *BookingServiceImpl) FailPayment(ctx context.Context, id int64, reason string) (*model.Booking, error) {
	return s.releasePending(ctx, id, reason, true)
}

// ExpireBooking applies the payment timeout. Bookings that are no longer
// pending are left alone.
func (s *BookingServiceImpl) ExpireBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.releasePending(ctx, id, "payment timeout", false)
}

func (s *BookingServiceImpl) releasePending(ctx context.Context, id int64, reason string, strict bool) (*model.Booking, error) {
	booking, err := s.store.FindBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := booking.Key()
	out := &outcome{}
	err = s.store.WithLock(ctx, key, func(ctx context.Context, tx repository.Tx) error {
		*out = outcome{}

		cur, err := tx.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		out.booking = cur

		if cur.Status != model.BookingStatusPendingPayment {
			if !strict || cur.Status == model.BookingStatusCancelled {
				return nil
			}
			return fmt.Errorf("fail payment of %s booking %d: %w", cur.Status, cur.ID, apperrors.ErrInvalidStatusTransition)
		}

		if err := s.releaseAndCancel(ctx, tx, cur, out); err != nil {
			return err
		}
		out.events = []model.BookingEventType{model.BookingEventCancelled}
		return s.loadRow(ctx, tx, key, out)
	})
	if err != nil {
		s.logFailure("release_pending", key, err)
		return nil, err
	}

	if len(out.events) > 0 {
		s.log.Info("pending booking released",
			zap.Int64("booking_id", id),
			zap.String("reason", reason),
			zap.Int("promoted", len(out.promoted)))
	}
	s.afterCommitWithReason(ctx, key, out, reason)
	return out.booking, nil
}

func (s *BookingServiceImpl) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	pending, err := s.store.ListPendingBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		updated, err := s.ExpireBooking(ctx, b.ID)
		if err != nil {
			// a busy key is retried on the next sweep
			s.log.Warn("expire booking failed", zap.Int64("booking_id", b.ID), zap.Error(err))
			continue
		}
		if updated.Status == model.BookingStatusCancelled {
			expired++
		}
	}
	return expired, nil
}

// releaseAndCancel returns the seats of a seat holding booking and cancels it.
func (s *BookingServiceImpl) releaseAndCancel(ctx context.Context, tx repository.Tx, booking *model.Booking, out *outcome) error {
	if !booking.Status.HoldsSeats() {
		return fmt.Errorf("release seats of %s booking %d: %w", booking.Status, booking.ID, apperrors.ErrInvalidStatusTransition)
	}
	key := booking.Key()

	if _, err := s.ledger.Release(ctx, tx, key, booking.PassengerCount); err != nil {
		return err
	}
	if err := s.markCancelled(ctx, tx, booking); err != nil {
		return err
	}
	return s.drainWaitlist(ctx, tx, key, out)
}

// drainWaitlist promotes heads of key while they fit in the free seats.
func (s *BookingServiceImpl) drainWaitlist(ctx context.Context, tx repository.Tx, key model.LedgerKey, out *outcome) error {
	for {
		row, err := tx.LoadLedger(ctx, key)
		if err != nil {
			return err
		}
		promoted, err := s.waitlist.Promote(ctx, tx, key, row.AvailableSeats)
		if err != nil {
			return err
		}
		if promoted == nil {
			return nil
		}
		out.promoted = append(out.promoted, promoted)
	}
}

func (s *BookingServiceImpl) markCancelled(ctx context.Context, tx repository.Tx, booking *model.Booking) error {
	if !booking.Status.CanTransitionTo(model.BookingStatusCancelled) {
		return fmt.Errorf("cancel %s booking %d: %w", booking.Status, booking.ID, apperrors.ErrInvalidStatusTransition)
	}
	booking.Status = model.BookingStatusCancelled
	booking.WaitlistPosition = nil
	return tx.UpdateBooking(ctx, booking)
}

func (s *BookingServiceImpl) loadRow(ctx context.Context, tx repository.Tx, key model.LedgerKey, out *outcome) error {
	row, err := tx.LoadLedger(ctx, key)
	if err != nil {
		return err
	}
	out.row = row
	return nil
}

func (s *BookingServiceImpl) logFailure(op string, key model.LedgerKey, err error) {
	log := s.log.With(zap.String("operation", op), zap.String("key", key.String()), zap.Error(err))
	switch {
	case errors.Is(err, apperrors.ErrInvariantViolation):
		log.Error("ledger transaction aborted")
	case errors.Is(err, apperrors.ErrBusy):
		log.Warn("ledger key busy")
	default:
		log.Debug("ledger transaction rolled back")
	}
}

func (s *BookingServiceImpl) afterCommit(ctx context.Context, key model.LedgerKey, out *outcome) {
	s.afterCommitWithReason(ctx, key, out, "")
}

// afterCommitWithReason refreshes the availability snapshot and publishes
// events. Failures are logged only; the booking state is already durable.
func (s *BookingServiceImpl) afterCommitWithReason(ctx context.Context, key model.LedgerKey, out *outcome, reason string) {
	ctx = context.WithoutCancel(ctx)

	if s.cache != nil && out.row != nil {
		if _, err := s.cache.Put(ctx, key, out.row); err != nil {
			s.log.Warn("availability cache refresh failed", zap.String("key", key.String()), zap.Error(err))
		}
	}

	for _, t := range out.events {
		s.publish(ctx, t, out.booking, reason)
	}
	for _, b := range out.promoted {
		s.log.Info("waitlisted booking promoted",
			zap.Int64("booking_id", b.ID), zap.String("pnr", b.PNR), zap.String("key", key.String()))
		s.publish(ctx, model.BookingEventPromoted, b, "")
	}
}

func (s *BookingServiceImpl) publish(ctx context.Context, t model.BookingEventType, b *model.Booking, reason string) {
	if s.events == nil {
		return
	}
	event := &model.BookingEvent{
		ID:               uuid.New().String(),
		Type:             t,
		BookingID:        b.ID,
		PNR:              b.PNR,
		UserID:           b.UserID,
		Status:           b.Status,
		Amount:           b.Amount,
		PassengerCount:   b.PassengerCount,
		WaitlistPosition: b.WaitlistPosition,
		LedgerKey:        b.Key().String(),
		Reason:           reason,
		OccurredAt:       s.now().UTC(),
	}
	if s.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PublishTimeout)
		defer cancel()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error("publish booking event failed",
			zap.String("type", string(t)), zap.Int64("booking_id", b.ID), zap.Error(err))
	}
}

func (s *BookingServiceImpl) scheduleExpiry(ctx context.Context, b *model.Booking) {
	if s.expiry == nil {
		return
	}
	at := b.CreatedAt.Add(s.cfg.PaymentTimeout)
	if err := s.expiry.SchedulePaymentExpiry(context.WithoutCancel(ctx), b.ID, at); err != nil {
		// the periodic sweep still catches it
		s.log.Warn("schedule payment expiry failed", zap.Int64("booking_id", b.ID), zap.Error(err))
	}
}

func (s *BookingServiceImpl) GetAvailability(ctx context.Context, q model.AvailabilityQuery) (*model.Availability, error) {
	key, err := queryKey(q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		av, err := s.cache.Get(ctx, key)
		if err == nil {
			return &av, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("availability cache read failed", zap.String("key", key.String()), zap.Error(err))
		}
	}

	row, err := s.store.LedgerSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	if row != nil {
		if s.cache != nil {
			if _, err := s.cache.Put(ctx, key, row); err != nil {
				s.log.Warn("availability cache fill failed", zap.String("key", key.String()), zap.Error(err))
			}
		}
		av := model.AvailabilityFromRow(row)
		return &av, nil
	}

	// never booked: show the configured pool
	train, err := s.trains.FindByID(ctx, key.TrainID)
	if err != nil {
		return nil, err
	}
	class, ok := train.Class(key.CoachClass)
	if !ok {
		return nil, apperrors.InvalidRequest("train %s has no %s class", train.Number, key.CoachClass)
	}
	pool, err := ledger.ResolvePool(*class, key.JourneyDate, key.Quota)
	if err != nil {
		return nil, fmt.Errorf("resolve pool: %w", err)
	}
	av := model.AvailabilityFromRow(&model.LedgerRow{
		Key:            pool.Key,
		TotalSeats:     pool.Seats,
		AvailableSeats: pool.Seats,
	})
	return &av, nil
}

func (s *BookingServiceImpl) ListWaitlist(ctx context.Context, q model.AvailabilityQuery) ([]*model.WaitlistEntry, error) {
	key, err := queryKey(q)
	if err != nil {
		return nil, err
	}
	return s.store.ListWaitlist(ctx, key)
}

func queryKey(q model.AvailabilityQuery) (model.LedgerKey, error) {
	if q.Quota == "" {
		q.Quota = model.QuotaGeneral
	}
	if !q.Quota.IsValid() {
		return model.LedgerKey{}, apperrors.InvalidRequest("unknown quota %q", q.Quota)
	}
	if q.TrainID <= 0 || q.CoachClass == "" {
		return model.LedgerKey{}, apperrors.InvalidRequest("train_id and coach_class are required")
	}
	date, err := time.Parse(model.DateLayout, q.JourneyDate)
	if err != nil {
		return model.LedgerKey{}, apperrors.InvalidRequest("journey_date %q is not a date", q.JourneyDate)
	}
	return model.NewLedgerKey(q.TrainID, date, q.Quota, q.CoachClass), nil
}

func (s *BookingServiceImpl) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return s.store.FindBookingByID(ctx, id)
}

func (s *BookingServiceImpl) GetBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error) {
	return s.store.FindBookingByPNR(ctx, pnr)
}

func (s *BookingServiceImpl) ListUserBookings(ctx context.Context, userID int64) ([]*model.Booking, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}
