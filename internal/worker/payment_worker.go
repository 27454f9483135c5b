package worker

import (
	"context"
	"errors"

	"rail-reservation/internal/model"
	"rail-reservation/internal/payment"
	"rail-reservation/internal/queue"
	apperrors "rail-reservation/pkg/app_errors"
	"rail-reservation/pkg/logger"

	"go.uber.org/zap"
)

type PaymentWorker interface {
	// Start subscribes to booking events and settles payment requests.
	Start(ctx context.Context) error
}

// PaymentSettler is the part of the booking service the worker drives.
type PaymentSettler interface {
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, id int64) (*model.Booking, error)
	FailPayment(ctx context.Context, id int64, reason string) (*model.Booking, error)
}

type PaymentWorkerImpl struct {
	bookings PaymentSettler
	gateway  payment.Gateway
	queue    queue.EventQueue
	log      *zap.Logger
}

func NewPaymentWorker(bookings PaymentSettler, gateway payment.Gateway, queue queue.EventQueue) PaymentWorker {
	return &PaymentWorkerImpl{
		bookings: bookings,
		gateway:  gateway,
		queue:    queue,
		log:      logger.WithComponent("worker"),
	}
}

func (w *PaymentWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			if w.handle(ctx, msg.Data) {
				msg.Ack()
			} else {
				msg.Nack(true)
			}
		}
		w.log.Info("payment worker stopped")
	}()
	return nil
}

// handle returns false when the event should be redelivered.
func (w *PaymentWorkerImpl) handle(ctx context.Context, event *model.BookingEvent) bool {
	if event == nil || event.Type != model.BookingEventPaymentRequested {
		return true
	}
	log := w.log.With(zap.Int64("booking_id", event.BookingID), zap.String("pnr", event.PNR))

	booking, err := w.bookings.GetBooking(ctx, event.BookingID)
	if err != nil {
		if errors.Is(err, apperrors.ErrBookingNotFound) {
			log.Warn("payment requested for unknown booking")
			return true
		}
		log.Warn("load booking failed", zap.Error(err))
		return false
	}
	if booking.Status != model.BookingStatusPendingPayment {
		log.Info("booking no longer awaits payment", zap.String("status", string(booking.Status)))
		return true
	}

	// no ledger lock is held while the gateway is called
	reference, err := w.gateway.Authorize(ctx, booking.ID, booking.Amount)
	switch {
	case err == nil:
		return w.settle(ctx, log.With(zap.String("reference", reference)), booking.ID)
	case errors.Is(err, apperrors.ErrPaymentFailed):
		if _, err := w.bookings.FailPayment(ctx, booking.ID, err.Error()); err != nil {
			return w.retryable(log, "fail payment", err)
		}
		log.Info("payment declined, seats released")
		return true
	default:
		log.Warn("payment authorization unavailable", zap.Error(err))
		return false
	}
}

func (w *PaymentWorkerImpl) settle(ctx context.Context, log *zap.Logger, id int64) bool {
	if _, err := w.bookings.ConfirmPayment(ctx, id); err != nil {
		return w.retryable(log, "confirm payment", err)
	}
	log.Info("payment authorized, booking confirmed")
	return true
}

func (w *PaymentWorkerImpl) retryable(log *zap.Logger, op string, err error) bool {
	if errors.Is(err, apperrors.ErrInvalidStatusTransition) {
		// expired or cancelled while the gateway was deciding
		log.Warn(op+" skipped", zap.Error(err))
		return true
	}
	log.Warn(op+" failed", zap.Error(err))
	return false
}
