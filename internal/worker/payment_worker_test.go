package worker_test

import (
	"context"
	"testing"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/model"
	"rail-reservation/internal/payment"
	"rail-reservation/internal/pnr"
	"rail-reservation/internal/queue"
	"rail-reservation/internal/repository/memory"
	"rail-reservation/internal/service"
	"rail-reservation/internal/worker"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockSettler) ConfirmPayment(ctx context.Context, id int64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockSettler) FailPayment(ctx context.Context, id int64, reason string) (*model.Booking, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func paymentRequested(id int64) *model.BookingEvent {
	return &model.BookingEvent{ID: "evt", Type: model.BookingEventPaymentRequested, BookingID: id, Amount: 900}
}

func TestPaymentWorker_ApprovedPaymentConfirms(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	gateway := payment.NewSimulatedGateway()
	settler := new(MockSettler)

	done := make(chan struct{})
	settler.On("GetBooking", mock.Anything, int64(1)).
		Return(&model.Booking{ID: 1, Status: model.BookingStatusPendingPayment, Amount: 900}, nil)
	settler.On("ConfirmPayment", mock.Anything, int64(1)).
		Return(&model.Booking{ID: 1, Status: model.BookingStatusConfirmed}, nil).
		Run(func(mock.Arguments) { close(done) })

	require.NoError(t, worker.NewPaymentWorker(settler, gateway, q).Start(ctx))
	require.NoError(t, q.Publish(ctx, paymentRequested(1)))

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("worker did not confirm the booking in time")
	}
	assert.Equal(t, 1, gateway.Calls())
	settler.AssertNotCalled(t, "FailPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentWorker_DeclinedPaymentFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	gateway := payment.NewSimulatedGateway()
	gateway.Decline(2)
	settler := new(MockSettler)

	done := make(chan struct{})
	settler.On("GetBooking", mock.Anything, int64(2)).
		Return(&model.Booking{ID: 2, Status: model.BookingStatusPendingPayment, Amount: 900}, nil)
	settler.On("FailPayment", mock.Anything, int64(2), mock.AnythingOfType("string")).
		Return(&model.Booking{ID: 2, Status: model.BookingStatusCancelled}, nil).
		Run(func(mock.Arguments) { close(done) })

	require.NoError(t, worker.NewPaymentWorker(settler, gateway, q).Start(ctx))
	require.NoError(t, q.Publish(ctx, paymentRequested(2)))

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("worker did not fail the booking in time")
	}
	settler.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything)
}

func TestPaymentWorker_SkipsSettledAndOtherEvents(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	q := queue.NewMemoryEventQueue(10)
	gateway := payment.NewSimulatedGateway()
	settler := new(MockSettler)

	seen := make(chan struct{}, 1)
	settler.On("GetBooking", mock.Anything, int64(3)).
		Return(&model.Booking{ID: 3, Status: model.BookingStatusCancelled}, nil).
		Run(func(mock.Arguments) { seen <- struct{}{} })

	require.NoError(t, worker.NewPaymentWorker(settler, gateway, q).Start(ctx))
	require.NoError(t, q.Publish(ctx, &model.BookingEvent{Type: model.BookingEventWaitlisted, BookingID: 4}))
	require.NoError(t, q.Publish(ctx, paymentRequested(3)))

	select {
	case <-seen:
	case <-ctx.Done():
		t.Fatal("worker did not read the booking")
	}
	assert.Zero(t, gateway.Calls())
	settler.AssertNotCalled(t, "GetBooking", mock.Anything, int64(4))
}

func TestPaymentWorker_SettlesBookingsEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := config.LoadTestConfig()
	trains := memory.NewTrainCatalog(&model.Train{
		ID: 1, Number: "12951", Name: "Rajdhani", Active: true,
		Classes: []model.TrainClass{{CoachClass: "3A", TotalSeats: 2, BaseFare: 1000}},
	})
	stations := memory.NewStationCatalog(
		&model.Station{ID: 1, Code: "NDLS", Active: true},
		&model.Station{ID: 2, Code: "MMCT", Active: true},
	)
	q := queue.NewMemoryEventQueue(cfg.Queue.BufferSize)
	svc := service.NewBookingService(service.Dependencies{
		Store:    memory.NewStore(cfg.Allocation.LockTimeout),
		Trains:   trains,
		Stations: stations,
		PNR:      pnr.NewMemoryGenerator(),
		Events:   q,
	}, cfg.Allocation)

	gateway := payment.NewSimulatedGateway()
	require.NoError(t, worker.NewPaymentWorker(svc, gateway, q).Start(ctx))

	req := model.BookingRequest{
		UserID: 1, TrainID: 1, FromStationID: 1, ToStationID: 2,
		JourneyDate: time.Now().UTC().AddDate(0, 0, 7).Format(model.DateLayout),
		CoachClass:  "3A", PassengerCount: 1,
	}
	paid, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	gateway.Decline(paid.ID + 1)
	declined, err := svc.Submit(ctx, req)
	require.NoError(t, err)
	require.Equal(t, paid.ID+1, declined.ID)

	require.Eventually(t, func() bool {
		b, err := svc.GetBooking(ctx, paid.ID)
		return err == nil && b.Status == model.BookingStatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		b, err := svc.GetBooking(ctx, declined.ID)
		return err == nil && b.Status == model.BookingStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.ConfirmPayment(ctx, declined.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
}
