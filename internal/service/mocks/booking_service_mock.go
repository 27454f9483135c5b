package mocks

import (
	"context"
	"time"

	"rail-reservation/internal/model"

	"github.com/stretchr/testify/mock"
)

type BookingServiceMock struct {
	mock.Mock
}

func NewBookingServiceMock() *BookingServiceMock {
	return &BookingServiceMock{}
}

func (m *BookingServiceMock) booking(args mock.Arguments) (*model.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *BookingServiceMock) Submit(ctx context.Context, req model.BookingRequest) (*model.Booking, error) {
	return m.booking(m.Called(ctx, req))
}

func (m *BookingServiceMock) Cancel(ctx context.Context, id int64) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *BookingServiceMock) ConfirmPayment(ctx context.Context, id int64) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *BookingServiceMock) FailPayment(ctx context.Context, id int64, reason string) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id, reason))
}

func (m *BookingServiceMock) ExpireBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *BookingServiceMock) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Int(0), args.Error(1)
}

func (m *BookingServiceMock) GetAvailability(ctx context.Context, q model.AvailabilityQuery) (*model.Availability, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Availability), args.Error(1)
}

func (m *BookingServiceMock) ListWaitlist(ctx context.Context, q model.AvailabilityQuery) ([]*model.WaitlistEntry, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.WaitlistEntry), args.Error(1)
}

func (m *BookingServiceMock) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return m.booking(m.Called(ctx, id))
}

func (m *BookingServiceMock) GetBookingByPNR(ctx context.Context, pnr string) (*model.Booking, error) {
	return m.booking(m.Called(ctx, pnr))
}

func (m *BookingServiceMock) ListUserBookings(ctx context.Context, userID int64) ([]*model.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}
