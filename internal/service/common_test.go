package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/model"
	"rail-reservation/internal/pnr"
	"rail-reservation/internal/queue"
	"rail-reservation/internal/repository/memory"
	"rail-reservation/internal/service"

	"github.com/stretchr/testify/require"
)

const (
	tomorrow = "2026-10-20"

	trainSmall  int64 = 1 // 3A: 2 seats, 2A: 3 seats
	trainMail   int64 = 2 // SL: 100 seats with 15 tatkal, 3A: 20 with ladies and senior quotas
	trainParked int64 = 3
)

var fixedNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

type engine struct {
	svc    service.BookingService
	store  *memory.Store
	trains *memory.TrainCatalog
	events *recordingQueue
	expiry *recordingScheduler
}

func testCatalog() (*memory.TrainCatalog, *memory.StationCatalog) {
	trains := memory.NewTrainCatalog(
		&model.Train{
			ID: trainSmall, Number: "12001", Name: "Shatabdi", SourceStationID: 1, DestinationStationID: 2, Active: true,
			Classes: []model.TrainClass{
				{CoachClass: "3A", TotalSeats: 2, BaseFare: 1000, TatkalFare: 1400},
				{CoachClass: "2A", TotalSeats: 3, BaseFare: 1500, TatkalFare: 2000},
			},
		},
		&model.Train{
			ID: trainMail, Number: "12951", Name: "Rajdhani", SourceStationID: 1, DestinationStationID: 2, Active: true,
			Classes: []model.TrainClass{
				{CoachClass: "SL", TotalSeats: 100, TatkalSeats: 15, BaseFare: 450, TatkalFare: 600},
				{CoachClass: "3A", TotalSeats: 20, LadiesSeats: 4, SeniorSeats: 2, BaseFare: 1200, TatkalFare: 1600},
			},
		},
		&model.Train{
			ID: trainParked, Number: "00000", Name: "Parked", Active: false,
			Classes: []model.TrainClass{{CoachClass: "SL", TotalSeats: 10, BaseFare: 100}},
		},
	)
	stations := memory.NewStationCatalog(
		&model.Station{ID: 1, Code: "NDLS", Name: "New Delhi", City: "Delhi", Active: true},
		&model.Station{ID: 2, Code: "MMCT", Name: "Mumbai Central", City: "Mumbai", Active: true},
		&model.Station{ID: 3, Code: "OLD", Name: "Old Halt", City: "Nowhere", Active: false},
	)
	return trains, stations
}

func testAllocationConfig() config.AllocationConfig {
	return config.LoadTestConfig().Allocation
}

func newEngine(t *testing.T, cfg config.AllocationConfig) *engine {
	t.Helper()

	trains, stations := testCatalog()
	store := memory.NewStore(cfg.LockTimeout)
	events := &recordingQueue{}
	expiry := &recordingScheduler{}

	svc := service.NewBookingService(service.Dependencies{
		Store:    store,
		Trains:   trains,
		Stations: stations,
		PNR:      pnr.NewMemoryGenerator(),
		Events:   events,
		Expiry:   expiry,
		Now:      func() time.Time { return fixedNow },
	}, cfg)

	return &engine{svc: svc, store: store, trains: trains, events: events, expiry: expiry}
}

func request(trainID int64, class model.CoachClass, count int) model.BookingRequest {
	return model.BookingRequest{
		UserID:         42,
		TrainID:        trainID,
		FromStationID:  1,
		ToStationID:    2,
		JourneyDate:    tomorrow,
		CoachClass:     class,
		PassengerCount: count,
	}
}

func (e *engine) submit(t *testing.T, req model.BookingRequest) *model.Booking {
	t.Helper()
	b, err := e.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	return b
}

func (e *engine) availability(t *testing.T, trainID int64, class model.CoachClass, quota model.Quota) *model.Availability {
	t.Helper()
	av, err := e.svc.GetAvailability(context.Background(), model.AvailabilityQuery{
		TrainID:     trainID,
		JourneyDate: tomorrow,
		Quota:       quota,
		CoachClass:  class,
	})
	require.NoError(t, err)
	return av
}

func (e *engine) booking(t *testing.T, id int64) *model.Booking {
	t.Helper()
	b, err := e.svc.GetBooking(context.Background(), id)
	require.NoError(t, err)
	return b
}

func position(b *model.Booking) int {
	if b.WaitlistPosition == nil {
		return 0
	}
	return *b.WaitlistPosition
}

// recordingQueue keeps published events in memory.
type recordingQueue struct {
	mu     sync.Mutex
	events []*model.BookingEvent
}

func (q *recordingQueue) Publish(_ context.Context, event *model.BookingEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Subscribe(context.Context) (<-chan queue.Delivery, error) {
	return make(chan queue.Delivery), nil
}

func (q *recordingQueue) types(bookingID int64) []model.BookingEventType {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []model.BookingEventType
	for _, e := range q.events {
		if e.BookingID == bookingID {
			out = append(out, e.Type)
		}
	}
	return out
}

type recordingScheduler struct {
	mu  sync.Mutex
	ats map[int64]time.Time
}

func (s *recordingScheduler) SchedulePaymentExpiry(_ context.Context, bookingID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ats == nil {
		s.ats = make(map[int64]time.Time)
	}
	s.ats[bookingID] = at
	return nil
}

func (s *recordingScheduler) scheduled(bookingID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.ats[bookingID]
	return at, ok
}
