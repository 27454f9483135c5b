package model

import (
	"time"
)

// BookingStatus booking lifecycle state.
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "pending_payment"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusWaitlisted     BookingStatus = "waitlisted"
	BookingStatusCancelled      BookingStatus = "cancelled"
)

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusWaitlisted, BookingStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks the allowed status transitions.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	transitions := map[BookingStatus][]BookingStatus{
		BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled},
		BookingStatusWaitlisted:     {BookingStatusConfirmed, BookingStatusCancelled},
		BookingStatusConfirmed:      {BookingStatusCancelled},
		BookingStatusCancelled:      {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// HoldsSeats: pending_payment and confirmed
func (s BookingStatus) HoldsSeats() bool {
	return s == BookingStatusPendingPayment || s == BookingStatusConfirmed
}

type BookingType string

const (
	BookingTypeGeneral BookingType = "general"
	BookingTypeTatkal  BookingType = "tatkal"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

type Passenger struct {
	Name   string `json:"name" validate:"required,max=64"`
	Age    int    `json:"age" validate:"min=0,max=125"`
	Gender Gender `json:"gender" validate:"required,oneof=M F O"`
}

// Booking is the durable outcome of an allocation decision.
type Booking struct {
	ID               int64         `json:"id" db:"id"`
	PNR              string        `json:"pnr" db:"pnr"`
	RequestID        string        `json:"request_id,omitempty" db:"request_id"`
	UserID           int64         `json:"user_id" db:"user_id"`
	TrainID          int64         `json:"train_id" db:"train_id"`
	FromStationID    int64         `json:"from_station_id" db:"from_station_id"`
	ToStationID      int64         `json:"to_station_id" db:"to_station_id"`
	JourneyDate      time.Time     `json:"journey_date" db:"journey_date"`
	CoachClass       CoachClass    `json:"coach_class" db:"coach_class"`
	PassengerCount   int           `json:"passenger_count" db:"passenger_count"`
	Passengers       []Passenger   `json:"passengers,omitempty" db:"passengers"`
	Quota            Quota         `json:"quota" db:"quota"`
	BookingType      BookingType   `json:"booking_type" db:"booking_type"`
	Amount           float64       `json:"amount" db:"amount"`
	Status           BookingStatus `json:"status" db:"status"`
	WaitlistPosition *int          `json:"waitlist_position,omitempty" db:"waitlist_position"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

func (b *Booking) Key() LedgerKey {
	return NewLedgerKey(b.TrainID, b.JourneyDate, b.Quota, b.CoachClass)
}

// Clone deep copies passengers and position.
func (b *Booking) Clone() *Booking {
	c := *b
	if b.Passengers != nil {
		c.Passengers = append([]Passenger(nil), b.Passengers...)
	}
	if b.WaitlistPosition != nil {
		pos := *b.WaitlistPosition
		c.WaitlistPosition = &pos
	}
	return &c
}

type BookingRequest struct {
	RequestID      string      `json:"request_id" validate:"omitempty,max=64"`
	UserID         int64       `json:"user_id" binding:"required" validate:"required,gt=0"`
	TrainID        int64       `json:"train_id" binding:"required" validate:"required,gt=0"`
	FromStationID  int64       `json:"from_station_id" binding:"required" validate:"required,gt=0"`
	ToStationID    int64       `json:"to_station_id" binding:"required" validate:"required,gt=0,nefield=FromStationID"`
	JourneyDate    string      `json:"journey_date" binding:"required" validate:"required,datetime=2006-01-02"`
	CoachClass     CoachClass  `json:"coach_class" binding:"required" validate:"required,max=8"`
	PassengerCount int         `json:"passenger_count" binding:"required" validate:"min=1,max=6"`
	Quota          Quota       `json:"quota" validate:"omitempty,oneof=general tatkal ladies senior disability"`
	BookingType    BookingType `json:"booking_type" validate:"omitempty,oneof=general tatkal"`
	Passengers     []Passenger `json:"passengers" validate:"omitempty,max=6,dive"`
}

type BookingResponse struct {
	ID               int64   `json:"id"`
	PNR              string  `json:"pnr"`
	Status           string  `json:"status"`
	Quota            string  `json:"quota"`
	CoachClass       string  `json:"coach_class"`
	JourneyDate      string  `json:"journey_date"`
	PassengerCount   int     `json:"passenger_count"`
	WaitlistPosition *int    `json:"waitlist_position,omitempty"`
	Amount           float64 `json:"amount"`
	CreatedAt        string  `json:"created_at"`
}

func NewBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID,
		PNR:              b.PNR,
		Status:           string(b.Status),
		Quota:            string(b.Quota),
		CoachClass:       string(b.CoachClass),
		JourneyDate:      b.JourneyDate.Format(DateLayout),
		PassengerCount:   b.PassengerCount,
		WaitlistPosition: b.WaitlistPosition,
		Amount:           b.Amount,
		CreatedAt:        b.CreatedAt.Format(time.RFC3339),
	}
}

// WaitlistEntry is the queue node of a waitlisted booking.
type WaitlistEntry struct {
	BookingID      int64     `json:"booking_id" db:"booking_id"`
	Key            LedgerKey `json:"key"`
	PassengerCount int       `json:"passenger_count" db:"passenger_count"`
	Position       int       `json:"position" db:"position"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
