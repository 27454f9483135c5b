package model

import "time"

type BookingEventType string

const (
	BookingEventCreated          BookingEventType = "created"
	BookingEventWaitlisted       BookingEventType = "waitlisted"
	BookingEventConfirmed        BookingEventType = "confirmed"
	BookingEventPromoted         BookingEventType = "promoted"
	BookingEventCancelled        BookingEventType = "cancelled"
	BookingEventPaymentRequested BookingEventType = "payment_requested"
)

// BookingEvent is published after a booking transition is committed.
type BookingEvent struct {
	ID               string           `json:"id"`
	Type             BookingEventType `json:"type"`
	BookingID        int64            `json:"booking_id"`
	PNR              string           `json:"pnr"`
	UserID           int64            `json:"user_id"`
	Status           BookingStatus    `json:"status"`
	Amount           float64          `json:"amount"`
	PassengerCount   int              `json:"passenger_count"`
	WaitlistPosition *int             `json:"waitlist_position,omitempty"`
	LedgerKey        string           `json:"ledger_key"`
	Reason           string           `json:"reason,omitempty"`
	OccurredAt       time.Time        `json:"occurred_at"`
}
