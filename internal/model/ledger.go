package model

import (
	"fmt"
	"time"
)

// Quota is a named sub-allocation of a train class with independent inventory.
type Quota string

const (
	QuotaGeneral    Quota = "general"
	QuotaTatkal     Quota = "tatkal"
	QuotaLadies     Quota = "ladies"
	QuotaSenior     Quota = "senior"
	QuotaDisability Quota = "disability"
)

func (q Quota) IsValid() bool {
	switch q {
	case QuotaGeneral, QuotaTatkal, QuotaLadies, QuotaSenior, QuotaDisability:
		return true
	}
	return false
}

// CoachClass e.g. 1A, 2A, 3A, SL, CC, 2S.
type CoachClass string

const DateLayout = "2006-01-02"

type LedgerKey struct {
	TrainID     int64      `json:"train_id"`
	JourneyDate time.Time  `json:"journey_date"`
	Quota       Quota      `json:"quota"`
	CoachClass  CoachClass `json:"coach_class"`
}

// NewLedgerKey truncates the date to a UTC day.
func NewLedgerKey(trainID int64, journeyDate time.Time, quota Quota, class CoachClass) LedgerKey {
	return LedgerKey{
		TrainID:     trainID,
		JourneyDate: TruncateDate(journeyDate),
		Quota:       quota,
		CoachClass:  class,
	}
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%d:%s:%s:%s", k.TrainID, k.JourneyDate.Format(DateLayout), k.Quota, k.CoachClass)
}

func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LedgerRow holds the seat counters of one key.
type LedgerRow struct {
	Key            LedgerKey `json:"key"`
	TotalSeats     int       `json:"total_seats" db:"total_seats"`
	AvailableSeats int       `json:"available_seats" db:"available_seats"`
	WaitingCount   int       `json:"waiting_count" db:"waiting_count"`
	Version        int64     `json:"version" db:"version"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Validate checks 0 <= available <= total and waiting >= 0.
func (r *LedgerRow) Validate() error {
	if r.TotalSeats < 0 {
		return fmt.Errorf("total_seats %d is negative", r.TotalSeats)
	}
	if r.AvailableSeats < 0 || r.AvailableSeats > r.TotalSeats {
		return fmt.Errorf("available_seats %d outside [0, %d]", r.AvailableSeats, r.TotalSeats)
	}
	if r.WaitingCount < 0 {
		return fmt.Errorf("waiting_count %d is negative", r.WaitingCount)
	}
	return nil
}

// Availability is the display view of a ledger row. It may be stale.
type Availability struct {
	TrainID     int64      `json:"train_id"`
	JourneyDate string     `json:"journey_date"`
	Quota       Quota      `json:"quota"`
	CoachClass  CoachClass `json:"coach_class"`
	Total       int        `json:"total"`
	Available   int        `json:"available"`
	Waiting     int        `json:"waiting"`
	Version     int64      `json:"-"`
}

func AvailabilityFromRow(row *LedgerRow) Availability {
	return Availability{
		TrainID:     row.Key.TrainID,
		JourneyDate: row.Key.JourneyDate.Format(DateLayout),
		Quota:       row.Key.Quota,
		CoachClass:  row.Key.CoachClass,
		Total:       row.TotalSeats,
		Available:   row.AvailableSeats,
		Waiting:     row.WaitingCount,
		Version:     row.Version,
	}
}

type AvailabilityQuery struct {
	TrainID     int64      `form:"train_id" json:"train_id" binding:"required"`
	JourneyDate string     `form:"journey_date" json:"journey_date" binding:"required"`
	Quota       Quota      `form:"quota" json:"quota"`
	CoachClass  CoachClass `form:"coach_class" json:"coach_class" binding:"required"`
}
