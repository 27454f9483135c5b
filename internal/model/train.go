package model

import "time"

// Station is a read-only catalog entry.
type Station struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	City      string    `json:"city" db:"city"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrainClass is the seat configuration of one coach class on a train.
// Ladies, senior and disability seats are carved out of the general pool.
type TrainClass struct {
	TrainID         int64      `json:"train_id" db:"train_id"`
	CoachClass      CoachClass `json:"coach_class" db:"coach_class"`
	TotalSeats      int        `json:"total_seats" db:"total_seats"`
	TatkalSeats     int        `json:"tatkal_seats" db:"tatkal_seats"`
	LadiesSeats     int        `json:"ladies_seats" db:"ladies_seats"`
	SeniorSeats     int        `json:"senior_seats" db:"senior_seats"`
	DisabilitySeats int        `json:"disability_seats" db:"disability_seats"`
	BaseFare        float64    `json:"base_fare" db:"base_fare"`
	TatkalFare      float64    `json:"tatkal_fare" db:"tatkal_fare"`
}

// Fare returns the per-passenger fare for the booking type.
func (c *TrainClass) Fare(bookingType BookingType) float64 {
	if bookingType == BookingTypeTatkal {
		return c.TatkalFare
	}
	return c.BaseFare
}

type Train struct {
	ID                   int64        `json:"id" db:"id"`
	Number               string       `json:"number" db:"number"`
	Name                 string       `json:"name" db:"name"`
	SourceStationID      int64        `json:"source_station_id" db:"source_station_id"`
	DestinationStationID int64        `json:"destination_station_id" db:"destination_station_id"`
	Active               bool         `json:"active" db:"active"`
	Classes              []TrainClass `json:"classes"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at" db:"updated_at"`
}

// Class looks up the configuration of one coach class.
func (t *Train) Class(class CoachClass) (*TrainClass, bool) {
	for i := range t.Classes {
		if t.Classes[i].CoachClass == class {
			return &t.Classes[i], true
		}
	}
	return nil, false
}
