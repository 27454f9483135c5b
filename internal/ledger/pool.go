package ledger

import (
	"fmt"
	"time"

	"rail-reservation/internal/model"
)

// Pool is the ledger key a request draws from and the seats it is seeded with.
type Pool struct {
	Key   model.LedgerKey
	Seats int
}

// ResolvePool maps a quota onto its own pool of the class. The general pool
// is what remains after tatkal and the reserved sub-quotas are carved out.
func ResolvePool(class model.TrainClass, journeyDate time.Time, quota model.Quota) (Pool, error) {
	if !quota.IsValid() {
		return Pool{}, fmt.Errorf("unknown quota %q", quota)
	}

	carved := class.TatkalSeats + class.LadiesSeats + class.SeniorSeats + class.DisabilitySeats
	if class.TotalSeats < 0 || carved > class.TotalSeats {
		return Pool{}, fmt.Errorf("class %s of train %d reserves %d of %d seats",
			class.CoachClass, class.TrainID, carved, class.TotalSeats)
	}

	var seats int
	switch quota {
	case model.QuotaGeneral:
		seats = class.TotalSeats - carved
	case model.QuotaTatkal:
		seats = class.TatkalSeats
	case model.QuotaLadies:
		seats = class.LadiesSeats
	case model.QuotaSenior:
		seats = class.SeniorSeats
	case model.QuotaDisability:
		seats = class.DisabilitySeats
	}
	if seats < 0 {
		return Pool{}, fmt.Errorf("negative %s pool for class %s", quota, class.CoachClass)
	}

	return Pool{
		Key:   model.NewLedgerKey(class.TrainID, journeyDate, quota, class.CoachClass),
		Seats: seats,
	}, nil
}
