package ledger_test

import (
	"testing"
	"time"

	"rail-reservation/internal/ledger"
	"rail-reservation/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePool(t *testing.T) {
	date := time.Date(2026, 11, 2, 18, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	class := model.TrainClass{
		TrainID:         12951,
		CoachClass:      "SL",
		TotalSeats:      100,
		TatkalSeats:     15,
		LadiesSeats:     6,
		SeniorSeats:     4,
		DisabilitySeats: 2,
	}

	tests := []struct {
		quota model.Quota
		seats int
	}{
		{model.QuotaGeneral, 73},
		{model.QuotaTatkal, 15},
		{model.QuotaLadies, 6},
		{model.QuotaSenior, 4},
		{model.QuotaDisability, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.quota), func(t *testing.T) {
			pool, err := ledger.ResolvePool(class, date, tt.quota)
			require.NoError(t, err)
			assert.Equal(t, tt.seats, pool.Seats)
			assert.Equal(t, tt.quota, pool.Key.Quota)
			assert.Equal(t, "2026-11-02", pool.Key.JourneyDate.Format(model.DateLayout))
		})
	}

	t.Run("tatkal carved out of general", func(t *testing.T) {
		plain := model.TrainClass{TrainID: 1, CoachClass: "3A", TotalSeats: 100, TatkalSeats: 15}

		general, err := ledger.ResolvePool(plain, date, model.QuotaGeneral)
		require.NoError(t, err)
		tatkal, err := ledger.ResolvePool(plain, date, model.QuotaTatkal)
		require.NoError(t, err)

		assert.Equal(t, 85, general.Seats)
		assert.Equal(t, 15, tatkal.Seats)
		assert.NotEqual(t, general.Key, tatkal.Key)
	})

	t.Run("over reserved class", func(t *testing.T) {
		bad := model.TrainClass{TrainID: 1, CoachClass: "1A", TotalSeats: 10, TatkalSeats: 8, LadiesSeats: 4}
		_, err := ledger.ResolvePool(bad, date, model.QuotaGeneral)
		assert.Error(t, err)
	})

	t.Run("unknown quota", func(t *testing.T) {
		_, err := ledger.ResolvePool(class, date, "vip")
		assert.Error(t, err)
	})
}
