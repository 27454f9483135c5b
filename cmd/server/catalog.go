package main

import (
	"rail-reservation/internal/model"
	"rail-reservation/internal/repository/memory"
)

// memoryCatalog mirrors migrations/000002_seed_catalog for the memory store.
func memoryCatalog() (*memory.TrainCatalog, *memory.StationCatalog) {
	stations := memory.NewStationCatalog(
		&model.Station{ID: 1, Code: "NDLS", Name: "New Delhi", City: "Delhi", Active: true},
		&model.Station{ID: 2, Code: "MMCT", Name: "Mumbai Central", City: "Mumbai", Active: true},
		&model.Station{ID: 3, Code: "BCT", Name: "Mumbai Central Suburban", City: "Mumbai", Active: true},
		&model.Station{ID: 4, Code: "HWH", Name: "Howrah Junction", City: "Kolkata", Active: true},
	)

	trains := memory.NewTrainCatalog(
		&model.Train{
			ID: 1, Number: "12951", Name: "Mumbai Rajdhani", SourceStationID: 2, DestinationStationID: 1, Active: true,
			Classes: []model.TrainClass{
				{CoachClass: "1A", TotalSeats: 24, TatkalSeats: 4, LadiesSeats: 2, SeniorSeats: 2, DisabilitySeats: 1, BaseFare: 4755, TatkalFare: 5600},
				{CoachClass: "2A", TotalSeats: 100, TatkalSeats: 15, LadiesSeats: 6, SeniorSeats: 4, DisabilitySeats: 2, BaseFare: 2860, TatkalFare: 3400},
				{CoachClass: "3A", TotalSeats: 128, TatkalSeats: 20, LadiesSeats: 6, SeniorSeats: 6, DisabilitySeats: 2, BaseFare: 2055, TatkalFare: 2450},
			},
		},
		&model.Train{
			ID: 2, Number: "12301", Name: "Howrah Rajdhani", SourceStationID: 4, DestinationStationID: 1, Active: true,
			Classes: []model.TrainClass{
				{CoachClass: "2A", TotalSeats: 100, TatkalSeats: 15, LadiesSeats: 6, SeniorSeats: 4, DisabilitySeats: 2, BaseFare: 2970, TatkalFare: 3500},
				{CoachClass: "3A", TotalSeats: 128, TatkalSeats: 20, LadiesSeats: 6, SeniorSeats: 6, DisabilitySeats: 2, BaseFare: 2115, TatkalFare: 2500},
			},
		},
	)
	return trains, stations
}
