package service

import (
	"context"

	"rail-reservation/internal/model"
	"rail-reservation/internal/repository"
)

// CatalogService exposes the read-only train and station catalog.
type CatalogService interface {
	ListTrains(ctx context.Context) ([]*model.Train, error)
	GetTrain(ctx context.Context, id int64) (*model.Train, error)
	ListStations(ctx context.Context) ([]*model.Station, error)
}

type CatalogServiceImpl struct {
	trains   repository.TrainRepository
	stations repository.StationRepository
}

func NewCatalogService(trains repository.TrainRepository, stations repository.StationRepository) CatalogService {
	return &CatalogServiceImpl{trains: trains, stations: stations}
}

func (s *CatalogServiceImpl) ListTrains(ctx context.Context) ([]*model.Train, error) {
	return s.trains.List(ctx)
}

func (s *CatalogServiceImpl) GetTrain(ctx context.Context, id int64) (*model.Train, error) {
	return s.trains.FindByID(ctx, id)
}

func (s *CatalogServiceImpl) ListStations(ctx context.Context) ([]*model.Station, error) {
	return s.stations.List(ctx)
}
