package memory

import (
	"context"
	"sort"
	"sync"

	"rail-reservation/internal/model"
	"rail-reservation/internal/repository"
	apperrors "rail-reservation/pkg/app_errors"
)

type TrainCatalog struct {
	mu     sync.RWMutex
	trains map[int64]*model.Train
}

var _ repository.TrainRepository = (*TrainCatalog)(nil)

func NewTrainCatalog(trains ...*model.Train) *TrainCatalog {
	c := &TrainCatalog{trains: make(map[int64]*model.Train)}
	for _, t := range trains {
		c.Put(t)
	}
	return c
}

// Put adds or replaces a train, e.g. to grow a class in tests.
func (c *TrainCatalog) Put(train *model.Train) {
	cp := *train
	cp.Classes = append([]model.TrainClass(nil), train.Classes...)
	for i := range cp.Classes {
		cp.Classes[i].TrainID = cp.ID
	}

	c.mu.Lock()
	c.trains[cp.ID] = &cp
	c.mu.Unlock()
}

func (c *TrainCatalog) FindByID(_ context.Context, id int64) (*model.Train, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.trains[id]
	if !ok {
		return nil, apperrors.ErrTrainNotFound
	}
	cp := *t
	cp.Classes = append([]model.TrainClass(nil), t.Classes...)
	return &cp, nil
}

func (c *TrainCatalog) List(ctx context.Context) ([]*model.Train, error) {
	c.mu.RLock()
	ids := make([]int64, 0, len(c.trains))
	for id := range c.trains {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	trains := make([]*model.Train, 0, len(ids))
	for _, id := range ids {
		t, err := c.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		trains = append(trains, t)
	}
	return trains, nil
}

type StationCatalog struct {
	mu       sync.RWMutex
	stations map[int64]*model.Station
}

var _ repository.StationRepository = (*StationCatalog)(nil)

func NewStationCatalog(stations ...*model.Station) *StationCatalog {
	c := &StationCatalog{stations: make(map[int64]*model.Station)}
	for _, s := range stations {
		cp := *s
		c.stations[s.ID] = &cp
	}
	return c
}

func (c *StationCatalog) FindByID(_ context.Context, id int64) (*model.Station, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stations[id]
	if !ok {
		return nil, apperrors.ErrStationNotFound
	}
	cp := *s
	return &cp, nil
}

func (c *StationCatalog) List(_ context.Context) ([]*model.Station, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stations := make([]*model.Station, 0, len(c.stations))
	for _, s := range c.stations {
		cp := *s
		stations = append(stations, &cp)
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].ID < stations[j].ID })
	return stations, nil
}
