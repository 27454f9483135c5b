package repository

import (
	"context"
	"errors"

	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StationRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Station, error)
	List(ctx context.Context) ([]*model.Station, error)
}

type StationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewStationRepository(pool *pgxpool.Pool) StationRepository {
	return &StationRepositoryImpl{
		pool: pool,
	}
}

func (r *StationRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Station, error) {
	query := `
		SELECT id, code, name, city, active, created_at
		FROM stations
		WHERE id = $1
	`

	var station model.Station
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&station.ID,
		&station.Code,
		&station.Name,
		&station.City,
		&station.Active,
		&station.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrStationNotFound
		}
		return nil, err
	}

	return &station, nil
}

func (r *StationRepositoryImpl) List(ctx context.Context) ([]*model.Station, error) {
	query := `
		SELECT id, code, name, city, active, created_at
		FROM stations
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]*model.Station, 0)
	for rows.Next() {
		var station model.Station
		if err := rows.Scan(
			&station.ID,
			&station.Code,
			&station.Name,
			&station.City,
			&station.Active,
			&station.CreatedAt,
		); err != nil {
			return nil, err
		}
		stations = append(stations, &station)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stations, nil
}
