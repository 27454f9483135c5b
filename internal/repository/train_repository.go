package repository

import (
	"context"
	"errors"

	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TrainRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Train, error)
	List(ctx context.Context) ([]*model.Train, error)
}

type TrainRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTrainRepository(pool *pgxpool.Pool) TrainRepository {
	return &TrainRepositoryImpl{
		pool: pool,
	}
}

const trainClassColumns = `
	train_id, coach_class, total_seats, tatkal_seats,
	ladies_seats, senior_seats, disability_seats,
	base_fare::float8, tatkal_fare::float8`

func (r *TrainRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Train, error) {
	query := `
		SELECT id, number, name, source_station_id, destination_station_id,
				active, created_at, updated_at
		FROM trains
		WHERE id = $1
	`

	var train model.Train
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&train.ID,
		&train.Number,
		&train.Name,
		&train.SourceStationID,
		&train.DestinationStationID,
		&train.Active,
		&train.CreatedAt,
		&train.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTrainNotFound
		}
		return nil, err
	}

	classes, err := r.listClasses(ctx, `WHERE train_id = $1`, id)
	if err != nil {
		return nil, err
	}
	train.Classes = classes[train.ID]

	return &train, nil
}

func (r *TrainRepositoryImpl) List(ctx context.Context) ([]*model.Train, error) {
	query := `
		SELECT id, number, name, source_station_id, destination_station_id,
				active, created_at, updated_at
		FROM trains
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trains := make([]*model.Train, 0)
	for rows.Next() {
		var train model.Train
		if err := rows.Scan(
			&train.ID,
			&train.Number,
			&train.Name,
			&train.SourceStationID,
			&train.DestinationStationID,
			&train.Active,
			&train.CreatedAt,
			&train.UpdatedAt,
		); err != nil {
			return nil, err
		}
		trains = append(trains, &train)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	classes, err := r.listClasses(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, t := range trains {
		t.Classes = classes[t.ID]
	}

	return trains, nil
}

func (r *TrainRepositoryImpl) listClasses(ctx context.Context, where string, args ...any) (map[int64][]model.TrainClass, error) {
	query := `SELECT ` + trainClassColumns + ` FROM train_classes ` + where + ` ORDER BY train_id, coach_class`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := make(map[int64][]model.TrainClass)
	for rows.Next() {
		var c model.TrainClass
		if err := rows.Scan(
			&c.TrainID,
			&c.CoachClass,
			&c.TotalSeats,
			&c.TatkalSeats,
			&c.LadiesSeats,
			&c.SeniorSeats,
			&c.DisabilitySeats,
			&c.BaseFare,
			&c.TatkalFare,
		); err != nil {
			return nil, err
		}
		classes[c.TrainID] = append(classes[c.TrainID], c)
	}
	return classes, rows.Err()
}
