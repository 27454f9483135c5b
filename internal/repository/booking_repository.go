package repository

import (
	"context"
	"errors"
	"time"

	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Booking, error)
	FindByPNR(ctx context.Context, pnr string) (*model.Booking, error)
	FindByRequestID(ctx context.Context, requestID string) (*model.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Booking, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) error
	Update(ctx context.Context, tx pgx.Tx, booking *model.Booking) error
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int64) (*model.Booking, error)
	FindByRequestIDTx(ctx context.Context, tx pgx.Tx, requestID string) (*model.Booking, error)
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `
	id, pnr, COALESCE(request_id, ''), user_id, train_id,
	from_station_id, to_station_id, journey_date, coach_class,
	passenger_count, passengers, quota, booking_type, amount::float8,
	status, waitlist_position, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.PNR,
		&b.RequestID,
		&b.UserID,
		&b.TrainID,
		&b.FromStationID,
		&b.ToStationID,
		&b.JourneyDate,
		&b.CoachClass,
		&b.PassengerCount,
		&b.Passengers,
		&b.Quota,
		&b.BookingType,
		&b.Amount,
		&b.Status,
		&b.WaitlistPosition,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	b.JourneyDate = model.TruncateDate(b.JourneyDate)
	return &b, nil
}

func scanBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *BookingRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (
			pnr, request_id, user_id, train_id, from_station_id, to_station_id,
			journey_date, coach_class, passenger_count, passengers, quota,
			booking_type, amount, status, waitlist_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`

	err := tx.QueryRow(ctx, query,
		booking.PNR, nullableString(booking.RequestID), booking.UserID, booking.TrainID,
		booking.FromStationID, booking.ToStationID, booking.JourneyDate, booking.CoachClass,
		booking.PassengerCount, booking.Passengers, booking.Quota, booking.BookingType,
		booking.Amount, booking.Status, booking.WaitlistPosition,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "bookings_request_id_key" {
			return apperrors.InvalidRequest("request_id %q already used", booking.RequestID)
		}
		return err
	}

	return nil
}

func (r *BookingRepositoryImpl) Update(ctx context.Context, tx pgx.Tx, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, waitlist_position = $2, updated_at = $3
		WHERE id = $4
	`

	booking.UpdatedAt = time.Now().UTC()
	result, err := tx.Exec(ctx, query, booking.Status, booking.WaitlistPosition, booking.UpdatedAt, booking.ID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrBookingNotFound
	}

	return nil
}

func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	return scanBooking(tx.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) FindByPNR(ctx context.Context, pnr string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE pnr = $1`
	return scanBooking(r.pool.QueryRow(ctx, query, pnr))
}

func (r *BookingRepositoryImpl) FindByRequestID(ctx context.Context, requestID string) (*model.Booking, error) {
	return r.findByRequestID(ctx, r.pool, requestID)
}

func (r *BookingRepositoryImpl) FindByRequestIDTx(ctx context.Context, tx pgx.Tx, requestID string) (*model.Booking, error) {
	return r.findByRequestID(ctx, tx, requestID)
}

func (r *BookingRepositoryImpl) findByRequestID(ctx context.Context, db DBTX, requestID string) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE request_id = $1`
	return scanBooking(db.QueryRow(ctx, query, requestID))
}

func (r *BookingRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY id DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func (r *BookingRepositoryImpl) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*model.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND created_at < $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, model.BookingStatusPendingPayment, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}
