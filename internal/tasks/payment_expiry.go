package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/model"
	apperrors "rail-reservation/pkg/app_errors"
	"rail-reservation/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypePaymentExpiry = "booking:payment_expiry"

	queueName = "default"
)

type PaymentExpiryPayload struct {
	BookingID int64     `json:"booking_id" validate:"required,gt=0"`
	DueAt     time.Time `json:"due_at" validate:"required"`
}

func NewPaymentExpiryTask(bookingID int64, dueAt time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(PaymentExpiryPayload{BookingID: bookingID, DueAt: dueAt.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentExpiry, payload), nil
}

func RedisConnOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// ExpiryClient schedules one delayed expiry task per pending booking.
type ExpiryClient struct {
	client   *asynq.Client
	maxRetry int
}

func NewExpiryClient(client *asynq.Client, maxRetry int) *ExpiryClient {
	return &ExpiryClient{client: client, maxRetry: maxRetry}
}

func (c *ExpiryClient) SchedulePaymentExpiry(ctx context.Context, bookingID int64, at time.Time) error {
	task, err := NewPaymentExpiryTask(bookingID, at)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.TaskID(taskID(bookingID)),
		asynq.MaxRetry(c.maxRetry),
		asynq.Queue(queueName),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func taskID(bookingID int64) string {
	return "payment-expiry:" + strconv.FormatInt(bookingID, 10)
}

type Expirer interface {
	ExpireBooking(ctx context.Context, id int64) (*model.Booking, error)
}

type ExpiryHandler struct {
	expirer   Expirer
	validator *validator.Validate
	log       *zap.Logger
}

func NewExpiryHandler(expirer Expirer) *ExpiryHandler {
	return &ExpiryHandler{
		expirer:   expirer,
		validator: validator.New(),
		log:       logger.WithComponent("tasks"),
	}
}

func (h *ExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PaymentExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.Error("unmarshal payment expiry payload failed", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := h.validator.Struct(payload); err != nil {
		h.log.Error("invalid payment expiry payload", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	booking, err := h.expirer.ExpireBooking(ctx, payload.BookingID)
	switch {
	case err == nil:
		h.log.Debug("payment expiry checked",
			zap.Int64("booking_id", payload.BookingID),
			zap.String("status", string(booking.Status)))
		return nil
	case errors.Is(err, apperrors.ErrBookingNotFound):
		h.log.Warn("payment expiry for unknown booking", zap.Int64("booking_id", payload.BookingID))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	default:
		// Busy and store errors are retried by asynq
		h.log.Warn("payment expiry failed", zap.Int64("booking_id", payload.BookingID), zap.Error(err))
		return err
	}
}

// Server runs the asynq workers that consume scheduled tasks.
type Server struct {
	srv *asynq.Server
	mux *asynq.ServeMux
	log *zap.Logger
}

func NewServer(cfg *config.RedisConfig, concurrency int, expiry *ExpiryHandler) *Server {
	srv := asynq.NewServer(RedisConnOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName: 10,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypePaymentExpiry, expiry)

	return &Server{srv: srv, mux: mux, log: logger.WithComponent("tasks")}
}

func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	s.log.Info("task server started")
	return nil
}

func (s *Server) Shutdown() {
	s.srv.Shutdown()
	s.log.Info("task server stopped")
}
