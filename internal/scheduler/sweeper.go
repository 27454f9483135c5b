package scheduler

import (
	"context"
	"errors"
	"time"

	"rail-reservation/pkg/logger"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	LeaderLockName = "lock:payment-expiry-sweeper"

	defaultBatchSize = 100
)

type PendingExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type Options struct {
	Interval       time.Duration
	LeaderTTL      time.Duration
	PaymentTimeout time.Duration
	BatchSize      int
	Now            func() time.Time
}

// Sweeper periodically cancels pending bookings whose payment window has
// passed. Only the instance holding the redsync leader lock sweeps.
type Sweeper struct {
	expirer PendingExpirer
	mutex   *redsync.Mutex
	opts    Options
	leader  bool
	log     *zap.Logger
}

func NewSweeper(client *redis.Client, expirer PendingExpirer, opts Options) *Sweeper {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LeaderTTL <= 0 {
		opts.LeaderTTL = opts.Interval
	}

	rs := redsync.New(goredis.NewPool(client))
	return &Sweeper{
		expirer: expirer,
		mutex:   rs.NewMutex(LeaderLockName, redsync.WithExpiry(opts.LeaderTTL), redsync.WithTries(1)),
		opts:    opts,
		log:     logger.WithComponent("scheduler"),
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.Info("payment expiry sweeper started", zap.Duration("interval", s.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			s.resign()
			s.log.Info("payment expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one sweep if this instance is or becomes the leader. It returns
// the number of bookings expired.
func (s *Sweeper) Tick(ctx context.Context) (int, error) {
	if !s.lead(ctx) {
		return 0, nil
	}

	cutoff := s.opts.Now().Add(-s.opts.PaymentTimeout)
	expired, err := s.expirer.ExpirePending(ctx, cutoff, s.opts.BatchSize)
	if expired > 0 {
		s.log.Info("expired unpaid bookings", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, err
}

func (s *Sweeper) lead(ctx context.Context) bool {
	if s.leader {
		ok, err := s.mutex.ExtendContext(ctx)
		if err == nil && ok {
			return true
		}
		s.log.Warn("lost sweeper leadership", zap.Error(err))
		s.leader = false
	}

	if err := s.mutex.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if !errors.As(err, &taken) && !errors.Is(err, redsync.ErrFailed) {
			s.log.Warn("leader election failed", zap.Error(err))
		}
		return false
	}
	s.leader = true
	s.log.Info("became sweeper leader")
	return true
}

func (s *Sweeper) resign() {
	if !s.leader {
		return
	}
	s.leader = false
	if _, err := s.mutex.UnlockContext(context.Background()); err != nil {
		s.log.Warn("release sweeper leadership failed", zap.Error(err))
	}
}
