package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rail-reservation/config"
	"rail-reservation/internal/cache"
	"rail-reservation/internal/database"
	"rail-reservation/internal/handler"
	"rail-reservation/internal/ledger"
	"rail-reservation/internal/payment"
	"rail-reservation/internal/pnr"
	"rail-reservation/internal/queue"
	"rail-reservation/internal/repository"
	"rail-reservation/internal/repository/memory"
	"rail-reservation/internal/scheduler"
	"rail-reservation/internal/service"
	"rail-reservation/internal/tasks"
	"rail-reservation/internal/worker"
	"rail-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type storage struct {
	store    repository.Store
	trains   repository.TrainRepository
	stations repository.StationRepository
	pool     *pgxpool.Pool
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.SetLevel(cfg.Server.LogLevel); err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	defer logger.L.Sync()
	gin.SetMode(cfg.Server.Mode)

	if err := run(cfg); err != nil {
		logger.L.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	lg := logger.WithComponent("main")

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	if st.pool != nil {
		defer st.pool.Close()
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	defer rdb.Close()

	pnrs, err := newPNRGenerator(cfg, st.pool, rdb)
	if err != nil {
		return err
	}

	events, err := newEventQueue(cfg, rdb)
	if err != nil {
		return err
	}

	deps := service.Dependencies{
		Store:    st.store,
		Trains:   st.trains,
		Stations: st.stations,
		PNR:      pnrs,
		Ledger:   ledger.New(),
		Cache:    cache.NewRedisAvailabilityCache(rdb, cfg.Store.CacheTTL),
		Events:   events,
	}

	var taskServer *tasks.Server
	if cfg.Scheduler.UseTaskQueue {
		client := asynq.NewClient(tasks.RedisConnOpt(&cfg.Redis))
		defer client.Close()
		deps.Expiry = tasks.NewExpiryClient(client, cfg.Scheduler.TaskMaxRetry)
	}

	bookings := service.NewBookingService(deps, cfg.Allocation)

	if cfg.Scheduler.UseTaskQueue {
		taskServer = tasks.NewServer(&cfg.Redis, cfg.Scheduler.TaskConcurrency, tasks.NewExpiryHandler(bookings))
		if err := taskServer.Start(); err != nil {
			return err
		}
		defer taskServer.Shutdown()
	}

	if err := worker.NewPaymentWorker(bookings, newGateway(cfg), events).Start(ctx); err != nil {
		return fmt.Errorf("start payment worker: %w", err)
	}

	sweeper := scheduler.NewSweeper(rdb, bookings, scheduler.Options{
		Interval:       cfg.Scheduler.Interval,
		LeaderTTL:      cfg.Scheduler.LeaderTTL,
		PaymentTimeout: cfg.Allocation.PaymentTimeout,
		BatchSize:      cfg.Scheduler.SweepBatchSize,
	})
	go sweeper.Run(ctx)

	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	handler.NewBookingHandler(bookings).RegisterRoutes(router)
	handler.NewAvailabilityHandler(bookings).RegisterRoutes(router)
	handler.NewTrainHandler(service.NewCatalogService(st.trains, st.stations)).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		trains, stations := memoryCatalog()
		return &storage{
			store:    memory.NewStore(cfg.Allocation.LockTimeout),
			trains:   trains,
			stations: stations,
		}, nil
	case config.StoreDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(&cfg.Database); err != nil {
				return nil, err
			}
		}
		pool, err := database.InitDatabase(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		return &storage{
			store:    repository.NewPostgresStore(pool, cfg.Allocation.LockTimeout),
			trains:   repository.NewTrainRepository(pool),
			stations: repository.NewStationRepository(pool),
			pool:     pool,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newPNRGenerator(cfg *config.Config, pool *pgxpool.Pool, rdb *redis.Client) (pnr.Generator, error) {
	switch cfg.Store.PnrSource {
	case config.PnrSourceRedis:
		return pnr.NewRedisGenerator(rdb), nil
	case config.PnrSourcePostgres:
		if pool == nil {
			return nil, errors.New("postgres pnr source needs the postgres store")
		}
		return pnr.NewPostgresGenerator(pool), nil
	case config.PnrSourceMemory:
		return pnr.NewMemoryGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown pnr source %q", cfg.Store.PnrSource)
	}
}

func newEventQueue(cfg *config.Config, rdb *redis.Client) (queue.EventQueue, error) {
	switch cfg.Queue.Driver {
	case config.QueueDriverMemory:
		return queue.NewMemoryEventQueue(cfg.Queue.BufferSize), nil
	case config.QueueDriverRedis:
		host, _ := os.Hostname()
		return queue.NewRedisStreamEventQueue(rdb, fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]), &queue.RedisStreamConfig{
			ClaimMinIdleTime: cfg.Queue.ClaimMinIdleTime,
			MaxRetryCount:    cfg.Queue.MaxRetryCount,
		})
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

func newGateway(cfg *config.Config) payment.Gateway {
	if cfg.Payment.Driver == config.PaymentDriverHTTP {
		return payment.NewHTTPGateway(cfg.Payment.GatewayURL, cfg.Payment.Timeout, cfg.Payment.BreakerThreshold)
	}
	return payment.NewSimulatedGateway()
}
