package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Store      StoreConfig
	Allocation AllocationConfig
	Payment    PaymentConfig
	Scheduler  SchedulerConfig
	Queue      QueueConfig
}

type ServerConfig struct {
	Port         string        `split_words:"true" default:"8080"`
	Mode         string        `split_words:"true" default:"release"`
	ReadTimeout  time.Duration `split_words:"true" default:"10s"`
	WriteTimeout time.Duration `split_words:"true" default:"10s"`
	LogLevel     string        `split_words:"true" default:"info"`
}

type DatabaseConfig struct {
	Host        string        `split_words:"true" default:"localhost"`
	Port        string        `split_words:"true" default:"5432"`
	User        string        `split_words:"true" default:"postgres"`
	Password    string        `split_words:"true" default:"postgres"`
	Name        string        `split_words:"true" default:"postgres"`
	SSLMode     string        `split_words:"true" default:"disable"`
	MaxConns    int32         `split_words:"true" default:"25"`
	MinConns    int32         `split_words:"true" default:"5"`
	MaxLifetime time.Duration `split_words:"true" default:"1h"`
	MaxIdleTime time.Duration `split_words:"true" default:"30m"`
	AutoMigrate bool          `split_words:"true" default:"true"`
}

// DSN returns the keyword/value connection string used by pgxpool.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s timezone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// MigrationURL returns the URL form understood by the golang-migrate pgx5 driver.
func (c DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string `split_words:"true" default:"localhost"`
	Port     string `split_words:"true" default:"6379"`
	Password string `split_words:"true" default:""`
	DB       int    `split_words:"true" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PnrSourceRedis    = "redis"
	PnrSourcePostgres = "postgres"
	PnrSourceMemory   = "memory"
)

type StoreConfig struct {
	Driver    string        `split_words:"true" default:"postgres"`
	PnrSource string        `split_words:"true" default:"redis"`
	// CacheTTL bounds how long an availability snapshot is served without a write.
	CacheTTL  time.Duration `split_words:"true" default:"10m"`
}

type AllocationConfig struct {
	// LockTimeout bounds how long a request waits for a ledger key before failing with Busy.
	LockTimeout        time.Duration `split_words:"true" default:"2s"`
	AdvanceBookingDays int           `split_words:"true" default:"120"`
	TatkalOpenDays     int           `split_words:"true" default:"1"`
	PaymentTimeout     time.Duration `split_words:"true" default:"15m"`
	WaitlistQuotas     []string      `split_words:"true" default:"general,tatkal"`
	WaitlistLimit      int           `split_words:"true" default:"200"`
	// PublishTimeout bounds each post-commit event publish.
	PublishTimeout     time.Duration `split_words:"true" default:"2s"`
}

// WaitlistEnabled reports whether the quota accepts waitlisted bookings.
func (c AllocationConfig) WaitlistEnabled(quota string) bool {
	for _, q := range c.WaitlistQuotas {
		if strings.EqualFold(strings.TrimSpace(q), quota) {
			return true
		}
	}
	return false
}

const (
	PaymentDriverHTTP      = "http"
	PaymentDriverSimulated = "simulated"
)

type PaymentConfig struct {
	Driver           string        `split_words:"true" default:"simulated"`
	GatewayURL       string        `split_words:"true" default:"http://localhost:9090"`
	Timeout          time.Duration `split_words:"true" default:"5s"`
	BreakerThreshold int64         `split_words:"true" default:"5"`
}

type SchedulerConfig struct {
	Interval        time.Duration `split_words:"true" default:"30s"`
	LeaderTTL       time.Duration `split_words:"true" default:"25s"`
	UseTaskQueue    bool          `split_words:"true" default:"true"`
	TaskConcurrency int           `split_words:"true" default:"10"`
	TaskMaxRetry    int           `split_words:"true" default:"5"`
	SweepBatchSize  int           `split_words:"true" default:"100"`
}

const (
	QueueDriverRedis  = "redis"
	QueueDriverMemory = "memory"
)

type QueueConfig struct {
	Driver           string        `split_words:"true" default:"redis"`
	BufferSize       int           `split_words:"true" default:"1024"`
	ClaimMinIdleTime time.Duration `split_words:"true" default:"5s"`
	MaxRetryCount    int           `split_words:"true" default:"5"`
}

var AppConfig *Config

// LoadConfig reads every section from its own environment prefix (DB_, REDIS_, ...).
func LoadConfig() (*Config, error) {
	var cfg Config
	sections := []struct {
		prefix string
		target interface{}
	}{
		{"server", &cfg.Server},
		{"db", &cfg.Database},
		{"redis", &cfg.Redis},
		{"store", &cfg.Store},
		{"allocation", &cfg.Allocation},
		{"payment", &cfg.Payment},
		{"scheduler", &cfg.Scheduler},
		{"queue", &cfg.Queue},
	}
	for _, s := range sections {
		if err := envconfig.Process(s.prefix, s.target); err != nil {
			return nil, fmt.Errorf("load %s config: %w", s.prefix, err)
		}
	}

	AppConfig = &cfg
	return AppConfig, nil
}

func LoadTestConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "test", LogLevel: "debug"},
		Database: DatabaseConfig{
			Host:        "localhost",
			Port:        "5433", // test DB runs on 5433
			User:        "postgres",
			Password:    "postgres",
			Name:        "test_db",
			SSLMode:     "disable",
			MaxConns:    25,
			MinConns:    1,
			MaxLifetime: time.Hour,
			MaxIdleTime: 30 * time.Minute,
			AutoMigrate: true,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6380", // test Redis runs on 6380
			DB:   1,
		},
		Store: StoreConfig{Driver: StoreDriverMemory, PnrSource: PnrSourceMemory, CacheTTL: time.Minute},
		Allocation: AllocationConfig{
			LockTimeout:        500 * time.Millisecond,
			AdvanceBookingDays: 120,
			TatkalOpenDays:     1,
			PaymentTimeout:     15 * time.Minute,
			WaitlistQuotas:     []string{"general", "tatkal"},
			WaitlistLimit:      200,
			PublishTimeout:     100 * time.Millisecond,
		},
		Payment:   PaymentConfig{Driver: PaymentDriverSimulated, Timeout: time.Second, BreakerThreshold: 3},
		Scheduler: SchedulerConfig{Interval: time.Second, LeaderTTL: time.Second, TaskConcurrency: 2, TaskMaxRetry: 1, SweepBatchSize: 10},
		Queue:     QueueConfig{Driver: QueueDriverMemory, BufferSize: 64, ClaimMinIdleTime: time.Second, MaxRetryCount: 3},
	}
}
