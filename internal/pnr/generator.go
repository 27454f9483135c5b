package pnr

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	// base keeps every PNR at exactly ten digits.
	base     int64 = 1_000_000_000
	capacity int64 = 9_000_000_000

	SequenceKey = "pnr:seq"
)

// Generator hands out unique ten digit PNRs. A PNR is never reused, even
// when the booking it was drawn for is rolled back.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

func format(seq int64) (string, error) {
	if seq < 1 || seq > capacity {
		return "", fmt.Errorf("pnr sequence %d out of range", seq)
	}
	return fmt.Sprintf("%010d", base+seq-1), nil
}

type RedisGenerator struct {
	client *redis.Client
}

func NewRedisGenerator(client *redis.Client) Generator {
	return &RedisGenerator{client: client}
}

func (g *RedisGenerator) Next(ctx context.Context) (string, error) {
	seq, err := g.client.Incr(ctx, SequenceKey).Result()
	if err != nil {
		return "", fmt.Errorf("incr %s: %w", SequenceKey, err)
	}
	return format(seq)
}

type PostgresGenerator struct {
	pool *pgxpool.Pool
}

func NewPostgresGenerator(pool *pgxpool.Pool) Generator {
	return &PostgresGenerator{pool: pool}
}

func (g *PostgresGenerator) Next(ctx context.Context) (string, error) {
	var seq int64
	if err := g.pool.QueryRow(ctx, `SELECT nextval('pnr_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("nextval pnr_seq: %w", err)
	}
	return format(seq)
}

type MemoryGenerator struct {
	seq atomic.Int64
}

func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{}
}

func (g *MemoryGenerator) Next(_ context.Context) (string, error) {
	return format(g.seq.Add(1))
}
