// Package redis disponibiliza a implementação do storage baseada em Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/ports"
)

// incrementScript cria ou incrementa o contador e só define a expiração
// quando a chave ainda não tem TTL.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

type Storage struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var (
	_ ports.CounterStore    = (*Storage)(nil)
	_ ports.TTLIntrospector = (*Storage)(nil)
)

type Config struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func New(cfg Config, logger *zap.Logger) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient usa um cliente já configurado (nó único ou cluster).
func NewWithClient(client redis.UniversalClient, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{client: client, logger: logger.Named("redis_storage")}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Storage) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	count, err := incrementScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TTL devolve ok=false para chave ausente, chave sem expiração ou erro.
func (s *Storage) TTL(ctx context.Context, key string) (time.Duration, bool) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		s.logger.Warn("ttl introspection failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}
