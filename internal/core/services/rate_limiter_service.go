package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/ports"
)

// Ordering define a sequência entre leitura e incremento do contador.
type Ordering int

const (
	// OrderingIncrementFirst incrementa atomicamente e nega quando o novo
	// valor passa do limite. Não há corrida entre workers concorrentes.
	OrderingIncrementFirst Ordering = iota
	// OrderingCheckThenIncrement lê, compara e só então incrementa. Duas
	// requisições concorrentes podem passar pela checagem antes do incremento.
	OrderingCheckThenIncrement
)

func (o Ordering) String() string {
	switch o {
	case OrderingIncrementFirst:
		return "increment_first"
	case OrderingCheckThenIncrement:
		return "check_then_increment"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// Config agrega os parâmetros do motor de decisão.
type Config struct {
	Ordering Ordering
	Now      func() time.Time
	Logger   *zap.Logger
}

// RateLimiterService implementa a lógica central de rate limiting.
type RateLimiterService struct {
	storage  ports.CounterStore
	ordering Ordering
	now      func() time.Time
	logger   *zap.Logger
}

var _ ports.RateLimiter = (*RateLimiterService)(nil)

// NewRateLimiterService cria uma nova instância do serviço.
func NewRateLimiterService(storage ports.CounterStore, cfg Config) (*RateLimiterService, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Ordering != OrderingIncrementFirst && cfg.Ordering != OrderingCheckThenIncrement {
		return nil, fmt.Errorf("unknown ordering %s", cfg.Ordering)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &RateLimiterService{
		storage:  storage,
		ordering: cfg.Ordering,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

func (s *RateLimiterService) Ordering() Ordering {
	return s.ordering
}

// Decide avalia se a requisição pode prosseguir de acordo com a regra.
func (s *RateLimiterService) Decide(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey) (domain.Decision, error) {
	if err := rule.Validate(); err != nil {
		return domain.Decision{}, err
	}

	if s.ordering == OrderingCheckThenIncrement {
		current, err := s.storage.Get(ctx, key.String())
		if err != nil {
			return domain.Decision{}, fmt.Errorf("%w: get %s: %v", domain.ErrStore, key, err)
		}
		if current >= int64(rule.MaxAttempts) {
			return s.deny(ctx, rule, key, current), nil
		}
	}

	count, err := s.storage.IncrementWithExpiry(ctx, key.String(), rule.Window)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: increment %s: %v", domain.ErrStore, key, err)
	}

	if s.ordering == OrderingIncrementFirst && count > int64(rule.MaxAttempts) {
		return s.deny(ctx, rule, key, count), nil
	}

	remaining := int64(rule.MaxAttempts) - count
	if remaining < 0 {
		remaining = 0
	}

	return domain.Decision{
		Allowed:   true,
		Limit:     rule.MaxAttempts,
		Remaining: int(remaining),
		Count:     count,
		ResetAt:   s.now().Add(rule.Window),
	}, nil
}

// Hit registra uma tentativa extra sem decidir nada. O contexto de
// autenticação usa para penalizar credenciais inválidas.
func (s *RateLimiterService) Hit(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if _, err := s.storage.IncrementWithExpiry(ctx, key.String(), rule.Window); err != nil {
		return fmt.Errorf("%w: hit %s: %v", domain.ErrStore, key, err)
	}
	return nil
}

func (s *RateLimiterService) deny(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey, count int64) domain.Decision {
	retryAfter := s.retryAfter(ctx, rule, key)
	return domain.Decision{
		Allowed:    false,
		Limit:      rule.MaxAttempts,
		Remaining:  0,
		Count:      count,
		ResetAt:    s.now().Add(retryAfter),
		RetryAfter: retryAfter,
	}
}

// retryAfter usa o TTL real quando o store sabe informá-lo; caso contrário
// devolve a janela inteira. O valor fica sempre em [0, janela].
func (s *RateLimiterService) retryAfter(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey) time.Duration {
	window := time.Duration(rule.WindowSeconds()) * time.Second

	introspector, ok := s.storage.(ports.TTLIntrospector)
	if !ok {
		return window
	}

	ttl, known := introspector.TTL(ctx, key.String())
	if !known || ttl <= 0 {
		s.logger.Debug("ttl unknown, using full window", zap.String("key", key.String()))
		return window
	}

	rounded := time.Duration(domain.CeilSeconds(ttl)) * time.Second
	if rounded > window {
		return window
	}
	return rounded
}
