// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

type RateLimiter interface {
	Decide(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey) (domain.Decision, error)
	Hit(ctx context.Context, rule domain.RateLimitRule, key domain.CounterKey) error
}
