// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"
)

// CounterStore guarda contadores de janela fixa compartilhados entre workers.
type CounterStore interface {
	// Get devolve 0 quando a chave não existe ou expirou.
	Get(ctx context.Context, key string) (int64, error)
	// IncrementWithExpiry cria ou incrementa o contador de forma atômica.
	// A expiração é definida apenas quando a chave ainda não tem TTL, de modo
	// que a janela fica fixa a partir do primeiro hit.
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
}

// TTLIntrospector é uma capacidade opcional do CounterStore. ok=false
// significa TTL desconhecido (sem suporte, chave ausente ou falha do store).
type TTLIntrospector interface {
	TTL(ctx context.Context, key string) (remaining time.Duration, ok bool)
}
