// Package domain concentra entidades e estruturas centrais do rate limiter.
package domain

import (
	"math"
	"time"
)

// RateLimitRule descreve o limite de uma operação dentro de um contexto.
type RateLimitRule struct {
	Operation   string
	MaxAttempts int
	Window      time.Duration
	Message     string
	Isolation   TargetSpec
}

// Validate garante que a regra pode ser usada pelo motor de decisão.
func (r RateLimitRule) Validate() error {
	if r.MaxAttempts <= 0 {
		return invalidRule(r.Operation, "max attempts must be positive")
	}
	if r.Window < time.Second || r.Window%time.Second != 0 {
		return invalidRule(r.Operation, "window must be a positive whole number of seconds")
	}
	return nil
}

// WindowSeconds devolve a janela arredondada para cima em segundos.
func (r RateLimitRule) WindowSeconds() int64 {
	return CeilSeconds(r.Window)
}

// TargetSpec indica de onde vem o identificador do alvo quando a operação
// precisa de contadores isolados por alvo (usuário curtido, chat, mensagem).
type TargetSpec struct {
	Label       string
	RouteParams []string
	BodyFields  []string
}

// Enabled informa se a regra isola contadores por alvo.
func (t TargetSpec) Enabled() bool {
	return t.Label != "" && (len(t.RouteParams) > 0 || len(t.BodyFields) > 0)
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Count      int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds só faz sentido quando a decisão negou a requisição.
func (d Decision) RetryAfterSeconds() int64 {
	return CeilSeconds(d.RetryAfter)
}

// CeilSeconds arredonda a duração para cima em segundos inteiros.
func CeilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
