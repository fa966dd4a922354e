// Package middleware implementa os rate limiters HTTP por contexto: api, chat, auth e path.
package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/ports"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"

	errorCodeRateLimited = "RATE_LIMITED"
)

// IdentityFunc devolve o id do usuário autenticado, se houver.
type IdentityFunc func(r *http.Request) (userID string, ok bool)

// Recorder recebe as decisões para métricas.
type Recorder interface {
	ObserveDecision(limiter, operation string, allowed bool)
	ObserveStoreError(limiter, operation string)
}

// Options é compartilhado pelos quatro contextos de rate limiting.
type Options struct {
	Limiter           ports.RateLimiter
	Logger            *zap.Logger
	Recorder          Recorder
	Identity          IdentityFunc
	TrustProxyHeaders bool
	// FailOpen deixa a requisição passar, sem headers, quando o store falha.
	FailOpen bool
}

type nopRecorder struct{}

func (nopRecorder) ObserveDecision(string, string, bool) {}
func (nopRecorder) ObserveStoreError(string, string)     {}

func guestIdentity(*http.Request) (string, bool) { return "", false }

type enforcer struct {
	name       string
	limiter    ports.RateLimiter
	logger     *zap.Logger
	recorder   Recorder
	identity   IdentityFunc
	trustProxy bool
	failOpen   bool
}

func newEnforcer(name string, opts Options) enforcer {
	e := enforcer{
		name:       name,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
		identity:   opts.Identity,
		trustProxy: opts.TrustProxyHeaders,
		failOpen:   opts.FailOpen,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("ratelimit").With(zap.String("limiter", name))
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.identity == nil {
		e.identity = guestIdentity
	}
	return e
}

type attempt struct {
	operation string
	rule      domain.RateLimitRule
	key       domain.CounterKey
	ip        string
	userID    string
	message   func(domain.Decision) string
}

// admit decide a requisição. Em caso de negação a resposta 429 já foi escrita
// e o chamador não deve seguir para o próximo handler.
func (e enforcer) admit(w http.ResponseWriter, r *http.Request, a attempt) bool {
	decision, err := e.limiter.Decide(r.Context(), a.rule, a.key)
	if err != nil {
		storeFailure := domain.IsStoreError(err)
		if storeFailure {
			e.recorder.ObserveStoreError(e.name, a.operation)
		}
		e.logger.Error("rate limiter failed",
			zap.String("operation", a.operation),
			zap.String("key", a.key.String()),
			zap.Bool("fail_open", e.failOpen && storeFailure),
			zap.Error(err),
		)
		// regra inválida é erro de configuração e nunca libera a requisição
		if e.failOpen && storeFailure {
			return true
		}
		writeJSON(w, http.StatusInternalServerError, statusBody{Status: "error", Message: http.StatusText(http.StatusInternalServerError)})
		return false
	}

	e.recorder.ObserveDecision(e.name, a.operation, decision.Allowed)

	if !decision.Allowed {
		e.logger.Warn("rate limit exceeded",
			zap.String("operation", a.operation),
			zap.String("ip", a.ip),
			zap.String("user_id", a.userID),
			zap.String("url", r.URL.String()),
			zap.Int64("retry_after", decision.RetryAfterSeconds()),
			zap.Int("max_attempts", a.rule.MaxAttempts),
		)
		message := a.rule.Message
		if a.message != nil {
			message = a.message(decision)
		}
		writeTooManyRequests(w, message, decision)
		return false
	}

	setRateLimitHeaders(w, decision)
	return true
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type rateLimitBody struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

type tooManyRequestsBody struct {
	Status     string        `json:"status"`
	Message    string        `json:"message"`
	ErrorCode  string        `json:"error_code"`
	RetryAfter int64         `json:"retry_after"`
	RateLimit  rateLimitBody `json:"rate_limit"`
}

// Os headers precisam estar no ResponseWriter antes do próximo handler
// escrever o status.
func setRateLimitHeaders(w http.ResponseWriter, d domain.Decision) {
	h := w.Header()
	h.Set(headerLimit, strconv.Itoa(d.Limit))
	h.Set(headerRemaining, strconv.Itoa(d.Remaining))
	h.Set(headerReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func writeTooManyRequests(w http.ResponseWriter, message string, d domain.Decision) {
	retryAfter := d.RetryAfterSeconds()
	w.Header().Set(headerRetryAfter, strconv.FormatInt(retryAfter, 10))
	writeJSON(w, http.StatusTooManyRequests, tooManyRequestsBody{
		Status:     "error",
		Message:    message,
		ErrorCode:  errorCodeRateLimited,
		RetryAfter: retryAfter,
		RateLimit: rateLimitBody{
			Limit:     d.Limit,
			Remaining: 0,
			Reset:     d.ResetAt.Unix(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func passThrough(next http.Handler) http.Handler {
	return next
}
