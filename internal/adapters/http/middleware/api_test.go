package middleware

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

func TestAPIRateLimit_PanicActivation(t *testing.T) {
	h := newHarness(t)
	limit := APIRateLimit(h.opts, domain.APIRegistry())
	handler := limit("panic_activation")(http.HandlerFunc(okHandler))

	first := serve(handler, request(http.MethodPost, "/api/v1/emergency/panic", "42", ""))
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get(headerLimit))
	assert.Equal(t, "1", first.Header().Get(headerRemaining))
	assert.NotEmpty(t, first.Header().Get(headerReset))

	second := serve(handler, request(http.MethodPost, "/api/v1/emergency/panic", "42", ""))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get(headerRemaining))

	third := serve(handler, request(http.MethodPost, "/api/v1/emergency/panic", "42", ""))
	require.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "application/json", third.Header().Get("Content-Type"))
	assert.Empty(t, third.Header().Get(headerRemaining))

	body := decodeDenial(t, third)
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, errorCodeRateLimited, body.ErrorCode)
	assert.Equal(t, "Too many panic activations. Please wait before activating again.", body.Message)
	assert.Greater(t, body.RetryAfter, int64(0))
	assert.LessOrEqual(t, body.RetryAfter, int64(60))
	assert.Equal(t, 2, body.RateLimit.Limit)
	assert.Equal(t, 0, body.RateLimit.Remaining)
	assert.Equal(t, strconv.FormatInt(body.RetryAfter, 10), third.Header().Get(headerRetryAfter))

	entries := h.logs.FilterMessage("rate limit exceeded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "42", fields["user_id"])
	assert.Equal(t, "panic_activation", fields["operation"])
	assert.Equal(t, int64(2), fields["max_attempts"])
}

func TestAPIRateLimit_UsersAndOperationsAreIndependent(t *testing.T) {
	h := newHarness(t)
	limit := APIRateLimit(h.opts, domain.APIRegistry())
	panicAction := limit("panic_activation")(http.HandlerFunc(okHandler))
	report := limit("report_action")(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		serve(panicAction, request(http.MethodPost, "/", "42", ""))
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(panicAction, request(http.MethodPost, "/", "42", "")).Code)
	assert.Equal(t, http.StatusOK, serve(panicAction, request(http.MethodPost, "/", "43", "")).Code)
	assert.Equal(t, http.StatusOK, serve(report, request(http.MethodPost, "/", "42", "")).Code)
}

func TestAPIRateLimit_UnknownOperationUsesDefaultRule(t *testing.T) {
	h := newHarness(t)
	handler := APIRateLimit(h.opts, domain.APIRegistry())("does_not_exist")(http.HandlerFunc(okHandler))

	w := serve(handler, request(http.MethodGet, "/", "42", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "200", w.Header().Get(headerLimit))
}

func TestAPIRateLimit_UnauthenticatedUsesStrictRuleByIP(t *testing.T) {
	h := newHarness(t)
	handler := APIRateLimit(h.opts, domain.APIRegistry())("location_update")(http.HandlerFunc(okHandler))

	for i := 0; i < domain.UnauthenticatedMaxAttempts; i++ {
		w := serve(handler, request(http.MethodGet, "/", "", ""))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get(headerLimit))
	}

	w := serve(handler, request(http.MethodGet, "/", "", ""))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeDenial(t, w)
	assert.LessOrEqual(t, body.RetryAfter, int64(300))

	// o usuário autenticado no mesmo IP não é afetado
	assert.Equal(t, http.StatusOK, serve(handler, request(http.MethodGet, "/", "42", "")).Code)
}

func TestAPIRateLimit_LikeIsolatedPerTarget(t *testing.T) {
	h := newHarness(t)
	r := newRouter()
	r.With(APIRateLimit(h.opts, domain.APIRegistry())("like_action")).Post("/likes/{userId}", okHandler)

	serve(r, request(http.MethodPost, "/likes/7", "1", ""))
	serve(r, request(http.MethodPost, "/likes/8", "1", ""))

	got, err := h.store.Get(context.Background(), "api_rate_limit:1:like_action:target:7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = h.store.Get(context.Background(), "api_rate_limit:1:like_action:target:8")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestAPIRateLimit_StoreFailure(t *testing.T) {
	t.Run("fail open", func(t *testing.T) {
		rec := &countingRecorder{}
		handler := APIRateLimit(Options{Limiter: brokenLimiter{}, Identity: headerIdentity, FailOpen: true, Recorder: rec},
			domain.APIRegistry())("photo_upload")(http.HandlerFunc(okHandler))

		w := serve(handler, request(http.MethodPost, "/", "42", ""))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get(headerLimit))
		assert.Equal(t, 1, rec.storeErrors)
	})

	t.Run("fail closed", func(t *testing.T) {
		handler := APIRateLimit(Options{Limiter: brokenLimiter{}, Identity: headerIdentity},
			domain.APIRegistry())("photo_upload")(http.HandlerFunc(okHandler))

		w := serve(handler, request(http.MethodPost, "/", "42", ""))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAPIRateLimit_NilLimiterPassesThrough(t *testing.T) {
	handler := APIRateLimit(Options{}, domain.APIRegistry())("photo_upload")(http.HandlerFunc(okHandler))
	w := serve(handler, request(http.MethodPost, "/", "42", ""))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRateLimit_RecordsDecisions(t *testing.T) {
	h := newHarness(t)
	rec := &countingRecorder{}
	h.opts.Recorder = rec
	handler := APIRateLimit(h.opts, domain.APIRegistry())("account_deletion")(http.HandlerFunc(okHandler))

	serve(handler, request(http.MethodDelete, "/", "42", ""))
	serve(handler, request(http.MethodDelete, "/", "42", ""))

	assert.Equal(t, 1, rec.allowed)
	assert.Equal(t, 1, rec.denied)
}

type misconfiguredLimiter struct{ brokenLimiter }

func (misconfiguredLimiter) Decide(context.Context, domain.RateLimitRule, domain.CounterKey) (domain.Decision, error) {
	return domain.Decision{}, domain.ErrInvalidRule
}

func TestAPIRateLimit_InvalidRuleNeverFailsOpen(t *testing.T) {
	rec := &countingRecorder{}
	handler := APIRateLimit(Options{Limiter: misconfiguredLimiter{}, Identity: headerIdentity, FailOpen: true, Recorder: rec},
		domain.APIRegistry())("photo_upload")(http.HandlerFunc(okHandler))

	w := serve(handler, request(http.MethodPost, "/", "42", ""))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, rec.storeErrors)
}
