package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hitcklife/yoryor-last-sub008/internal/adapters/storage/memory"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
	"github.com/hitcklife/yoryor-last-sub008/internal/core/services"
)

const userHeader = "X-User-ID"

func headerIdentity(r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	return id, id != ""
}

type harness struct {
	opts  Options
	store *memory.Storage
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.New()
	limiter, err := services.NewRateLimiterService(store, services.Config{})
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	return &harness{
		opts: Options{
			Limiter:  limiter,
			Logger:   zap.New(core),
			Identity: headerIdentity,
			FailOpen: true,
		},
		store: store,
		logs:  logs,
	}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func request(method, target, userID string, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		r.Header.Set(userHeader, userID)
	}
	return r
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeDenial(t *testing.T, w *httptest.ResponseRecorder) tooManyRequestsBody {
	t.Helper()
	var body tooManyRequestsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func newRouter() chi.Router {
	return chi.NewRouter()
}

type brokenLimiter struct{}

var errStoreDown = fmt.Errorf("%w: connection refused", domain.ErrStore)

func (brokenLimiter) Decide(context.Context, domain.RateLimitRule, domain.CounterKey) (domain.Decision, error) {
	return domain.Decision{}, errStoreDown
}

func (brokenLimiter) Hit(context.Context, domain.RateLimitRule, domain.CounterKey) error {
	return errStoreDown
}

type countingRecorder struct {
	allowed     int
	denied      int
	storeErrors int
}

func (c *countingRecorder) ObserveDecision(_, _ string, allowed bool) {
	if allowed {
		c.allowed++
		return
	}
	c.denied++
}

func (c *countingRecorder) ObserveStoreError(_, _ string) {
	c.storeErrors++
}

