package middleware

import (
	"fmt"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

const (
	AuthLogin = "login"
	AuthOTP   = "otp"
)

// AuthRateLimit protege os fluxos de autenticação. O identificador vem do
// corpo da requisição (email ou telefone) com fallback para o IP. Respostas
// 422 de login e otp contam como tentativa falha adicional.
func AuthRateLimit(opts Options, registry domain.Registry) func(limiterType string) func(http.Handler) http.Handler {
	e := newEnforcer(registry.Name(), opts)

	return func(limiterType string) func(http.Handler) http.Handler {
		if limiterType == "" {
			limiterType = domain.DefaultOperation
		}
		if e.limiter == nil {
			return passThrough
		}

		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ip := extractIP(r, e.trustProxy)
				identifier := authIdentifier(limiterType, newRequestContext(r), ip)
				rule := registry.Lookup(limiterType)
				userID, _ := e.identity(r)

				a := attempt{
					operation: limiterType,
					rule:      rule,
					key:       domain.JoinKey(domain.ScopeAuth, limiterType, identifier),
					ip:        ip,
					userID:    userID,
					message: func(d domain.Decision) string {
						return authDeniedMessage(rule.Message, d.RetryAfterSeconds())
					},
				}

				if !e.admit(w, r, a) {
					return
				}

				ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
				next.ServeHTTP(ww, r)

				if !isFailedAttempt(limiterType, ww.Status()) {
					return
				}
				if err := e.limiter.Hit(r.Context(), rule, a.key); err != nil {
					e.recorder.ObserveStoreError(e.name, limiterType)
					e.logger.Error("failed to record failed attempt",
						zap.String("operation", limiterType),
						zap.String("key", a.key.String()),
						zap.Error(err),
					)
				}
			})
		}
	}
}

func authIdentifier(limiterType string, req domain.RequestContext, ip string) string {
	var fields []string
	switch limiterType {
	case AuthLogin:
		fields = []string{"email", "phone"}
	case AuthOTP:
		fields = []string{"phone"}
	}

	for _, field := range fields {
		if v := strings.TrimSpace(req.BodyField(field)); v != "" {
			return strings.ToLower(v)
		}
	}
	return ip
}

func isFailedAttempt(limiterType string, status int) bool {
	return status == http.StatusUnprocessableEntity && (limiterType == AuthLogin || limiterType == AuthOTP)
}

func authDeniedMessage(base string, retryAfterSeconds int64) string {
	minutes := (retryAfterSeconds + 59) / 60
	if minutes < 1 {
		minutes = 1
	}
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	return fmt.Sprintf("%s Please try again in %d %s.", base, minutes, unit)
}
