package middleware

import (
	"net/http"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

// ChatRateLimit exige usuário autenticado; sem identidade responde 401.
func ChatRateLimit(opts Options, registry domain.Registry) func(operation string) func(http.Handler) http.Handler {
	e := newEnforcer(registry.Name(), opts)
	keys := domain.NewKeyBuilder(domain.ScopeChat)

	return func(operation string) func(http.Handler) http.Handler {
		if operation == "" {
			operation = domain.DefaultOperation
		}
		if e.limiter == nil {
			return passThrough
		}

		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				userID, ok := e.identity(r)
				if !ok {
					writeJSON(w, http.StatusUnauthorized, statusBody{Status: "error", Message: "Unauthenticated"})
					return
				}

				rule := registry.Lookup(operation)
				a := attempt{
					operation: operation,
					rule:      rule,
					key:       keys.Build(userID, operation, rule.Isolation, newRequestContext(r)),
					ip:        extractIP(r, e.trustProxy),
					userID:    userID,
				}

				if !e.admit(w, r, a) {
					return
				}
				next.ServeHTTP(w, r)
			})
		}
	}
}
