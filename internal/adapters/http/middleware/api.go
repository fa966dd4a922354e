package middleware

import (
	"net/http"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

// APIRateLimit limita as operações gerais da API. Usuários autenticados
// contam por id e operação; visitantes caem na regra fixa de não autenticados
// contada por IP.
func APIRateLimit(opts Options, registry domain.Registry) func(operation string) func(http.Handler) http.Handler {
	e := newEnforcer(registry.Name(), opts)
	keys := domain.NewKeyBuilder(domain.ScopeAPI)
	guestKeys := domain.NewKeyBuilder(domain.ScopeUnauthenticated)

	return func(operation string) func(http.Handler) http.Handler {
		if operation == "" {
			operation = domain.DefaultOperation
		}
		if e.limiter == nil {
			return passThrough
		}

		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ip := extractIP(r, e.trustProxy)
				a := attempt{operation: operation, ip: ip}

				userID, ok := e.identity(r)
				if ok {
					a.userID = userID
					a.rule = registry.Lookup(operation)
					a.key = keys.Build(userID, operation, a.rule.Isolation, newRequestContext(r))
				} else {
					a.rule = domain.UnauthenticatedRule(operation)
					a.key = guestKeys.Build(ip, operation, domain.TargetSpec{}, nil)
				}

				if !e.admit(w, r, a) {
					return
				}
				next.ServeHTTP(w, r)
			})
		}
	}
}
