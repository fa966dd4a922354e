package middleware

import (
	"net/http"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

// PathRateLimit escolhe a regra pelo caminho da requisição. A chave combina a
// operação, o usuário (vazio para visitantes) e o IP.
func PathRateLimit(opts Options, registry domain.Registry, routes []domain.PathRoute) func(http.Handler) http.Handler {
	e := newEnforcer(registry.Name(), opts)
	if e.limiter == nil {
		return passThrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule := registry.Lookup(domain.MatchPath(routes, r.URL.Path))
			ip := extractIP(r, e.trustProxy)
			userID, _ := e.identity(r)

			a := attempt{
				operation: rule.Operation,
				rule:      rule,
				key:       domain.JoinKey(rule.Operation, userID, ip),
				ip:        ip,
				userID:    userID,
			}

			if !e.admit(w, r, a) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
