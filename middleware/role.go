package middleware

import (
	"net/http"

	"github.com/MrEthical07/twostep"
	"github.com/MrEthical07/twostep/store"
)

// RequireRole is [Guard] plus a minimum role check. Accounts below role get
// 403.
func RequireRole(engine *twostep.Engine, role store.Role) func(http.Handler) http.Handler {
	guard := Guard(engine, store.ColumnRole)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := twostep.PrincipalFromContext(r.Context())
			if !ok || p.Account.Role < role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
