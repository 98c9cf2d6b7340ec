package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/twostep"
	"github.com/MrEthical07/twostep/store"
)

// DeviceHeader carries the client's device identifier. Sessions are bound
// to the device they were issued to.
const DeviceHeader = "X-Device-ID"

// Guard resolves the bearer session token of every request and attaches
// the resulting [twostep.Principal], client IP and device to the request
// context. cols narrows the account snapshot loaded with the principal.
func Guard(engine *twostep.Engine, cols ...store.Column) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ip, device := requestIdentity(r)
			p, err := engine.Authenticate(r.Context(), token, ip, device, cols...)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := twostep.WithClientIP(r.Context(), ip)
			ctx = twostep.WithDevice(ctx, device)
			ctx = twostep.WithPrincipal(ctx, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError hides whether the session was missing or the token was
// malformed.
func writeAuthError(w http.ResponseWriter, err error) {
	switch twostep.KindOf(err) {
	case twostep.KindTooManyRequests:
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	case twostep.KindInternal:
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}

func requestIdentity(r *http.Request) (ip, device string) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host, strings.TrimSpace(r.Header.Get(DeviceHeader))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
