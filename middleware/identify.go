package middleware

import (
	"net/http"

	"github.com/MrEthical07/twostep"
)

// Identify attaches the client IP and the [DeviceHeader] value to the
// request context without requiring a session. Handlers for the first
// steps of create, login and password reset sit behind it.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, device := requestIdentity(r)
		ctx := twostep.WithClientIP(r.Context(), ip)
		if device != "" {
			ctx = twostep.WithDevice(ctx, device)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
