// Package identity carries the authenticated caller id that the gateway
// attaches to every request in the X-User-Id header.
package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/viralforge/socmed/platform/httpx"
)

const Header = "X-User-Id"

type callerKey struct{}

func WithCaller(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, callerKey{}, callerID)
}

func CallerFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callerKey{}).(string)
	return v, ok && v != ""
}

// Optional stores the caller id when present and never rejects.
func Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
			r = r.WithContext(WithCaller(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Required rejects requests without a caller id with 401.
func Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(Header))
		if id == "" {
			httpx.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+Header+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), id)))
	})
}
