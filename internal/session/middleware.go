package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teemow/calweather/internal/instrumentation"
	"github.com/teemow/calweather/internal/oauth"
)

// Realm is the realm advertised in WWW-Authenticate challenges.
const Realm = "calweather"

type contextKey string

const claimsContextKey contextKey = "session_claims"

// WithClaims returns a copy of ctx carrying the verified claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext returns the claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// BearerToken extracts the credential from an "Authorization: Bearer" header.
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// RequireSession rejects requests without a valid session credential with
// 401 and stores the verified claims in the request context otherwise.
func (m *Manager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			writeUnauthorized(w, "missing_token", "Missing Authorization header")
			return
		}
		credential, ok := BearerToken(r)
		if !ok {
			writeUnauthorized(w, "invalid_token", "Invalid Authorization header format")
			return
		}
		claims, ok := m.VerifySession(r.Context(), credential)
		if !ok {
			m.audit.LogAuthEvent(instrumentation.AuthEvent{
				Event:  instrumentation.AuthEventSessionRejected,
				Reason: "invalid_token",
			})
			writeUnauthorized(w, "invalid_token", "Session is invalid, expired or revoked. Visit /auth/start to sign in again.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func writeUnauthorized(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%q, error=%q`, Realm, code))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(oauth.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
