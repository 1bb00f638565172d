package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AdityaUmale/note-taking/internal/logutil"
	"github.com/AdityaUmale/note-taking/internal/obs"
)

type ownerContextKey struct{}

// Middleware returns HTTP middleware that extracts the bearer credential,
// verifies it, and stores the resulting owner id in the request context.
// Every failure mode (missing, malformed, expired, bad signature) yields
// the same generic 401; nothing about the token is echoed back.
func Middleware(verifier *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extractBearerToken(r)
			if err != nil {
				writeUnauthenticated(w)
				return
			}

			ownerID, err := verifier.Verify(r.Context(), token)
			if err != nil {
				obs.From(r.Context()).Debug("bearer token rejected", "error", logutil.TruncateForLog(err.Error(), 200))
				writeUnauthenticated(w)
				return
			}

			ctx := context.WithValue(r.Context(), ownerContextKey{}, ownerID)
			ctx = obs.WithOwnerID(ctx, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext retrieves the verified owner id stored by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerContextKey{}).(string)
	return ownerID, ok && ownerID != ""
}

// extractBearerToken extracts the Bearer token from the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoToken
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrMalformedToken
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrNoToken
	}

	return token, nil
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
}
