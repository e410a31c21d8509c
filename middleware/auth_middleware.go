package middleware

import (
	"context"
	"net/http"
	"strings"

	"notebook_server_go/auth"
	"notebook_server_go/httputil"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"
)

type contextKey string

// ClaimsKey holds the validated owner claims in the request context.
const ClaimsKey contextKey = "claims"

// JWTMiddleware requires a valid owner bearer token on every request except
// those whose path is listed in public.
func JWTMiddleware(tokens *auth.TokenService, public ...string) mux.MiddlewareFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httputil.RespondError(w, http.StatusUnauthorized, "expected Authorization: Bearer <token>")
				return
			}

			claims, err := tokens.ValidateToken(parts[1])
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("rejected owner token")
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token: "+err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
