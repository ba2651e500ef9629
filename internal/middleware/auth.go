package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/logger"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/internal/service/auth"
	"github.com/SlavkoMuzdeka/podcast-chatbot/backend/pkg/utils"
)

type ctxKey int

const (
	userKey ctxKey = iota
	sessionKey
)

// Authenticator validates bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.User, string, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// user on the request context.
func RequireAuth(log *logger.Logger, authn Authenticator) func(http.Handler) http.Handler {
	mwLog := log.With("middleware", "RequireAuth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				utils.RespondFailure(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}
			user, sessionID, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				mwLog.Debug("token rejected", "path", r.URL.Path, "error", err)
				utils.RespondFailure(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, sessionKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// UserFromContext returns the user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey).(*auth.User)
	return user, ok && user != nil
}
