package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/namnamchicken/shop-backend/pkg/logger"
)

const sessionIDHeader = "X-Session-Id"

type sessionCtxKey struct{}

// Session resolves the caller's cart session. Requests without a session
// header get a fresh one; the active ID is always echoed back so clients can
// persist it.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(sessionIDHeader)
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}

			w.Header().Set(sessionIDHeader, sessionID)

			ctx := context.WithValue(r.Context(), sessionCtxKey{}, sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the session resolved for the request, if any.
func SessionID(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionCtxKey{}).(string)
	return sessionID, ok && sessionID != ""
}
