package httpmw

import (
	"context"
	"net/http"
	"strings"

	"github.com/listen-party/sync-service/internal/domain"
)

type ctxKey string

const ctxKeySession ctxKey = "session"

type SessionGetter interface {
	Get(token string) (domain.Session, error)
}

// AuthMiddleware: Bearer <session-token>, выданный POST /session.
func AuthMiddleware(sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || len(auth) <= 7 {
				http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
				return
			}

			sess, err := sessions.Get(strings.TrimSpace(auth[7:]))
			if err != nil {
				http.Error(w, `{"error":"unknown session"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SessionFromCtx(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(ctxKeySession).(domain.Session)
	return sess, ok
}
