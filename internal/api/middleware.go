package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/npezzotti/diayouth/internal/auth"
)

type contextKey string

const (
	userIdKey contextKey = "user-id"
	tokenKey  contextKey = "token"
)

func UserId(ctx context.Context) (string, bool) {
	userId, ok := ctx.Value(userIdKey).(string)
	return userId, ok && userId != ""
}

func WithUserId(ctx context.Context, userId string) context.Context {
	return context.WithValue(ctx, userIdKey, userId)
}

func token(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}

func (s *DiaYouthApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.WithField("path", r.URL.Path).Errorf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (s *DiaYouthApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := auth.TokenFromRequest(r)
		if tokenString == "" {
			s.writeError(w, r, NewUnauthorizedError())
			return
		}

		claims, err := s.verifier.Verify(tokenString)
		if err != nil {
			s.log.WithError(err).Debug("failed to verify token")
			s.writeError(w, r, NewUnauthorizedError())
			return
		}

		ctx := WithUserId(r.Context(), claims.Subject)
		ctx = context.WithValue(ctx, tokenKey, tokenString)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}
