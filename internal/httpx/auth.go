package httpx

import (
	"context"
	"go.uber.org/zap"
	"net/http"
	"strings"
)

// HeaderUserID carries the caller identity set by the gateway in front of us.
const HeaderUserID = "X-User-Id"

type ctxKey struct{}

type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type Auth struct {
	Admins AdminChecker
}

func userID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorResp{Error: "missing " + HeaderUserID, Code: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// RequireAdmin must run after Authenticate.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := a.isAdmin(r.Context(), userID(r.Context()))
		if err != nil {
			zap.L().Error("admin lookup", zap.String("user_id", userID(r.Context())), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error", Code: "internal"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusForbidden, errorResp{Error: "admin only", Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) isAdmin(ctx context.Context, id string) (bool, error) {
	if id == "" || a.Admins == nil {
		return false, nil
	}
	return a.Admins.IsAdmin(ctx, id)
}
