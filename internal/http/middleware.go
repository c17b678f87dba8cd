package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wisefido-casebook/internal/auth"
	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/policy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger 访问日志：method/path/status/耗时/request id
func RequestLogger(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID)))

		logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
	})
}

// IdentityHandler 已认证的 handler
type IdentityHandler func(w http.ResponseWriter, r *http.Request, id domain.Identity)

// Authenticator resolves the credential cookie into an Identity.
// No cookie is 401; a cookie that fails verification or was revoked is 403.
type Authenticator struct {
	sessions   *auth.Sessions
	cookieName string
	logger     *zap.Logger
}

func NewAuthenticator(sessions *auth.Sessions, cookieName string, logger *zap.Logger) *Authenticator {
	return &Authenticator{sessions: sessions, cookieName: cookieName, logger: logger}
}

// Require 包装需要登录的 handler
func (a *Authenticator) Require(next IdentityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(a.cookieName)
		if err != nil || c.Value == "" {
			writeError(w, r, a.logger, domain.ErrUnauthenticated)
			return
		}
		sess, err := a.sessions.Resolve(r.Context(), c.Value)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredential) {
				a.logger.Warn("Rejected credential",
					zap.String("path", r.URL.Path),
					zap.String("ip_address", clientIP(r)),
				)
				writeError(w, r, a.logger, domain.ErrForbidden)
				return
			}
			writeError(w, r, a.logger, err)
			return
		}
		ctx := auth.WithIdentity(r.Context(), sess.Identity)
		next(w, r.WithContext(ctx), sess.Identity)
	}
}

// RequireRole 角色不符直接 403
func RequireRole(logger *zap.Logger, next IdentityHandler, allowed ...domain.Role) IdentityHandler {
	return func(w http.ResponseWriter, r *http.Request, id domain.Identity) {
		if err := policy.RequireRole(&id, allowed...); err != nil {
			writeError(w, r, logger, err)
			return
		}
		next(w, r, id)
	}
}
