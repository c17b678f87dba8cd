package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux；每个 handler 自己按 method/path 分发
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

// ServeHTTP 所有请求经过访问日志
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	RequestLogger(r.mux, r.logger).ServeHTTP(w, req)
}

func (r *Router) RegisterAuthRoutes(h *AuthHandler) {
	r.HandleHandler("/auth/signup", h)
	r.HandleHandler("/auth/login", h)
	r.HandleHandler("/auth/logout", h)
	r.HandleHandler("/auth/me", h)
}

func (r *Router) RegisterCaseHistoryRoutes(h *CaseHistoryHandler) {
	r.HandleHandler(caseHistoriesPath, h)
	r.HandleHandler(caseHistoriesPath+"/", h)
}

func (r *Router) RegisterSessionLogRoutes(h *SessionLogHandler) {
	r.HandleHandler("/session-logs", h)
}

// RegisterHealthRoutes 探活，不需要登录
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
