package httpapi

import (
	"net/http"

	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/service"

	"go.uber.org/zap"
)

// AuthHandler 注册/登录/登出/当前用户
type AuthHandler struct {
	authService service.AuthService
	authn       *Authenticator
	cookie      CookieConfig
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, authn *Authenticator, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		authn:       authn,
		cookie:      cookie,
		logger:      logger,
	}
}

// userSummary signup/login 只回 id/email/role
type userSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/signup":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Signup(w, r)
	case "/auth/login":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Login(w, r)
	case "/auth/logout":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.Logout(w, r)
	case "/auth/me":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.authn.Require(h.Me)(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Signup 注册成功 201 并下发 cookie
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, bodyError(err))
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cookie.set(w, res.Credential)
	writeJSON(w, http.StatusCreated, Ok(map[string]any{
		"user": userSummary{ID: res.User.ID, Email: res.User.Email, Role: res.User.Role},
	}))
}

// Login 用户登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, bodyError(err))
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	res, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cookie.set(w, res.Credential)
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"user": userSummary{ID: res.User.ID, Email: res.User.Email, Role: res.User.Role},
	}))
}

// Logout 不要求已登录；总是清 cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		h.authService.Logout(r.Context(), c.Value)
	}
	h.cookie.clear(w)
	writeJSON(w, http.StatusOK, Ok(map[string]any{"message": "logged out"}))
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	user, err := h.authService.Me(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"user": user}))
}
