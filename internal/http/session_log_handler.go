package httpapi

import (
	"net/http"

	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/service"

	"go.uber.org/zap"
)

// SessionLogHandler /session-logs
type SessionLogHandler struct {
	logs   service.SessionLogService
	authn  *Authenticator
	logger *zap.Logger
}

func NewSessionLogHandler(logs service.SessionLogService, authn *Authenticator, logger *zap.Logger) *SessionLogHandler {
	return &SessionLogHandler{logs: logs, authn: authn, logger: logger}
}

func (h *SessionLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.authn.Require(h.List)(w, r)
	case http.MethodPost:
		h.authn.Require(RequireRole(h.logger, h.Create, domain.RoleProvider))(w, r)
	default:
		methodNotAllowed(w)
	}
}

// Create 201 + sessionLog
func (h *SessionLogHandler) Create(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	var req service.CreateSessionLogRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, bodyError(err))
		return
	}
	log, err := h.logs.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{"sessionLog": log}))
}

// List ?caseHistoryId=
func (h *SessionLogHandler) List(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	logs, err := h.logs.List(r.Context(), id, r.URL.Query().Get("caseHistoryId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*domain.SessionLog{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"sessionLogs": logs}))
}
