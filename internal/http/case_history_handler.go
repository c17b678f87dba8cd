package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/service"

	"go.uber.org/zap"
)

const caseHistoriesPath = "/case-histories"

// CaseHistoryHandler 病例相关路由
//
//	GET   /case-histories
//	POST  /case-histories                      (CLIENT)
//	GET   /case-histories/{id}
//	PATCH /case-histories/{id}/intake-form     (PROVIDER)
//	GET   /case-histories/{id}/export
type CaseHistoryHandler struct {
	cases  service.CaseHistoryService
	authn  *Authenticator
	logger *zap.Logger
}

func NewCaseHistoryHandler(cases service.CaseHistoryService, authn *Authenticator, logger *zap.Logger) *CaseHistoryHandler {
	return &CaseHistoryHandler{cases: cases, authn: authn, logger: logger}
}

func (h *CaseHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, caseHistoriesPath), "/")
	if rest == "" {
		switch r.Method {
		case http.MethodGet:
			h.authn.Require(h.List)(w, r)
		case http.MethodPost:
			h.authn.Require(RequireRole(h.logger, h.Create, domain.RoleClient))(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.authn.Require(func(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
			h.Get(w, r, ident, id)
		})(w, r)
	case len(parts) == 2 && parts[1] == "intake-form":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		h.authn.Require(RequireRole(h.logger, func(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
			h.UpdateProviderNotes(w, r, ident, id)
		}, domain.RoleProvider))(w, r)
	case len(parts) == 2 && parts[1] == "export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.authn.Require(func(w http.ResponseWriter, r *http.Request, ident domain.Identity) {
			h.Export(w, r, ident, id)
		})(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *CaseHistoryHandler) List(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	cases, err := h.cases.List(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if cases == nil {
		cases = []*domain.CaseHistory{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"caseHistories": cases}))
}

func (h *CaseHistoryHandler) Get(w http.ResponseWriter, r *http.Request, id domain.Identity, caseID string) {
	c, err := h.cases.Get(r.Context(), id, caseID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"caseHistory": c}))
}

// Create 提交 intake，201
func (h *CaseHistoryHandler) Create(w http.ResponseWriter, r *http.Request, id domain.Identity) {
	var req service.CreateCaseRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, bodyError(err))
		return
	}
	c, err := h.cases.Create(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, Ok(map[string]any{"caseHistory": c}))
}

func (h *CaseHistoryHandler) UpdateProviderNotes(w http.ResponseWriter, r *http.Request, id domain.Identity, caseID string) {
	var req service.UpdateProviderNotesRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, r, h.logger, bodyError(err))
		return
	}
	form, err := h.cases.UpdateProviderNotes(r.Context(), id, caseID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"intakeForm": form}))
}

// Export 下载 xlsx
func (h *CaseHistoryHandler) Export(w http.ResponseWriter, r *http.Request, id domain.Identity, caseID string) {
	file, err := h.cases.Export(r.Context(), id, caseID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", file.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
