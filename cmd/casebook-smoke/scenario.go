package main

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type scenario struct {
	baseURL string
	timeout time.Duration
	suffix  string
	logger  *zap.Logger
	steps   int
}

func newScenario(baseURL string, timeout time.Duration, suffix string, logger *zap.Logger) *scenario {
	return &scenario{baseURL: baseURL, timeout: timeout, suffix: suffix, logger: logger}
}

type userResult struct {
	User struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

type caseResult struct {
	CaseHistory struct {
		ID         string `json:"id"`
		ProviderID string `json:"providerId"`
	} `json:"caseHistory"`
}

func (s *scenario) step(name string, err error) error {
	if err != nil {
		return fmt.Errorf("step %q: %w", name, err)
	}
	s.steps++
	s.logger.Info("ok", zap.String("step", name))
	return nil
}

func (s *scenario) signup(name, role string) (*apiClient, string, error) {
	c := newAPIClient(name, s.baseURL, s.timeout)
	var res userResult
	_, err := c.call(http.MethodPost, "/auth/signup", map[string]any{
		"email":     fmt.Sprintf("%s-%s@smoke.example.com", name, s.suffix),
		"password":  "smoke-password-1",
		"role":      role,
		"firstName": name,
	}, http.StatusCreated, &res)
	return c, res.User.ID, s.step("signup "+name, err)
}

// Execute 顺序执行；第一处失败即返回
func (s *scenario) Execute() error {
	c1, _, err := s.signup("c1", "CLIENT")
	if err != nil {
		return err
	}
	c2, _, err := s.signup("c2", "CLIENT")
	if err != nil {
		return err
	}
	p1, p1ID, err := s.signup("p1", "PROVIDER")
	if err != nil {
		return err
	}
	p2, p2ID, err := s.signup("p2", "PROVIDER")
	if err != nil {
		return err
	}

	anon := newAPIClient("anon", s.baseURL, s.timeout)
	_, err = anon.call(http.MethodGet, "/case-histories", nil, http.StatusUnauthorized, nil)
	if err := s.step("anonymous list is 401", err); err != nil {
		return err
	}

	_, err = c1.call(http.MethodPost, "/case-histories", map[string]any{"consentAcknowledged": false}, http.StatusBadRequest, nil)
	if err := s.step("intake without consent rejected", err); err != nil {
		return err
	}
	_, err = p1.call(http.MethodPost, "/case-histories", map[string]any{"consentAcknowledged": true}, http.StatusForbidden, nil)
	if err := s.step("provider cannot submit intake", err); err != nil {
		return err
	}

	var created caseResult
	_, err = c1.call(http.MethodPost, "/case-histories", map[string]any{
		"presentingProblem":   "smoke test",
		"consentAcknowledged": true,
	}, http.StatusCreated, &created)
	if err := s.step("client submits intake", err); err != nil {
		return err
	}
	caseID := created.CaseHistory.ID

	// 若库里已有更早注册的 provider，病例会指派给它；此时 p1/p2 都是非指派方
	owner, outsiders := (*apiClient)(nil), []*apiClient{p1, p2}
	switch created.CaseHistory.ProviderID {
	case p1ID:
		owner, outsiders = p1, []*apiClient{p2}
	case p2ID:
		owner, outsiders = p2, []*apiClient{p1}
	default:
		s.logger.Warn("Case assigned to a pre-existing provider; owner steps skipped",
			zap.String("case_history_id", caseID))
	}

	_, err = c2.call(http.MethodGet, "/case-histories/"+caseID, nil, http.StatusForbidden, nil)
	if err := s.step("other client cannot read case", err); err != nil {
		return err
	}
	_, err = c1.call(http.MethodGet, "/case-histories/"+caseID, nil, http.StatusOK, nil)
	if err := s.step("client reads own case", err); err != nil {
		return err
	}
	_, err = c1.call(http.MethodPatch, "/case-histories/"+caseID+"/intake-form", map[string]any{"providerNotes": "x"}, http.StatusForbidden, nil)
	if err := s.step("client cannot write provider notes", err); err != nil {
		return err
	}
	for _, p := range outsiders {
		_, err = p.call(http.MethodPost, "/session-logs", map[string]any{"caseHistoryId": caseID}, http.StatusForbidden, nil)
		if err := s.step(p.name+" cannot log session on unassigned case", err); err != nil {
			return err
		}
	}

	if owner != nil {
		_, err = owner.call(http.MethodPatch, "/case-histories/"+caseID+"/intake-form", map[string]any{"providerNotes": "smoke notes"}, http.StatusOK, nil)
		if err := s.step("assigned provider writes notes", err); err != nil {
			return err
		}
		_, err = owner.call(http.MethodPost, "/session-logs", map[string]any{
			"caseHistoryId": caseID, "presentingTopics": "smoke",
		}, http.StatusCreated, nil)
		if err := s.step("assigned provider logs session", err); err != nil {
			return err
		}
		data, err := owner.raw("/case-histories/"+caseID+"/export", http.StatusOK)
		if err == nil {
			err = checkWorkbook(data)
		}
		if err := s.step("assigned provider exports case", err); err != nil {
			return err
		}
	}

	var logs struct {
		SessionLogs []map[string]any `json:"sessionLogs"`
	}
	_, err = c1.call(http.MethodGet, "/session-logs?caseHistoryId="+caseID, nil, http.StatusOK, &logs)
	if err := s.step("client lists session logs", err); err != nil {
		return err
	}

	_, err = c1.call(http.MethodPost, "/auth/logout", nil, http.StatusOK, nil)
	if err := s.step("logout", err); err != nil {
		return err
	}
	_, err = c1.call(http.MethodGet, "/auth/me", nil, http.StatusUnauthorized, nil)
	return s.step("cookie cleared after logout", err)
}

func checkWorkbook(data []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("export is not a workbook: %w", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("Sessions"); idx < 0 {
		return fmt.Errorf("export has no Sessions sheet")
	}
	return nil
}
