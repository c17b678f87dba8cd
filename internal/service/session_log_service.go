package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wisefido-casebook/internal/audit"
	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/policy"
	"wisefido-casebook/internal/repository"

	"go.uber.org/zap"
)

// SessionLogService 会谈记录：只追加
type SessionLogService interface {
	Create(ctx context.Context, id domain.Identity, req CreateSessionLogRequest) (*domain.SessionLog, error)
	List(ctx context.Context, id domain.Identity, caseID string) ([]*domain.SessionLog, error)
}

// CreateSessionLogRequest 会谈记录请求
type CreateSessionLogRequest struct {
	CaseHistoryID         string  `json:"caseHistoryId"`
	SessionDate           *string `json:"sessionDate"`
	PresentingTopics      *string `json:"presentingTopics"`
	TherapistObservations *string `json:"therapistObservations"`
	ClientAffect          *string `json:"clientAffect"`
	InterventionsUsed     *string `json:"interventionsUsed"`
	ProgressNotes         *string `json:"progressNotes"`
}

type sessionLogService struct {
	cases  repository.CaseHistoriesRepository
	events audit.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionLogService(cases repository.CaseHistoriesRepository, events audit.Publisher, logger *zap.Logger) SessionLogService {
	return &sessionLogService{
		cases:  cases,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Create 仅病例指派的 provider 可写；sessionDate 缺省为当前时间
func (s *sessionLogService) Create(ctx context.Context, id domain.Identity, req CreateSessionLogRequest) (*domain.SessionLog, error) {
	if err := policy.RequireRole(&id, domain.RoleProvider); err != nil {
		return nil, err
	}

	v := &domain.ValidationError{}
	caseID := strings.TrimSpace(req.CaseHistoryID)
	if caseID == "" {
		v.Add("caseHistoryId", "case history ID is required")
	}
	notes := domain.SessionNotes{
		PresentingTopics:      textField(v, "presentingTopics", req.PresentingTopics, maxLongText),
		TherapistObservations: textField(v, "therapistObservations", req.TherapistObservations, maxNotesText),
		ClientAffect:          textField(v, "clientAffect", req.ClientAffect, maxShortText),
		InterventionsUsed:     textField(v, "interventionsUsed", req.InterventionsUsed, maxLongText),
		ProgressNotes:         textField(v, "progressNotes", req.ProgressNotes, maxNotesText),
	}
	if req.SessionDate != nil && strings.TrimSpace(*req.SessionDate) != "" {
		d, err := parseSessionDate(*req.SessionDate)
		if err != nil {
			v.Add("sessionDate", "session date must be a valid date")
		} else {
			notes.SessionDate = &d
		}
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}
	if notes.SessionDate == nil {
		d := s.now().UTC()
		notes.SessionDate = &d
	}

	c, err := s.cases.GetCaseHistoryDetail(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeProviderWrite(id, c); err != nil {
		s.logger.Warn("Session log denied: case not assigned to provider",
			zap.String("user_id", id.UserID),
			zap.String("case_history_id", caseID),
		)
		return nil, err
	}
	if _, err := domain.LifecycleOf(c).Apply(domain.EventSessionLogged); err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, err)
	}

	log, err := s.cases.CreateSessionLog(ctx, c, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create session log: %w", err)
	}
	c.SessionLogs = append(c.SessionLogs, log)

	s.logger.Info("Session log created",
		zap.String("session_log_id", log.ID),
		zap.String("case_history_id", caseID),
		zap.String("provider_id", id.UserID),
	)
	publishEvent(ctx, s.events, s.logger, s.now, domain.EventSessionLogged, c, id)
	return log, nil
}

// List 病例参与者可读，session_date 倒序
func (s *sessionLogService) List(ctx context.Context, id domain.Identity, caseID string) ([]*domain.SessionLog, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, domain.NewValidationError("caseHistoryId", "caseHistoryId query parameter is required")
	}
	c, err := s.cases.GetCaseHistory(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeCaseRead(id, c); err != nil {
		return nil, err
	}
	return s.cases.ListSessionLogs(ctx, caseID)
}
