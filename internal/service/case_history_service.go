package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-casebook/internal/audit"
	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/policy"
	"wisefido-casebook/internal/repository"

	"go.uber.org/zap"
)

// CaseHistoryService 病例：列表、详情、创建（含 intake）、provider notes、导出
type CaseHistoryService interface {
	List(ctx context.Context, id domain.Identity) ([]*domain.CaseHistory, error)
	Get(ctx context.Context, id domain.Identity, caseID string) (*domain.CaseHistory, error)
	Create(ctx context.Context, id domain.Identity, req CreateCaseRequest) (*domain.CaseHistory, error)
	UpdateProviderNotes(ctx context.Context, id domain.Identity, caseID string, req UpdateProviderNotesRequest) (*domain.IntakeForm, error)
	Export(ctx context.Context, id domain.Identity, caseID string) (*ExportFile, error)
}

// CreateCaseRequest intake 表单。ConsentAcknowledged 保留原始 JSON 值以便严格校验
type CreateCaseRequest struct {
	PresentingProblem   *string `json:"presentingProblem"`
	MedicalHistory      *string `json:"medicalHistory"`
	MentalHealthHistory *string `json:"mentalHealthHistory"`
	Medications         *string `json:"medications"`
	ConsentAcknowledged any     `json:"consentAcknowledged"`
	FreeTextNotes       *string `json:"freeTextNotes"`
}

// UpdateProviderNotesRequest 只允许写 providerNotes
type UpdateProviderNotesRequest struct {
	ProviderNotes *string `json:"providerNotes"`
}

type caseHistoryService struct {
	cases  repository.CaseHistoriesRepository
	events audit.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewCaseHistoryService(cases repository.CaseHistoriesRepository, events audit.Publisher, logger *zap.Logger) CaseHistoryService {
	return &caseHistoryService{
		cases:  cases,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// List 按角色只返回自己的病例；对方只给摘要
func (s *caseHistoryService) List(ctx context.Context, id domain.Identity) ([]*domain.CaseHistory, error) {
	filter, err := policy.OwnerFilterFor(id)
	if err != nil {
		return nil, err
	}
	cases, err := s.cases.ListCaseHistories(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list case histories: %w", err)
	}
	for _, c := range cases {
		counterpart := policy.Counterpart(id, c).Summary()
		c.Client, c.Provider = nil, nil
		_, _ = domain.MatchRole(id.Role, domain.RoleCases[bool]{
			Client:   func() bool { c.Provider = counterpart; return true },
			Provider: func() bool { c.Client = counterpart; return true },
		})
		withLifecycle(c)
	}
	return cases, nil
}

// Get 病例详情：未知 ID -> NotFound；他人病例 -> Forbidden
func (s *caseHistoryService) Get(ctx context.Context, id domain.Identity, caseID string) (*domain.CaseHistory, error) {
	c, err := s.cases.GetCaseHistoryDetail(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeCaseRead(id, c); err != nil {
		s.logger.Warn("Case access denied",
			zap.String("user_id", id.UserID),
			zap.String("role", id.Role.String()),
			zap.String("case_history_id", caseID),
		)
		return nil, err
	}
	return withLifecycle(c), nil
}

// Create 客户提交 intake，同时建病例
func (s *caseHistoryService) Create(ctx context.Context, id domain.Identity, req CreateCaseRequest) (*domain.CaseHistory, error) {
	if err := policy.RequireRole(&id, domain.RoleClient); err != nil {
		return nil, err
	}

	v := &domain.ValidationError{}
	if !coerceConsent(req.ConsentAcknowledged) {
		v.Add("consentAcknowledged", "consent must be acknowledged")
	}
	in := domain.IntakeSubmission{
		PresentingProblem:   textField(v, "presentingProblem", req.PresentingProblem, maxLongText),
		MedicalHistory:      textField(v, "medicalHistory", req.MedicalHistory, maxLongText),
		MentalHealthHistory: textField(v, "mentalHealthHistory", req.MentalHealthHistory, maxLongText),
		Medications:         textField(v, "medications", req.Medications, maxShortText),
		FreeTextNotes:       textField(v, "freeTextNotes", req.FreeTextNotes, maxNotesText),
		ConsentAcknowledged: true,
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if _, err := (domain.Lifecycle{}).Apply(domain.EventCaseCreated); err != nil {
		return nil, err
	}
	c, err := s.cases.CreateCaseWithIntake(ctx, id.UserID, in)
	if err != nil {
		if errors.Is(err, domain.ErrNoProviderAvailable) {
			s.logger.Warn("Case creation rejected: no provider available",
				zap.String("user_id", id.UserID),
			)
			return nil, err
		}
		return nil, fmt.Errorf("failed to create case history: %w", err)
	}

	withLifecycle(c)
	s.logger.Info("Case history created",
		zap.String("case_history_id", c.ID),
		zap.String("client_id", c.ClientID),
		zap.String("provider_id", c.ProviderID),
	)
	publishEvent(ctx, s.events, s.logger, s.now, domain.EventCaseCreated, c, id)
	return c, nil
}

// UpdateProviderNotes 仅指派的 provider 可写；客户字段不变
func (s *caseHistoryService) UpdateProviderNotes(ctx context.Context, id domain.Identity, caseID string, req UpdateProviderNotesRequest) (*domain.IntakeForm, error) {
	if err := policy.RequireRole(&id, domain.RoleProvider); err != nil {
		return nil, err
	}
	v := &domain.ValidationError{}
	notes := textField(v, "providerNotes", req.ProviderNotes, maxNotesText)
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	c, err := s.cases.GetCaseHistoryDetail(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := policy.AuthorizeProviderWrite(id, c); err != nil {
		s.logger.Warn("Provider notes update denied",
			zap.String("user_id", id.UserID),
			zap.String("case_history_id", caseID),
		)
		return nil, err
	}
	if _, err := domain.LifecycleOf(c).Apply(domain.EventProviderNotesUpdated); err != nil {
		return nil, fmt.Errorf("case %s: %w", caseID, err)
	}

	form, err := s.cases.UpdateProviderNotes(ctx, caseID, notes)
	if err != nil {
		return nil, err
	}
	c.IntakeForm = form

	s.logger.Info("Provider notes updated",
		zap.String("case_history_id", caseID),
		zap.String("provider_id", id.UserID),
	)
	publishEvent(ctx, s.events, s.logger, s.now, domain.EventProviderNotesUpdated, c, id)
	return form, nil
}

func withLifecycle(c *domain.CaseHistory) *domain.CaseHistory {
	lc := domain.LifecycleOf(c)
	c.Lifecycle = &lc
	return c
}

// publishEvent is best-effort; the write has already committed.
func publishEvent(ctx context.Context, pub audit.Publisher, logger *zap.Logger, now func() time.Time,
	ev domain.LifecycleEvent, c *domain.CaseHistory, actor domain.Identity) {
	event := audit.CaseEvent{
		Type:          ev,
		CaseHistoryID: c.ID,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		Stage:         domain.LifecycleOf(c).Stage(),
		OccurredAt:    now().UTC(),
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish case event",
			zap.String("event_type", string(ev)),
			zap.String("case_history_id", c.ID),
			zap.Error(err),
		)
	}
}
