package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/google/uuid"
)

// MemoryStore backs both repositories when DB is disabled (dev / tests).
// One mutex guards everything, so multi-row writes are atomic and email uniqueness
// holds under concurrent signup.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[string]*domain.User // userID -> User
	emailIndex  map[string]string       // email -> userID
	userOrder   []string                // insertion order (created_at, id)
	cases       map[string]*domain.CaseHistory
	sessionLogs map[string][]*domain.SessionLog // caseID -> logs

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       map[string]*domain.User{},
		emailIndex:  map[string]string{},
		cases:       map[string]*domain.CaseHistory{},
		sessionLogs: map[string][]*domain.SessionLog{},
		now:         utcNow,
	}
}

var (
	_ UsersRepository         = (*MemoryStore)(nil)
	_ CaseHistoriesRepository = (*MemoryStore)(nil)
)

// ---- users ----

func (s *MemoryStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.emailIndex[email]
	return ok, nil
}

func (s *MemoryStore) CreateUserWithProfile(_ context.Context, in domain.NewUser) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emailIndex[in.Email]; ok {
		return nil, domain.ErrDuplicateEmail
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    s.now(),
	}
	_, err := domain.MatchRole(in.Role, domain.RoleCases[bool]{
		Client: func() bool {
			u.ClientProfile = &domain.ClientProfile{
				ID:        uuid.NewString(),
				UserID:    u.ID,
				FirstName: in.Profile.FirstName,
				LastName:  in.Profile.LastName,
			}
			return true
		},
		Provider: func() bool {
			u.ProviderProfile = &domain.ProviderProfile{
				ID:            uuid.NewString(),
				UserID:        u.ID,
				FirstName:     in.Profile.FirstName,
				LastName:      in.Profile.LastName,
				ClinicName:    in.Profile.ClinicName,
				LicenseNumber: in.Profile.LicenseNumber,
			}
			return true
		},
	})
	if err != nil {
		return nil, err
	}

	s.users[u.ID] = u
	s.emailIndex[u.Email] = u.ID
	s.userOrder = append(s.userOrder, u.ID)
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) GetUserWithProfile(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

// ---- case histories ----

func (s *MemoryStore) CreateCaseWithIntake(_ context.Context, clientID string, in domain.IntakeSubmission) (*domain.CaseHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	providerID := ""
	for _, id := range s.userOrder {
		if s.users[id].Role == domain.RoleProvider {
			providerID = id
			break
		}
	}
	if providerID == "" {
		return nil, domain.ErrNoProviderAvailable
	}

	now := s.now()
	c := &domain.CaseHistory{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: providerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.IntakeForm = &domain.IntakeForm{
		ID:                  uuid.NewString(),
		CaseHistoryID:       c.ID,
		PresentingProblem:   in.PresentingProblem,
		MedicalHistory:      in.MedicalHistory,
		MentalHealthHistory: in.MentalHealthHistory,
		Medications:         in.Medications,
		ConsentAcknowledged: in.ConsentAcknowledged,
		FreeTextNotes:       in.FreeTextNotes,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}
	s.cases[c.ID] = c
	return cloneCase(c), nil
}

func (s *MemoryStore) GetCaseHistory(_ context.Context, caseID string) (*domain.CaseHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneCase(c), nil
}

func (s *MemoryStore) GetCaseHistoryDetail(_ context.Context, caseID string) (*domain.CaseHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.detailLocked(c), nil
}

func (s *MemoryStore) ListCaseHistories(_ context.Context, filter domain.OwnerFilter) ([]*domain.CaseHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.CaseHistory{}
	for _, c := range s.cases {
		switch {
		case filter.ClientID != "" && c.ClientID == filter.ClientID:
		case filter.ProviderID != "" && c.ProviderID == filter.ProviderID:
		default:
			continue
		}
		out = append(out, s.detailLocked(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateProviderNotes(_ context.Context, caseID string, notes *string) (*domain.IntakeForm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.cases[caseID]
	if !ok || c.IntakeForm == nil {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	if notes != nil {
		v := *notes
		c.IntakeForm.ProviderNotes = &v
	}
	c.IntakeForm.UpdatedAt = now
	c.UpdatedAt = now
	f := *c.IntakeForm
	return &f, nil
}

func (s *MemoryStore) CreateSessionLog(_ context.Context, c *domain.CaseHistory, notes domain.SessionNotes) (*domain.SessionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.cases[c.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	now := s.now()
	l := &domain.SessionLog{
		ID:                    uuid.NewString(),
		CaseHistoryID:         stored.ID,
		ProviderID:            stored.ProviderID,
		ClientID:              stored.ClientID,
		SessionDate:           now,
		PresentingTopics:      notes.PresentingTopics,
		TherapistObservations: notes.TherapistObservations,
		ClientAffect:          notes.ClientAffect,
		InterventionsUsed:     notes.InterventionsUsed,
		ProgressNotes:         notes.ProgressNotes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if notes.SessionDate != nil {
		l.SessionDate = notes.SessionDate.UTC()
	}
	s.sessionLogs[stored.ID] = append(s.sessionLogs[stored.ID], l)
	stored.UpdatedAt = now

	cp := *l
	return &cp, nil
}

func (s *MemoryStore) ListSessionLogs(_ context.Context, caseID string) ([]*domain.SessionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLogsLocked(caseID), nil
}

func (s *MemoryStore) detailLocked(c *domain.CaseHistory) *domain.CaseHistory {
	out := cloneCase(c)
	out.Client = domain.PartyOf(cloneUser(s.users[c.ClientID]))
	out.Provider = domain.PartyOf(cloneUser(s.users[c.ProviderID]))
	out.SessionLogs = s.sortedLogsLocked(c.ID)
	return out
}

// sortedLogsLocked session_date desc, then created_at desc.
func (s *MemoryStore) sortedLogsLocked(caseID string) []*domain.SessionLog {
	src := s.sessionLogs[caseID]
	out := make([]*domain.SessionLog, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		cp := *src[i]
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SessionDate.After(out[j].SessionDate)
	})
	return out
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.ClientProfile != nil {
		p := *u.ClientProfile
		cp.ClientProfile = &p
	}
	if u.ProviderProfile != nil {
		p := *u.ProviderProfile
		cp.ProviderProfile = &p
	}
	return &cp
}

func cloneCase(c *domain.CaseHistory) *domain.CaseHistory {
	cp := *c
	if c.IntakeForm != nil {
		f := *c.IntakeForm
		cp.IntakeForm = &f
	}
	cp.Client, cp.Provider, cp.SessionLogs, cp.Lifecycle = nil, nil, nil, nil
	return &cp
}
