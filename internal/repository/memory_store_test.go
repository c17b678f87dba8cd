package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestMemoryStore ticks one second per write so ordering is deterministic.
func newTestMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return s
}

func mustCreateUser(t *testing.T, s *MemoryStore, email string, role domain.Role) *domain.User {
	t.Helper()
	u, err := s.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email: email, PasswordHash: "hash", Role: role,
		Profile: domain.ProfileFields{FirstName: strp("First"), LicenseNumber: strp("LIC")},
	})
	require.NoError(t, err)
	return u
}

func TestMemoryStore_UserProfiles(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()

	c := mustCreateUser(t, s, "c@example.com", domain.RoleClient)
	p := mustCreateUser(t, s, "p@example.com", domain.RoleProvider)

	assert.NotNil(t, c.ClientProfile)
	assert.Nil(t, c.ProviderProfile)
	assert.NotNil(t, p.ProviderProfile)
	assert.Nil(t, p.ClientProfile)

	got, err := s.GetUserByEmail(ctx, "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, "LIC", *got.ProviderProfile.LicenseNumber)

	exists, err := s.EmailExists(ctx, "c@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.GetUserWithProfile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStore_DuplicateEmailAcrossRoles(t *testing.T) {
	s := newTestMemoryStore()
	mustCreateUser(t, s, "same@example.com", domain.RoleClient)

	_, err := s.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email: "same@example.com", PasswordHash: "hash", Role: domain.RoleProvider,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestMemoryStore_ConcurrentSignupSameEmail(t *testing.T) {
	s := NewMemoryStore()
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := domain.RoleClient
			if i%2 == 1 {
				role = domain.RoleProvider
			}
			_, errs[i] = s.CreateUserWithProfile(context.Background(), domain.NewUser{
				Email: "race@example.com", PasswordHash: "hash", Role: role,
			})
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	}
	assert.Equal(t, 1, success)
	assert.Len(t, s.users, 1)
}

func TestMemoryStore_CaseRequiresProvider(t *testing.T) {
	s := newTestMemoryStore()
	c := mustCreateUser(t, s, "c@example.com", domain.RoleClient)

	_, err := s.CreateCaseWithIntake(context.Background(), c.ID, domain.IntakeSubmission{ConsentAcknowledged: true})
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
	assert.Empty(t, s.cases)
}

func TestMemoryStore_AssignsFirstProvider(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()
	c := mustCreateUser(t, s, "c@example.com", domain.RoleClient)
	first := mustCreateUser(t, s, "p1@example.com", domain.RoleProvider)
	mustCreateUser(t, s, "p2@example.com", domain.RoleProvider)

	for i := 0; i < 3; i++ {
		ch, err := s.CreateCaseWithIntake(ctx, c.ID, domain.IntakeSubmission{ConsentAcknowledged: true})
		require.NoError(t, err)
		assert.Equal(t, first.ID, ch.ProviderID)
	}
}

func TestMemoryStore_ListScopesAndOrders(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()
	a := mustCreateUser(t, s, "a@example.com", domain.RoleClient)
	b := mustCreateUser(t, s, "b@example.com", domain.RoleClient)
	p := mustCreateUser(t, s, "p@example.com", domain.RoleProvider)

	var aCases []string
	for i := 0; i < 2; i++ {
		ch, err := s.CreateCaseWithIntake(ctx, a.ID, domain.IntakeSubmission{
			PresentingProblem: strp(fmt.Sprintf("problem %d", i)), ConsentAcknowledged: true,
		})
		require.NoError(t, err)
		aCases = append(aCases, ch.ID)
	}
	_, err := s.CreateCaseWithIntake(ctx, b.ID, domain.IntakeSubmission{ConsentAcknowledged: true})
	require.NoError(t, err)

	list, err := s.ListCaseHistories(ctx, domain.OwnerFilter{ClientID: a.ID})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, aCases[1], list[0].ID, "newest first")
	assert.Equal(t, aCases[0], list[1].ID)
	assert.Equal(t, p.ID, list[0].Provider.ID)

	list, err = s.ListCaseHistories(ctx, domain.OwnerFilter{ProviderID: p.ID})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = s.ListCaseHistories(ctx, domain.OwnerFilter{ProviderID: a.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_ProviderNotesAndSessions(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()
	a := mustCreateUser(t, s, "a@example.com", domain.RoleClient)
	mustCreateUser(t, s, "p@example.com", domain.RoleProvider)

	ch, err := s.CreateCaseWithIntake(ctx, a.ID, domain.IntakeSubmission{
		PresentingProblem: strp("chest pain"), ConsentAcknowledged: true,
	})
	require.NoError(t, err)

	// nil leaves notes untouched
	f, err := s.UpdateProviderNotes(ctx, ch.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, f.ProviderNotes)

	_, err = s.UpdateProviderNotes(ctx, ch.ID, strp("first"))
	require.NoError(t, err)
	f, err = s.UpdateProviderNotes(ctx, ch.ID, strp("second"))
	require.NoError(t, err)
	assert.Equal(t, "second", *f.ProviderNotes)
	assert.Equal(t, "chest pain", *f.PresentingProblem)

	_, err = s.UpdateProviderNotes(ctx, "missing", strp("x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err = s.CreateSessionLog(ctx, ch, domain.SessionNotes{SessionDate: &newer})
	require.NoError(t, err)
	_, err = s.CreateSessionLog(ctx, ch, domain.SessionNotes{SessionDate: &older})
	require.NoError(t, err)

	logs, err := s.ListSessionLogs(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, newer, logs[0].SessionDate)
	assert.Equal(t, a.ID, logs[0].ClientID)

	detail, err := s.GetCaseHistoryDetail(ctx, ch.ID)
	require.NoError(t, err)
	assert.Len(t, detail.SessionLogs, 2)
	assert.True(t, detail.UpdatedAt.After(detail.CreatedAt))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := newTestMemoryStore()
	ctx := context.Background()
	a := mustCreateUser(t, s, "a@example.com", domain.RoleClient)
	mustCreateUser(t, s, "p@example.com", domain.RoleProvider)

	ch, err := s.CreateCaseWithIntake(ctx, a.ID, domain.IntakeSubmission{ConsentAcknowledged: true})
	require.NoError(t, err)
	ch.IntakeForm.ProviderNotes = strp("tampered")

	got, err := s.GetCaseHistory(ctx, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, got.IntakeForm.ProviderNotes)
}
