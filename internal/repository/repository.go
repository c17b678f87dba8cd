package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UsersRepository 账号与 profile 的存取
type UsersRepository interface {
	// EmailExists is the fast pre-check before signup; the users.email UNIQUE
	// constraint stays authoritative.
	EmailExists(ctx context.Context, email string) (bool, error)

	// CreateUserWithProfile inserts the user and exactly one role-matching profile
	// in a single transaction. Duplicate email -> domain.ErrDuplicateEmail.
	CreateUserWithProfile(ctx context.Context, in domain.NewUser) (*domain.User, error)

	// GetUserByEmail returns the user including PasswordHash; domain.ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetUserWithProfile 按 ID 查询用户及其 profile
	GetUserWithProfile(ctx context.Context, userID string) (*domain.User, error)
}

// CaseHistoriesRepository 病例、intake、session log 的存取
// Ownership is checked by the caller before any write.
type CaseHistoriesRepository interface {
	// CreateCaseWithIntake picks the first provider (by created_at, id) and inserts the
	// case and its intake form atomically. No provider -> domain.ErrNoProviderAvailable.
	CreateCaseWithIntake(ctx context.Context, clientID string, in domain.IntakeSubmission) (*domain.CaseHistory, error)

	// GetCaseHistory returns the case with its intake form only.
	GetCaseHistory(ctx context.Context, caseID string) (*domain.CaseHistory, error)

	// GetCaseHistoryDetail adds both participants (full profiles) and session logs.
	GetCaseHistoryDetail(ctx context.Context, caseID string) (*domain.CaseHistory, error)

	// ListCaseHistories returns cases for exactly one owner column, newest first, each
	// with both participants, intake form, and session logs.
	ListCaseHistories(ctx context.Context, filter domain.OwnerFilter) ([]*domain.CaseHistory, error)

	// UpdateProviderNotes overwrites provider_notes; client-authored fields are never touched.
	UpdateProviderNotes(ctx context.Context, caseID string, notes *string) (*domain.IntakeForm, error)

	// CreateSessionLog appends a session log; client/provider ids are copied from c.
	CreateSessionLog(ctx context.Context, c *domain.CaseHistory, notes domain.SessionNotes) (*domain.SessionLog, error)

	// ListSessionLogs 按 session_date 倒序
	ListSessionLogs(ctx context.Context, caseID string) ([]*domain.SessionLog, error)
}

// validID reports whether id has the shape of a stored key. Anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func utcNow() time.Time {
	return time.Now().UTC()
}
