package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockUsersDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresUsersRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPostgresUsersRepository(db, zap.NewNop())
	return db, mock, repo
}

func strp(s string) *string { return &s }

var userColumns = []string{
	"id", "email", "password_hash", "role", "created_at",
	"cp_id", "cp_first_name", "cp_last_name",
	"pp_id", "pp_first_name", "pp_last_name", "pp_clinic_name", "pp_license_number",
}

func TestCreateUserWithProfile_Client_Commits(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "ann@example.com", "hash", "CLIENT", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO client_profiles`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Ann", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := repo.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email:        "ann@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleClient,
		Profile:      domain.ProfileFields{FirstName: strp("Ann"), ClinicName: strp("ignored for clients")},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, u.Role)
	require.NotNil(t, u.ClientProfile)
	assert.Nil(t, u.ProviderProfile)
	assert.Equal(t, u.ID, u.ClientProfile.UserID)
	assert.Equal(t, "Ann", *u.ClientProfile.FirstName)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithProfile_Provider_Commits(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO provider_profiles`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Bo", "Lee", "Harbor Clinic", "LIC-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := repo.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email:        "bo@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleProvider,
		Profile: domain.ProfileFields{
			FirstName: strp("Bo"), LastName: strp("Lee"),
			ClinicName: strp("Harbor Clinic"), LicenseNumber: strp("LIC-9"),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, u.ProviderProfile)
	assert.Nil(t, u.ClientProfile)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithProfile_ProfileFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO client_profiles`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	u, err := repo.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email: "ann@example.com", PasswordHash: "hash", Role: domain.RoleClient,
	})
	require.Error(t, err)
	assert.Nil(t, u)
	assert.NotErrorIs(t, err, domain.ErrDuplicateEmail)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithProfile_UniqueViolation(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	mock.ExpectRollback()

	_, err := repo.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email: "ann@example.com", PasswordHash: "hash", Role: domain.RoleProvider,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserWithProfile_UnknownRoleTouchesNothing(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	_, err := repo.CreateUserWithProfile(context.Background(), domain.NewUser{
		Email: "x@example.com", PasswordHash: "hash", Role: domain.Role("ADMIN"),
	})
	assert.ErrorIs(t, err, domain.ErrUnknownRole)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailExists(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.EmailExists(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_AttachesRoleProfile(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	userID := uuid.New().String()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(userColumns).AddRow(
		userID, "bo@example.com", "hash", "PROVIDER", created,
		nil, nil, nil,
		uuid.New().String(), "Bo", nil, "Harbor Clinic", "LIC-9",
	)
	mock.ExpectQuery(`SELECT`).WithArgs("bo@example.com").WillReturnRows(rows)

	u, err := repo.GetUserByEmail(context.Background(), "bo@example.com")
	require.NoError(t, err)
	assert.Equal(t, userID, u.ID)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Equal(t, domain.RoleProvider, u.Role)
	require.NotNil(t, u.ProviderProfile)
	assert.Equal(t, "Harbor Clinic", *u.ProviderProfile.ClinicName)
	assert.Nil(t, u.ProviderProfile.LastName)
	assert.Nil(t, u.ClientProfile)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	db, mock, repo := setupMockUsersDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).WithArgs("nobody@example.com").WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// malformed id never reaches the database
	_, err = repo.GetUserWithProfile(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
