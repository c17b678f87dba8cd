package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-casebook/internal/domain"
	"wisefido-casebook/owl-common/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresUsersRepository 用户Repository实现
type PostgresUsersRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewPostgresUsersRepository(db *sql.DB, logger *zap.Logger) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db, logger: logger, now: utcNow}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

const selectUserWithProfile = `
	SELECT
		u.id::text,
		u.email,
		u.password_hash,
		u.role,
		u.created_at,
		cp.id::text,
		cp.first_name,
		cp.last_name,
		pp.id::text,
		pp.first_name,
		pp.last_name,
		pp.clinic_name,
		pp.license_number
	FROM users u
	LEFT JOIN client_profiles cp ON cp.user_id = u.id
	LEFT JOIN provider_profiles pp ON pp.user_id = u.id
`

func (r *PostgresUsersRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// CreateUserWithProfile 事务内写 users + 对应角色的 profile
func (r *PostgresUsersRepository) CreateUserWithProfile(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    r.now(),
	}

	insertProfile, err := domain.MatchRole(in.Role, domain.RoleCases[func(*sql.Tx) error]{
		Client: func() func(*sql.Tx) error {
			p := &domain.ClientProfile{
				ID:        uuid.NewString(),
				UserID:    user.ID,
				FirstName: in.Profile.FirstName,
				LastName:  in.Profile.LastName,
			}
			user.ClientProfile = p
			return func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO client_profiles (id, user_id, first_name, last_name) VALUES ($1, $2, $3, $4)`,
					p.ID, p.UserID, p.FirstName, p.LastName)
				return err
			}
		},
		Provider: func() func(*sql.Tx) error {
			p := &domain.ProviderProfile{
				ID:            uuid.NewString(),
				UserID:        user.ID,
				FirstName:     in.Profile.FirstName,
				LastName:      in.Profile.LastName,
				ClinicName:    in.Profile.ClinicName,
				LicenseNumber: in.Profile.LicenseNumber,
			}
			user.ProviderProfile = p
			return func(tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO provider_profiles (id, user_id, first_name, last_name, clinic_name, license_number)
					 VALUES ($1, $2, $3, $4, $5, $6)`,
					p.ID, p.UserID, p.FirstName, p.LastName, p.ClinicName, p.LicenseNumber)
				return err
			}
		},
	})
	if err != nil {
		return nil, err
	}

	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
			user.ID, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		if err := insertProfile(tx); err != nil {
			return fmt.Errorf("failed to insert %s profile: %w", user.Role.Label(), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("User created",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
	)
	return user, nil
}

func (r *PostgresUsersRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.ErrNotFound
	}
	return r.getOne(ctx, selectUserWithProfile+` WHERE u.email = $1`, email)
}

func (r *PostgresUsersRepository) GetUserWithProfile(ctx context.Context, userID string) (*domain.User, error) {
	if !validID(userID) {
		return nil, domain.ErrNotFound
	}
	return r.getOne(ctx, selectUserWithProfile+` WHERE u.id = $1`, userID)
}

func (r *PostgresUsersRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var role string
	var cpID, cpFirst, cpLast sql.NullString
	var ppID, ppFirst, ppLast, ppClinic, ppLicense sql.NullString

	if err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt,
		&cpID, &cpFirst, &cpLast,
		&ppID, &ppFirst, &ppLast, &ppClinic, &ppLicense,
	); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = parsed
	u.CreatedAt = u.CreatedAt.UTC()

	// 只挂与角色匹配的 profile
	_, _ = domain.MatchRole(u.Role, domain.RoleCases[bool]{
		Client: func() bool {
			if cpID.Valid {
				u.ClientProfile = &domain.ClientProfile{
					ID:        cpID.String,
					UserID:    u.ID,
					FirstName: nullStringPtr(cpFirst),
					LastName:  nullStringPtr(cpLast),
				}
			}
			return cpID.Valid
		},
		Provider: func() bool {
			if ppID.Valid {
				u.ProviderProfile = &domain.ProviderProfile{
					ID:            ppID.String,
					UserID:        u.ID,
					FirstName:     nullStringPtr(ppFirst),
					LastName:      nullStringPtr(ppLast),
					ClinicName:    nullStringPtr(ppClinic),
					LicenseNumber: nullStringPtr(ppLicense),
				}
			}
			return ppID.Valid
		},
	})
	return &u, nil
}
