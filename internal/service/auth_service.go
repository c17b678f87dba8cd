package service

import (
	"context"
	"errors"
	"fmt"

	"wisefido-casebook/internal/auth"
	"wisefido-casebook/internal/domain"
	"wisefido-casebook/internal/repository"

	"go.uber.org/zap"
)

// AuthService 注册、登录、登出、当前用户
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	// Logout revokes the presented credential if it is still valid. It never fails.
	Logout(ctx context.Context, token string)
	Me(ctx context.Context, id domain.Identity) (*domain.User, error)
}

// SignupRequest 注册请求
type SignupRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Role          string  `json:"role"`
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	ClinicName    *string `json:"clinicName"`
	LicenseNumber *string `json:"licenseNumber"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResult 注册/登录成功：用户 + 新签发的凭证
type AuthResult struct {
	User       *domain.User
	Credential *auth.Credential
}

type authService struct {
	users    repository.UsersRepository
	hasher   *auth.PasswordHasher
	sessions *auth.Sessions
	logger   *zap.Logger
}

func NewAuthService(users repository.UsersRepository, hasher *auth.PasswordHasher, sessions *auth.Sessions, logger *zap.Logger) AuthService {
	return &authService{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
	}
}

// Signup 用户注册
func (s *authService) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	// 1. 参数校验（先于任何存储访问）
	v := &domain.ValidationError{}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		v.Add("email", "valid email is required")
	}
	validatePassword(v, req.Password)
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		v.Add("role", "must be CLIENT or PROVIDER")
	}
	profile := domain.ProfileFields{
		FirstName:     nameField(v, "firstName", req.FirstName, maxNameLen),
		LastName:      nameField(v, "lastName", req.LastName, maxNameLen),
		ClinicName:    textField(v, "clinicName", req.ClinicName, maxClinicLen),
		LicenseNumber: textField(v, "licenseNumber", req.LicenseNumber, maxClinicLen),
	}
	if err := v.OrNil(); err != nil {
		s.logger.Warn("Signup rejected: validation failed",
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "validation"),
			zap.Int("violations", len(v.Fields)),
		)
		return nil, err
	}

	// 2. 邮箱预检（唯一约束才是最终保证）
	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Warn("Signup rejected: email already registered",
			zap.String("ip_address", req.IPAddress),
			zap.String("reason", "duplicate_email"),
		)
		return nil, domain.ErrDuplicateEmail
	}

	// 3. 哈希 + 事务写入
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUserWithProfile(ctx, domain.NewUser{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Profile:      profile,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			s.logger.Warn("Signup rejected: email registered concurrently",
				zap.String("ip_address", req.IPAddress),
				zap.String("reason", "duplicate_email"),
			)
		}
		return nil, err
	}

	// 4. 签发凭证
	cred, err := s.sessions.Tokens().Issue(identityOf(user))
	if err != nil {
		return nil, err
	}

	s.logger.Info("User signed up",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.String("ip_address", req.IPAddress),
	)
	return &AuthResult{User: user, Credential: cred}, nil
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	v := &domain.ValidationError{}
	email, ok := normalizeEmail(req.Email)
	if !ok {
		v.Add("email", "valid email is required")
	}
	if req.Password == "" {
		v.Add("password", "password is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		// 与密码错误同样耗时
		s.hasher.VerifyDummy(req.Password)
		s.logger.Warn("User login failed",
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "unknown_email"),
		)
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logger.Warn("User login failed",
			zap.String("user_id", user.ID),
			zap.String("ip_address", req.IPAddress),
			zap.String("user_agent", req.UserAgent),
			zap.String("reason", "wrong_password"),
		)
		return nil, domain.ErrInvalidCredentials
	}

	cred, err := s.sessions.Tokens().Issue(identityOf(user))
	if err != nil {
		return nil, err
	}
	s.logger.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.String("ip_address", req.IPAddress),
	)
	return &AuthResult{User: user, Credential: cred}, nil
}

func (s *authService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return
	}
	if err := s.sessions.Revoke(ctx, sess); err != nil {
		s.logger.Warn("Failed to revoke credential on logout",
			zap.String("user_id", sess.Identity.UserID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("User logged out", zap.String("user_id", sess.Identity.UserID))
}

// Me 当前用户（含 profile）
func (s *authService) Me(ctx context.Context, id domain.Identity) (*domain.User, error) {
	user, err := s.users.GetUserWithProfile(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load current user: %w", err)
	}
	return user, nil
}

func identityOf(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Role: u.Role, Email: u.Email}
}
