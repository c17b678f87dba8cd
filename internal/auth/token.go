package auth

import (
	"errors"
	"fmt"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "wisefido-casebook"

// ErrInvalidCredential covers every way a credential can fail: bad signature, malformed,
// expired, wrong algorithm, unknown role, revoked. Callers cannot tell them apart.
var ErrInvalidCredential = errors.New("invalid or expired credential")

// Claims 凭证载荷
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Credential 已签发的凭证
type Credential struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Session 解析后的凭证
type Session struct {
	Identity  domain.Identity
	TokenID   string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 credentials with a process-wide secret.
// It is immutable after construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return NewTokenIssuerWithClock(secret, ttl, time.Now)
}

func NewTokenIssuerWithClock(secret string, ttl time.Duration, now func() time.Time) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

// TTL 凭证有效期（cookie 过期时间与之一致）
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue 签发凭证
func (t *TokenIssuer) Issue(id domain.Identity) (*Credential, error) {
	if !id.Role.Valid() {
		return nil, fmt.Errorf("cannot issue credential for role %q", id.Role)
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)
	jti := uuid.NewString()

	claims := &Claims{
		UserID: id.UserID,
		Role:   string(id.Role),
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    tokenIssuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Credential{Token: signed, ID: jti, ExpiresAt: expiresAt}, nil
}

// Resolve 校验凭证；任何失败都返回 ErrInvalidCredential
func (t *TokenIssuer) Resolve(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidCredential
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidCredential
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidCredential
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, ErrInvalidCredential
	}
	return &Session{
		Identity:  domain.Identity{UserID: claims.UserID, Role: role, Email: claims.Email},
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
