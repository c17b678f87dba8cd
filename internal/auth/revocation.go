package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-casebook/internal/store"
)

const revokedKeyPrefix = "casebook:revoked:"

// RevocationList 登出后失效的凭证 ID（保留到凭证自然过期）
type RevocationList struct {
	kv  store.KV
	now func() time.Time
}

func NewRevocationList(kv store.KV) *RevocationList {
	return &RevocationList{kv: kv, now: time.Now}
}

// Revoke marks jti as revoked until expiresAt. Already-expired credentials are skipped.
func (r *RevocationList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := r.kv.Set(ctx, revokedKeyPrefix+jti, "1", ttl); err != nil {
		return fmt.Errorf("failed to revoke credential: %w", err)
	}
	return nil
}

// IsRevoked 查询凭证是否已吊销
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := r.kv.Get(ctx, revokedKeyPrefix+jti)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrMiss):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
}

// Sessions resolves raw credentials into sessions, honouring revocation.
type Sessions struct {
	tokens  *TokenIssuer
	revoked *RevocationList
}

func NewSessions(tokens *TokenIssuer, revoked *RevocationList) *Sessions {
	return &Sessions{tokens: tokens, revoked: revoked}
}

func (s *Sessions) Tokens() *TokenIssuer { return s.tokens }

// Resolve returns ErrInvalidCredential for bad or revoked credentials; any other error
// means the revocation store could not be consulted.
func (s *Sessions) Resolve(ctx context.Context, token string) (*Session, error) {
	sess, err := s.tokens.Resolve(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, sess.TokenID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidCredential
	}
	return sess, nil
}

// Revoke 吊销一个已解析的会话
func (s *Sessions) Revoke(ctx context.Context, sess *Session) error {
	return s.revoked.Revoke(ctx, sess.TokenID, sess.ExpiresAt)
}
