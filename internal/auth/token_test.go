package auth

import (
	"testing"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testIdentity() domain.Identity {
	return domain.Identity{UserID: "6f1c1d4e-3c47-4a57-9a6c-0d8f7e0f6d11", Role: domain.RoleProvider, Email: "dr@example.com"}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuerWithClock(testSecret, 7*24*time.Hour, func() time.Time { return now })

	cred, err := issuer.Issue(testIdentity())
	require.NoError(t, err)
	assert.NotEmpty(t, cred.ID)
	assert.Equal(t, now.Add(7*24*time.Hour), cred.ExpiresAt)

	sess, err := issuer.Resolve(cred.Token)
	require.NoError(t, err)
	assert.Equal(t, testIdentity(), sess.Identity)
	assert.Equal(t, cred.ID, sess.TokenID)
	assert.True(t, cred.ExpiresAt.Equal(sess.ExpiresAt))
}

func TestTokenIssuer_UniqueIDs(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	a, err := issuer.Issue(testIdentity())
	require.NoError(t, err)
	b, err := issuer.Issue(testIdentity())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenIssuer_IssueRejectsUnknownRole(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	_, err := issuer.Issue(domain.Identity{UserID: "u1", Role: domain.Role("ADMIN")})
	assert.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuerWithClock(testSecret, time.Hour, func() time.Time { return now })

	cred, err := issuer.Issue(testIdentity())
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Second)
	_, err = issuer.Resolve(cred.Token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestTokenIssuer_RejectsForgeries(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	cred, err := issuer.Issue(testIdentity())
	require.NoError(t, err)

	validClaims := func(role string) *Claims {
		now := time.Now()
		return &Claims{
			UserID: "u1",
			Role:   role,
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "jti-1",
				Issuer:    tokenIssuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("CLIENT")).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, validClaims("CLIENT")).SignedString([]byte(testSecret))
	require.NoError(t, err)

	otherSecret, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("CLIENT")).
		SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("ADMIN")).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry := validClaims("CLIENT")
	noExpiry.ExpiresAt = nil
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, noExpiry).SignedString([]byte(testSecret))
	require.NoError(t, err)

	wrongIssuer := validClaims("CLIENT")
	wrongIssuer.Issuer = "someone-else"
	wrongIss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wrongIssuer).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"tampered", cred.Token[:len(cred.Token)-2] + "xx"},
		{"alg none", noneToken},
		{"alg HS512", hs512},
		{"other secret", otherSecret},
		{"unknown role", badRole},
		{"missing expiry", noExp},
		{"wrong issuer", wrongIss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := issuer.Resolve(tt.token)
			assert.Nil(t, sess)
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}
