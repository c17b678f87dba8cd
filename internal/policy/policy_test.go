package policy

import (
	"testing"

	"wisefido-casebook/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	clientA   = domain.Identity{UserID: "client-a", Role: domain.RoleClient}
	clientB   = domain.Identity{UserID: "client-b", Role: domain.RoleClient}
	providerP = domain.Identity{UserID: "provider-p", Role: domain.RoleProvider}
	providerQ = domain.Identity{UserID: "provider-q", Role: domain.RoleProvider}
)

func testCase() *domain.CaseHistory {
	return &domain.CaseHistory{
		ID:         "case-1",
		ClientID:   clientA.UserID,
		ProviderID: providerP.UserID,
		Client:     &domain.CaseParty{ID: clientA.UserID},
		Provider:   &domain.CaseParty{ID: providerP.UserID},
	}
}

func TestRequireRole(t *testing.T) {
	assert.ErrorIs(t, RequireRole(nil, domain.RoleClient), domain.ErrUnauthenticated)
	assert.ErrorIs(t, RequireRole(&domain.Identity{}, domain.RoleClient), domain.ErrUnauthenticated)
	assert.NoError(t, RequireRole(&clientA, domain.RoleClient))
	assert.NoError(t, RequireRole(&providerP, domain.RoleClient, domain.RoleProvider))
	assert.ErrorIs(t, RequireRole(&providerP, domain.RoleClient), domain.ErrForbidden)
	assert.ErrorIs(t, RequireRole(&clientA), domain.ErrForbidden)
}

func TestAuthorizeCaseRead(t *testing.T) {
	c := testCase()
	tests := []struct {
		name    string
		id      domain.Identity
		wantErr error
	}{
		{"owning client", clientA, nil},
		{"assigned provider", providerP, nil},
		{"other client", clientB, domain.ErrForbidden},
		{"other provider", providerQ, domain.ErrForbidden},
		{"client id used with provider role", domain.Identity{UserID: clientA.UserID, Role: domain.RoleProvider}, domain.ErrForbidden},
		{"unknown role", domain.Identity{UserID: clientA.UserID, Role: "ADMIN"}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeCaseRead(tt.id, c)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
	assert.ErrorIs(t, AuthorizeCaseRead(clientA, nil), domain.ErrForbidden)
}

func TestAuthorizeProviderWrite(t *testing.T) {
	c := testCase()
	assert.NoError(t, AuthorizeProviderWrite(providerP, c))
	assert.ErrorIs(t, AuthorizeProviderWrite(providerQ, c), domain.ErrForbidden)
	assert.ErrorIs(t, AuthorizeProviderWrite(clientA, c), domain.ErrForbidden, "owning client cannot write provider fields")
	assert.ErrorIs(t, AuthorizeProviderWrite(providerP, nil), domain.ErrForbidden)
}

func TestOwnerFilterFor(t *testing.T) {
	f, err := OwnerFilterFor(clientA)
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerFilter{ClientID: clientA.UserID}, f)

	f, err = OwnerFilterFor(providerP)
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerFilter{ProviderID: providerP.UserID}, f)

	_, err = OwnerFilterFor(domain.Identity{UserID: "x", Role: "ADMIN"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCounterpart(t *testing.T) {
	c := testCase()
	assert.Equal(t, providerP.UserID, Counterpart(clientA, c).ID)
	assert.Equal(t, clientA.UserID, Counterpart(providerP, c).ID)
	assert.Nil(t, Counterpart(domain.Identity{Role: "ADMIN"}, c))
}
