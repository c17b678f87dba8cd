// Package policy holds the role and ownership rules for case records.
package policy

import (
	"wisefido-casebook/internal/domain"
)

// RequireRole 角色门禁：未认证 -> ErrUnauthenticated，角色不在集合内 -> ErrForbidden
func RequireRole(id *domain.Identity, allowed ...domain.Role) error {
	if id == nil || id.UserID == "" {
		return domain.ErrUnauthenticated
	}
	for _, r := range allowed {
		if id.Role == r {
			return nil
		}
	}
	return domain.ErrForbidden
}

// CanAccessCase reports whether id is a participant of c.
// A client must own the case; a provider must be assigned to it.
func CanAccessCase(id domain.Identity, c *domain.CaseHistory) bool {
	if c == nil {
		return false
	}
	ok, err := domain.MatchRole(id.Role, domain.RoleCases[bool]{
		Client:   func() bool { return c.ClientID == id.UserID },
		Provider: func() bool { return c.ProviderID == id.UserID },
	})
	return err == nil && ok
}

// AuthorizeCaseRead 读病例（及其 intake、session log）
func AuthorizeCaseRead(id domain.Identity, c *domain.CaseHistory) error {
	if !CanAccessCase(id, c) {
		return domain.ErrForbidden
	}
	return nil
}

// AuthorizeProviderWrite covers provider notes and session logs: only the assigned
// provider may write. The owning client is refused like anyone else.
func AuthorizeProviderWrite(id domain.Identity, c *domain.CaseHistory) error {
	allowed, err := domain.MatchRole(id.Role, domain.RoleCases[bool]{
		Client:   func() bool { return false },
		Provider: func() bool { return c != nil && c.ProviderID == id.UserID },
	})
	if err != nil || !allowed {
		return domain.ErrForbidden
	}
	return nil
}

// OwnerFilterFor scopes list queries to the identity's own column.
func OwnerFilterFor(id domain.Identity) (domain.OwnerFilter, error) {
	f, err := domain.MatchRole(id.Role, domain.RoleCases[domain.OwnerFilter]{
		Client:   func() domain.OwnerFilter { return domain.OwnerFilter{ClientID: id.UserID} },
		Provider: func() domain.OwnerFilter { return domain.OwnerFilter{ProviderID: id.UserID} },
	})
	if err != nil {
		return domain.OwnerFilter{}, domain.ErrForbidden
	}
	return f, nil
}

// Counterpart returns the participant the viewer is looking at: the provider for a
// client, the client for a provider.
func Counterpart(id domain.Identity, c *domain.CaseHistory) *domain.CaseParty {
	p, _ := domain.MatchRole(id.Role, domain.RoleCases[*domain.CaseParty]{
		Client:   func() *domain.CaseParty { return c.Provider },
		Provider: func() *domain.CaseParty { return c.Client },
	})
	return p
}
