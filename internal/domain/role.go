package domain

import (
	"fmt"
	"strings"
)

// Role 账号角色（创建后不可变）
type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleProvider Role = "PROVIDER"
)

// ErrUnknownRole is returned by MatchRole for values outside the closed role set.
var ErrUnknownRole = fmt.Errorf("unknown role")

// ParseRole accepts the wire form exactly ("CLIENT" / "PROVIDER").
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleProvider:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }

// Label is the lower-case form used in log fields and export file names.
func (r Role) Label() string { return strings.ToLower(string(r)) }

// RoleCases holds one branch per role. Every role-dependent decision goes through
// MatchRole, so adding a role means adding a field here and fixing each call site.
type RoleCases[T any] struct {
	Client   func() T
	Provider func() T
}

// MatchRole dispatches on r. Unknown roles fail closed with ErrUnknownRole.
func MatchRole[T any](r Role, cases RoleCases[T]) (T, error) {
	var zero T
	switch r {
	case RoleClient:
		if cases.Client == nil {
			return zero, fmt.Errorf("%w: no branch for %s", ErrUnknownRole, r)
		}
		return cases.Client(), nil
	case RoleProvider:
		if cases.Provider == nil {
			return zero, fmt.Errorf("%w: no branch for %s", ErrUnknownRole, r)
		}
		return cases.Provider(), nil
	default:
		return zero, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
}
