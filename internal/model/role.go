package model

import (
	"fmt"
	"sort"
	"strings"

	apperrors "taskhub/internal/errors"
)

// Role is a closed-set attribute deciding which gated operations a user may perform.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r belongs to the role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, s)
	}
	return r, nil
}

// RoleSet is the set of roles a route admits.
type RoleSet map[Role]struct{}

// NewRoleSet builds a RoleSet. Roles outside the enumeration panic, since route tables are static.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			panic(fmt.Sprintf("model: unknown role %q in role set", r))
		}
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether r is admitted.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Intersect returns the roles admitted by both sets.
func (s RoleSet) Intersect(other RoleSet) RoleSet {
	out := make(RoleSet)
	for r := range s {
		if other.Contains(r) {
			out[r] = struct{}{}
		}
	}
	return out
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
