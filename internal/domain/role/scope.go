package role

import (
	"fmt"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// ScopeTable maps each role to the role_scope tag it matches.
type ScopeTable map[Role]string

// DefaultScopes is the built-in role to scope mapping.
func DefaultScopes() ScopeTable {
	return ScopeTable{
		Intern:   "interns",
		Employee: "employees",
		Manager:  "managers",
		Unknown:  "unknowns",
	}
}

// NewScopeTable builds a table from configuration. Roles missing from raw keep
// their default scope.
func NewScopeTable(raw map[string]string) (ScopeTable, error) {
	t := DefaultScopes()
	for name, scope := range raw {
		r, err := Parse(name)
		if err != nil {
			return nil, fmt.Errorf("roles: %w", err)
		}
		if scope == "" {
			return nil, fmt.Errorf("%w: empty scope for role %q", domain.ErrInvalidInput, name)
		}
		t[r] = scope
	}
	return t, nil
}

// Scope returns the scope tag for r.
func (t ScopeTable) Scope(r Role) (string, error) {
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedRole, string(r))
	}
	s, ok := t[r]
	if !ok {
		return "", fmt.Errorf("%w: no scope configured for %q", domain.ErrUnsupportedRole, string(r))
	}
	return s, nil
}
