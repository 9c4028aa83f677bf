// Package role defines the closed set of user roles and their mapping to document audience scopes.
package role

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// Role is the audience a query is asked on behalf of.
type Role string

// Supported roles.
const (
	Intern   Role = "intern"
	Employee Role = "employee"
	Manager  Role = "manager"
	Unknown  Role = "unknown"
)

// All lists every supported role.
func All() []Role {
	return []Role{Intern, Employee, Manager, Unknown}
}

// Valid reports whether r belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case Intern, Employee, Manager, Unknown:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// Parse accepts exactly one of the supported role names (case-insensitive, trimmed).
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedRole, s)
	}
	return r, nil
}

// Normalize maps classifier output onto the closed set. Anything unrecognised
// becomes Employee, the broadest audience that still has a scope of its own.
func Normalize(s string) Role {
	r, err := Parse(s)
	if err != nil {
		return Employee
	}
	return r
}
