package policy

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Predicate decides whether a rule applies to a document identifier.
type Predicate func(identifier string) bool

// Contains matches identifiers containing substr.
func Contains(substr string) Predicate {
	return func(identifier string) bool { return strings.Contains(identifier, substr) }
}

// Prefix matches identifiers starting with prefix.
func Prefix(prefix string) Predicate {
	return func(identifier string) bool { return strings.HasPrefix(identifier, prefix) }
}

// Pattern matches identifiers against a regular expression.
func Pattern(expr string) (Predicate, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return re.MatchString, nil
}

// Rule maps matching document identifiers to metadata.
type Rule struct {
	Name     string
	Match    Predicate
	Metadata Metadata
}

// Tagger derives document metadata from an identifier. Rules are evaluated in
// registration order, first match wins, and the default covers everything else.
type Tagger struct {
	mu    sync.RWMutex
	rules []Rule
	def   Metadata
}

// NewTagger creates a tagger. All metadata is validated here so Tag cannot fail.
func NewTagger(def Metadata, rules ...Rule) (*Tagger, error) {
	if err := def.Validate("default"); err != nil {
		return nil, fmt.Errorf("default rule: %w", err)
	}
	t := &Tagger{def: def}
	for _, r := range rules {
		if err := t.Register(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register appends a rule with the lowest precedence so far.
func (t *Tagger) Register(r Rule) error {
	if r.Match == nil {
		return fmt.Errorf("rule %q has no predicate", r.Name)
	}
	if err := r.Metadata.Validate(r.Name); err != nil {
		return fmt.Errorf("rule %q: %w", r.Name, err)
	}
	t.mu.Lock()
	t.rules = append(t.rules, r)
	t.mu.Unlock()
	return nil
}

// Tag returns the metadata of the first matching rule, or the default.
func (t *Tagger) Tag(identifier string) Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.rules {
		if r.Match(identifier) {
			return r.Metadata
		}
	}
	return t.def
}

// Default returns the catch-all metadata.
func (t *Tagger) Default() Metadata { return t.def }

// DefaultRules reproduces the policy corpus the service was first deployed with.
func DefaultRules() (Metadata, []Rule) {
	def := Metadata{EffectiveDate: "2024-01-01", RoleScope: ScopeAllEmployees, DocType: DocTypeGeneral}
	return def, []Rule{
		{
			Name:     "employee_handbook",
			Match:    Contains("employee_handbook"),
			Metadata: Metadata{EffectiveDate: "2024-01-15", RoleScope: ScopeAllEmployees, DocType: DocTypeHandbook},
		},
		{
			Name:     "manager_updates",
			Match:    Contains("manager_updates"),
			Metadata: Metadata{EffectiveDate: "2024-06-01", RoleScope: ScopeAllEmployees, DocType: DocTypePolicyUpdate},
		},
		{
			Name:     "intern_onboarding",
			Match:    Contains("intern_onboarding"),
			Metadata: Metadata{EffectiveDate: "2024-06-01", RoleScope: ScopeInterns, DocType: DocTypeRoleSpecific},
		},
	}
}
