// Package policy holds document-level policy metadata and the rule-based tagger that derives it.
package policy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// Metadata fields as they appear in the store and in the context bundle.
const (
	FieldEffectiveDate = "effective_date"
	FieldRoleScope     = "role_scope"
	FieldDocType       = "doc_type"
)

// Well-known role scopes and document types.
const (
	ScopeAllEmployees = "all_employees"
	ScopeInterns      = "interns"

	DocTypeHandbook     = "handbook"
	DocTypePolicyUpdate = "policy_update"
	DocTypeRoleSpecific = "role_specific"
	DocTypeGeneral      = "general"
)

// Metadata is attached to every chunk of a document.
type Metadata struct {
	EffectiveDate string `json:"effective_date" yaml:"effective_date"`
	RoleScope     string `json:"role_scope" yaml:"role_scope"`
	DocType       string `json:"doc_type" yaml:"doc_type"`
}

// DateKey converts EffectiveDate to an integer with the same total order
// ("2024-06-01" -> 20240601). id identifies the record in the returned error.
func (m Metadata) DateKey(id string) (int, error) {
	digits := strings.ReplaceAll(m.EffectiveDate, "-", "")
	if len(digits) != 8 {
		return 0, domain.NewMalformedMetadata(id, FieldEffectiveDate, m.EffectiveDate)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, domain.NewMalformedMetadata(id, FieldEffectiveDate, m.EffectiveDate)
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, domain.NewMalformedMetadata(id, FieldEffectiveDate, m.EffectiveDate)
	}
	return n, nil
}

// Validate checks that every field is present and the date is well-formed.
func (m Metadata) Validate(id string) error {
	if m.RoleScope == "" {
		return domain.NewMalformedMetadata(id, FieldRoleScope, m.RoleScope)
	}
	if m.DocType == "" {
		return domain.NewMalformedMetadata(id, FieldDocType, m.DocType)
	}
	if _, err := m.DateKey(id); err != nil {
		return err
	}
	return nil
}

// Fields flattens metadata into store fields.
func (m Metadata) Fields() map[string]string {
	return map[string]string{
		FieldEffectiveDate: m.EffectiveDate,
		FieldRoleScope:     m.RoleScope,
		FieldDocType:       m.DocType,
	}
}

// FromFields rebuilds metadata from store fields. Missing fields stay empty;
// validation happens where ordering depends on them.
func FromFields(fields map[string]string) Metadata {
	return Metadata{
		EffectiveDate: fields[FieldEffectiveDate],
		RoleScope:     fields[FieldRoleScope],
		DocType:       fields[FieldDocType],
	}
}

func (m Metadata) String() string {
	return fmt.Sprintf("%s/%s/%s", m.EffectiveDate, m.RoleScope, m.DocType)
}
