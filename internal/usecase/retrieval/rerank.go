package retrieval

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/record"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

// Key is the precedence key of a candidate for one request.
// Keys compare lexicographically in field order, ascending.
type Key struct {
	// RoleMismatch is 0 when the candidate's role_scope is the requester's scope, else 1.
	RoleMismatch int
	// NegDate is the negated effective date (20240601 -> -20240601), so newer sorts first.
	NegDate int
	// Distance is the similarity distance; smaller is closer.
	Distance float64
}

// SortKey derives the precedence key of c for a requester whose role maps to scope.
// A malformed effective date yields *domain.MalformedMetadataError.
func SortKey(c *record.Candidate, scope string) (Key, error) {
	date, err := c.Metadata.DateKey(c.ChunkID)
	if err != nil {
		return Key{}, err
	}
	mismatch := 1
	if c.Metadata.RoleScope == scope {
		mismatch = 0
	}
	return Key{RoleMismatch: mismatch, NegDate: -date, Distance: c.Distance}, nil
}

// criterion compares one component of two keys.
type criterion func(a, b Key) int

// Role-specific policy beats general policy.
func byRoleScope(a, b Key) int { return cmp.Compare(a.RoleMismatch, b.RoleMismatch) }

// Newer policy beats older policy.
func byRecency(a, b Key) int { return cmp.Compare(a.NegDate, b.NegDate) }

// Semantic relevance breaks the remaining ties.
func byDistance(a, b Key) int { return cmp.Compare(a.Distance, b.Distance) }

var precedence = []criterion{byRoleScope, byRecency, byDistance}

// Compare orders two keys by role match, then recency, then distance.
func Compare(a, b Key) int {
	for _, c := range precedence {
		if r := c(a, b); r != 0 {
			return r
		}
	}
	return 0
}

// IsOrdered reports whether keys are in non-decreasing precedence order.
func IsOrdered(keys []Key) bool {
	for i := 1; i < len(keys); i++ {
		if Compare(keys[i-1], keys[i]) > 0 {
			return false
		}
	}
	return true
}

// Rerank orders candidates by precedence for userRole and keeps the first topN.
// Candidates with equal keys keep their input order. topN beyond the candidate
// count returns every candidate.
func Rerank(candidates []record.Candidate, userRole role.Role, scopes role.ScopeTable, topN int) ([]record.RankedChunk, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("top_n must be positive, got %d: %w", topN, domain.ErrInvalidInput)
	}
	scope, err := scopes.Scope(userRole)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		c   *record.Candidate
		key Key
	}
	items := make([]keyed, len(candidates))
	for i := range candidates {
		k, err := SortKey(&candidates[i], scope)
		if err != nil {
			return nil, fmt.Errorf("rerank: %w", err)
		}
		items[i] = keyed{c: &candidates[i], key: k}
	}

	slices.SortStableFunc(items, func(a, b keyed) int { return Compare(a.key, b.key) })

	n := min(topN, len(items))
	ranked := make([]record.RankedChunk, n)
	for i, it := range items[:n] {
		ranked[i] = record.RankedChunk{
			Rank:             i + 1,
			ChunkID:          it.c.ChunkID,
			SourceDocumentID: it.c.SourceDocumentID,
			ChunkIndex:       it.c.ChunkIndex,
			Text:             it.c.Text,
			Metadata:         it.c.Metadata,
			Distance:         it.c.Distance,
		}
	}
	return ranked, nil
}
