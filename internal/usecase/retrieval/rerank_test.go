package retrieval

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	"github.com/kailas-cloud/policyrag/internal/domain/record"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

func candidate(id, scope, date string, distance float64) record.Candidate {
	return record.Candidate{
		ChunkID:          id,
		SourceDocumentID: id,
		Text:             "text of " + id,
		Metadata:         policy.Metadata{EffectiveDate: date, RoleScope: scope, DocType: policy.DocTypeGeneral},
		Distance:         distance,
	}
}

func ids(ranked []record.RankedChunk) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.ChunkID
	}
	return out
}

// Handbook A and intern onboarding B, retrieved with near-identical distance.
func scenarioCandidates() []record.Candidate {
	return []record.Candidate{
		candidate("A", "all_employees", "2024-01-15", 0.30),
		candidate("B", "interns", "2024-06-01", 0.31),
	}
}

func TestRerank_InternSeesRoleSpecificFirst(t *testing.T) {
	ranked, err := Rerank(scenarioCandidates(), role.Intern, role.DefaultScopes(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fmt.Sprint(ids(ranked)); got != "[B A]" {
		t.Errorf("order = %s, want [B A]", got)
	}
	if ranked[0].Rank != 1 || ranked[1].Rank != 2 {
		t.Errorf("ranks must be 1-based: %d, %d", ranked[0].Rank, ranked[1].Rank)
	}
}

func TestRerank_EmployeeSeesNewestFirst(t *testing.T) {
	ranked, err := Rerank(scenarioCandidates(), role.Employee, role.DefaultScopes(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fmt.Sprint(ids(ranked)); got != "[B A]" {
		t.Errorf("order = %s, want [B A]", got)
	}
}

func TestRerank_RoleMatchBeatsDateAndDistance(t *testing.T) {
	cands := []record.Candidate{
		candidate("general", "all_employees", "2025-12-31", 0.01),
		candidate("intern", "interns", "2020-01-01", 0.99),
	}
	ranked, err := Rerank(cands, role.Intern, role.DefaultScopes(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked[0].ChunkID != "intern" {
		t.Errorf("role-matching candidate must rank first, got %v", ids(ranked))
	}
}

func TestRerank_RecencyBeatsDistance(t *testing.T) {
	for _, r := range []role.Role{role.Employee, role.Intern} {
		t.Run(r.String(), func(t *testing.T) {
			scope := "all_employees"
			if r == role.Intern {
				scope = "interns"
			}
			cands := []record.Candidate{
				candidate("old", scope, "2023-01-01", 0.01),
				candidate("new", scope, "2024-06-01", 0.90),
			}
			ranked, err := Rerank(cands, r, role.DefaultScopes(), 2)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ranked[0].ChunkID != "new" {
				t.Errorf("newer candidate must rank first, got %v", ids(ranked))
			}
		})
	}
}

func TestRerank_DistanceBreaksRemainingTies(t *testing.T) {
	cands := []record.Candidate{
		candidate("far", "all_employees", "2024-01-15", 0.5),
		candidate("near", "all_employees", "2024-01-15", 0.1),
	}
	ranked, err := Rerank(cands, role.Manager, role.DefaultScopes(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ids(ranked)) != "[near far]" {
		t.Errorf("order = %v", ids(ranked))
	}
}

func TestRerank_StableForEqualKeys(t *testing.T) {
	cands := []record.Candidate{
		candidate("first", "all_employees", "2024-01-15", 0.2),
		candidate("second", "all_employees", "2024-01-15", 0.2),
		candidate("third", "all_employees", "2024-01-15", 0.2),
	}
	ranked, err := Rerank(cands, role.Employee, role.DefaultScopes(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fmt.Sprint(ids(ranked)) != "[first second third]" {
		t.Errorf("equal keys must keep input order, got %v", ids(ranked))
	}
}

func TestRerank_TruncatesSevenToThree(t *testing.T) {
	cands := []record.Candidate{
		candidate("c0", "all_employees", "2024-01-15", 0.10),
		candidate("c1", "interns", "2024-06-01", 0.40),
		candidate("c2", "all_employees", "2024-06-01", 0.20),
		candidate("c3", "all_employees", "2024-01-01", 0.05),
		candidate("c4", "interns", "2024-01-15", 0.15),
		candidate("c5", "all_employees", "2024-06-01", 0.35),
		candidate("c6", "managers", "2024-06-01", 0.01),
	}
	ranked, err := Rerank(cands, role.Intern, role.DefaultScopes(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3, got %d", len(ranked))
	}
	// interns first (newest first), then the newest non-matching by distance.
	if got := fmt.Sprint(ids(ranked)); got != "[c1 c4 c6]" {
		t.Errorf("order = %s, want [c1 c4 c6]", got)
	}
}

func TestRerank_TopNBeyondCount(t *testing.T) {
	ranked, err := Rerank(scenarioCandidates(), role.Employee, role.DefaultScopes(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranked) != 2 {
		t.Errorf("expected all candidates, got %d", len(ranked))
	}
}

func TestRerank_EmptyInput(t *testing.T) {
	ranked, err := Rerank(nil, role.Employee, role.DefaultScopes(), 3)
	if err != nil || len(ranked) != 0 {
		t.Fatalf("expected empty result, got %v, %v", ranked, err)
	}
}

func TestRerank_UnknownRoleFallsBackToRecency(t *testing.T) {
	ranked, err := Rerank(scenarioCandidates(), role.Unknown, role.DefaultScopes(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked[0].ChunkID != "B" {
		t.Errorf("expected recency to decide, got %v", ids(ranked))
	}
}

func TestRerank_InvalidArguments(t *testing.T) {
	if _, err := Rerank(scenarioCandidates(), role.Employee, role.DefaultScopes(), 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("top_n=0: expected ErrInvalidInput, got %v", err)
	}
	_, err := Rerank(scenarioCandidates(), role.Role("ceo"), role.DefaultScopes(), 3)
	if !errors.Is(err, domain.ErrUnsupportedRole) {
		t.Errorf("expected ErrUnsupportedRole, got %v", err)
	}
	if domain.IsRetryable(err) {
		t.Error("unsupported role must not be retryable")
	}
}

func TestRerank_MalformedDate(t *testing.T) {
	cands := append(scenarioCandidates(), candidate("bad", "interns", "not-a-date", 0.1))
	_, err := Rerank(cands, role.Intern, role.DefaultScopes(), 3)
	if !errors.Is(err, domain.ErrMalformedMetadata) {
		t.Fatalf("expected ErrMalformedMetadata, got %v", err)
	}
	var mm *domain.MalformedMetadataError
	if !errors.As(err, &mm) || mm.ID != "bad" || mm.Field != policy.FieldEffectiveDate {
		t.Errorf("error must name the offending record: %+v", mm)
	}
}

func TestRerank_ConfiguredScopeTable(t *testing.T) {
	scopes, err := role.NewScopeTable(map[string]string{"manager": "people_leads"})
	if err != nil {
		t.Fatal(err)
	}
	cands := []record.Candidate{
		candidate("general", "all_employees", "2024-06-01", 0.1),
		candidate("leads", "people_leads", "2024-01-01", 0.9),
	}
	ranked, err := Rerank(cands, role.Manager, scopes, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ranked[0].ChunkID != "leads" {
		t.Errorf("expected configured scope to match, got %v", ids(ranked))
	}
}

func TestCriteria_IsolatedComparisons(t *testing.T) {
	a := Key{RoleMismatch: 0, NegDate: -20240115, Distance: 0.9}
	b := Key{RoleMismatch: 1, NegDate: -20240601, Distance: 0.1}

	if byRoleScope(a, b) >= 0 {
		t.Error("byRoleScope: match must sort first")
	}
	if byRecency(a, b) <= 0 {
		t.Error("byRecency: newer must sort first")
	}
	if byDistance(a, b) <= 0 {
		t.Error("byDistance: nearer must sort first")
	}
	if Compare(a, b) >= 0 {
		t.Error("Compare: role match dominates")
	}
	if Compare(a, a) != 0 {
		t.Error("Compare: equal keys")
	}
}

func TestRerank_OrderingLawOnRandomInput(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	scopesPool := []string{"all_employees", "interns", "managers"}
	datesPool := []string{"2023-03-01", "2024-01-15", "2024-06-01", "2025-02-28"}

	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.IntN(12)
		cands := make([]record.Candidate, n)
		for i := range cands {
			cands[i] = candidate(fmt.Sprintf("c%d", i),
				scopesPool[rng.IntN(len(scopesPool))],
				datesPool[rng.IntN(len(datesPool))],
				float64(rng.IntN(5))/10)
		}
		r := role.All()[rng.IntN(len(role.All()))]
		topN := 1 + rng.IntN(n)

		ranked, err := Rerank(cands, r, role.DefaultScopes(), topN)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ranked) != topN {
			t.Fatalf("expected %d results, got %d", topN, len(ranked))
		}

		scope, _ := role.DefaultScopes().Scope(r)
		keys := make([]Key, len(ranked))
		for i := range ranked {
			c := record.Candidate{ChunkID: ranked[i].ChunkID, Metadata: ranked[i].Metadata, Distance: ranked[i].Distance}
			keys[i], _ = SortKey(&c, scope)
		}
		if !IsOrdered(keys) {
			t.Fatalf("output violates ordering law: %+v", keys)
		}

		// Nothing left out may precede the last kept element.
		last := keys[len(keys)-1]
		kept := map[string]bool{}
		for _, rc := range ranked {
			kept[rc.ChunkID] = true
		}
		for i := range cands {
			if kept[cands[i].ChunkID] {
				continue
			}
			k, _ := SortKey(&cands[i], scope)
			if Compare(k, last) < 0 {
				t.Fatalf("dropped %s sorts before kept %s", cands[i].ChunkID, ranked[len(ranked)-1].ChunkID)
			}
		}
	}
}

func TestIsOrdered_DetectsSwap(t *testing.T) {
	keys := []Key{{0, -20240601, 0.1}, {1, -20240115, 0.2}}
	if !IsOrdered(keys) {
		t.Fatal("expected ordered")
	}
	keys[0], keys[1] = keys[1], keys[0]
	if IsOrdered(keys) {
		t.Fatal("swap must be detected")
	}
}
