// Package bundle serializes ranked chunks into the context handed to answer generation.
package bundle

import (
	"strings"

	"github.com/kailas-cloud/policyrag/internal/domain/record"
)

const separator = "---------------------------------------------------------"

// Entry is one ranked chunk with the metadata needed for citation.
type Entry struct {
	Rank          int     `json:"rank"`
	Source        string  `json:"source"`
	ChunkID       string  `json:"chunk_id"`
	EffectiveDate string  `json:"effective_date"`
	RoleScope     string  `json:"role_scope"`
	DocType       string  `json:"doc_type"`
	Text          string  `json:"text"`
	Distance      float64 `json:"distance"`
}

// Bundle is the ordered context for a single query.
type Bundle struct {
	Query   string  `json:"query"`
	Entries []Entry `json:"entries"`
}

// Assemble copies ranked chunks into a bundle without reordering or truncation.
func Assemble(query string, ranked []record.RankedChunk) Bundle {
	entries := make([]Entry, len(ranked))
	for i, rc := range ranked {
		entries[i] = Entry{
			Rank:          rc.Rank,
			Source:        rc.SourceDocumentID,
			ChunkID:       rc.ChunkID,
			EffectiveDate: rc.Metadata.EffectiveDate,
			RoleScope:     rc.Metadata.RoleScope,
			DocType:       rc.Metadata.DocType,
			Text:          rc.Text,
			Distance:      rc.Distance,
		}
	}
	return Bundle{Query: query, Entries: entries}
}

// Len returns the number of entries.
func (b Bundle) Len() int { return len(b.Entries) }

// Sources returns distinct source documents in rank order.
func (b Bundle) Sources() []string {
	seen := make(map[string]bool, len(b.Entries))
	out := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		out = append(out, e.Source)
	}
	return out
}

// Render formats the bundle as plain-text document blocks.
func (b Bundle) Render() string {
	var sb strings.Builder
	for _, e := range b.Entries {
		sb.WriteString("\n[DOCUMENT]\n")
		sb.WriteString("filename: " + e.Source + "\n")
		sb.WriteString("effective_date: " + e.EffectiveDate + "\n")
		sb.WriteString("role_scope: " + e.RoleScope + "\n")
		sb.WriteString("doc_type: " + e.DocType + "\n")
		sb.WriteString("\nTEXT:\n")
		sb.WriteString(e.Text)
		sb.WriteString("\n" + separator + "\n")
	}
	return sb.String()
}
