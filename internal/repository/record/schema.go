// Package record persists chunk records in Valkey/Redis hashes indexed for KNN search.
package record

import (
	"strconv"

	"github.com/kailas-cloud/policyrag/internal/db"
	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
)

// IndexName is the FT index over all chunk hashes.
const IndexName = domain.KeyPrefix + "idx"

var (
	chunkPrefix    = domain.KeyPrefix + "chunk:"
	documentPrefix = domain.KeyPrefix + "doc:"
)

// Hash field names.
const (
	fieldText       = "text"
	fieldSource     = "source"
	fieldChunkID    = "chunk_id"
	fieldChunkIndex = "chunk_index"
	fieldVector     = "vector"
)

var returnFields = []string{
	fieldText, fieldSource, fieldChunkID, fieldChunkIndex,
	policy.FieldEffectiveDate, policy.FieldRoleScope, policy.FieldDocType,
}

// Keys carry the document id as a hash tag so a document's chunks and its
// member set share a cluster slot and can be written in one transaction.
func chunkKey(documentID, chunkID string) string {
	return chunkPrefix + "{" + documentID + "}:" + chunkID
}

func documentKey(documentID string) string {
	return documentPrefix + "{" + documentID + "}"
}

func indexDefinition(dim int, algo db.VectorAlgorithm) (*db.IndexDefinition, error) {
	return db.NewIndex(IndexName).
		Prefix(chunkPrefix).
		Tag(fieldSource, policy.FieldRoleScope, policy.FieldDocType).
		Vector(fieldVector, dim, algo, db.DistanceCosine).
		Build()
}

func toHash(rec *domrec.Record) map[string]string {
	ch := rec.Chunk()
	m := rec.Metadata().Fields()
	m[fieldText] = ch.Text()
	m[fieldSource] = ch.SourceDocumentID()
	m[fieldChunkID] = ch.ID()
	m[fieldChunkIndex] = strconv.Itoa(ch.Index())
	m[fieldVector] = db.EncodeVector(rec.Vector())
	return m
}

func fromHash(key string, m map[string]string, distance float64) (domrec.Candidate, error) {
	id := m[fieldChunkID]
	if id == "" {
		id = key
	}
	idx, err := strconv.Atoi(m[fieldChunkIndex])
	if err != nil {
		return domrec.Candidate{}, domain.NewMalformedMetadata(id, fieldChunkIndex, m[fieldChunkIndex])
	}
	return domrec.Candidate{
		ChunkID:          id,
		SourceDocumentID: m[fieldSource],
		ChunkIndex:       idx,
		Text:             m[fieldText],
		Metadata:         policy.FromFields(m),
		// float rounding can put an identical vector a hair below zero
		Distance: max(distance, 0),
	}, nil
}
