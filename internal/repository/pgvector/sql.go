package pgvector

import "fmt"

const deleteDocumentSQL = `DELETE FROM ` + Table + ` WHERE source = $1`

const insertSQL = `
INSERT INTO ` + Table + ` (chunk_id, source, chunk_index, text, effective_date, role_scope, doc_type, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Ties on distance fall back to chunk_id so the order is total.
const searchSQL = `
SELECT chunk_id, source, chunk_index, text, effective_date, role_scope, doc_type,
       embedding <=> $1 AS distance
FROM ` + Table + `
ORDER BY embedding <=> $1, chunk_id
LIMIT $2`

func schemaSQL(dim int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
	chunk_id       TEXT PRIMARY KEY,
	source         TEXT NOT NULL,
	chunk_index    INT NOT NULL,
	text           TEXT NOT NULL,
	effective_date TEXT NOT NULL,
	role_scope     TEXT NOT NULL,
	doc_type       TEXT NOT NULL,
	embedding      vector(%[2]d) NOT NULL
);

CREATE INDEX IF NOT EXISTS %[1]s_source_idx ON %[1]s (source);
CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops);
`, Table, dim)
}
