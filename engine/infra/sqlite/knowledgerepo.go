package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailroom/mailroom/engine/knowledge"
)

// KnowledgeRepo stores knowledge documents and their chunks. Embeddings are
// kept as JSON arrays so the column stays NULL for lexical-only deployments.
type KnowledgeRepo struct{ db *sql.DB }

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo { return &KnowledgeRepo{db: db} }

func (r *KnowledgeRepo) ListChunks(ctx context.Context) ([]knowledge.Chunk, error) {
	const q = `SELECT chunk_id, doc_id, chunk_text, embedding_json FROM kb_chunks ORDER BY chunk_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list chunks: %w", err)
	}
	defer rows.Close()
	var out []knowledge.Chunk
	for rows.Next() {
		var c knowledge.Chunk
		var embedding sql.NullString
		if err := rows.Scan(&c.ID, &c.DocID, &c.Text, &embedding); err != nil {
			return nil, fmt.Errorf("sqlite: scan chunk: %w", err)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &c.Embedding); err != nil {
				return nil, fmt.Errorf("sqlite: decode chunk embedding: %w", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter chunks: %w", err)
	}
	return out, nil
}

// AddDocument inserts the document row and all chunks in one transaction and
// returns the new document id.
func (r *KnowledgeRepo) AddDocument(ctx context.Context, filename string, chunks []knowledge.Chunk) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin add document: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO kb_documents (filename, uploaded_at) VALUES (?, ?)`,
		filename, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: document id: %w", err)
	}
	for _, c := range chunks {
		var embedding any
		if len(c.Embedding) > 0 {
			raw, err := json.Marshal(c.Embedding)
			if err != nil {
				return 0, fmt.Errorf("sqlite: encode chunk embedding: %w", err)
			}
			embedding = string(raw)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kb_chunks (doc_id, chunk_text, embedding_json) VALUES (?, ?, ?)`,
			docID, c.Text, embedding); err != nil {
			return 0, fmt.Errorf("sqlite: insert chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit add document: %w", err)
	}
	return docID, nil
}
