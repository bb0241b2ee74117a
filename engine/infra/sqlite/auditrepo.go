package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/core"
)

// AuditRepo persists audit events into agent_runs. Inserts are append-only.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Record(ctx context.Context, event *audit.Event) error {
	inputJSON, err := marshalOr(event.Input, "{}")
	if err != nil {
		return fmt.Errorf("sqlite: marshal event input: %w", err)
	}
	outputJSON, err := marshalOr(event.Output, "{}")
	if err != nil {
		return fmt.Errorf("sqlite: marshal event output: %w", err)
	}
	evidenceJSON, err := marshalOr(event.Evidence, "[]")
	if err != nil {
		return fmt.Errorf("sqlite: marshal event evidence: %w", err)
	}
	const q = `INSERT INTO agent_runs
		(run_id, seq, created_at, step_name, input_json, output_json, confidence, evidence_json, reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		string(event.RunID), event.Seq, createdAt.UTC().Format(time.RFC3339Nano),
		event.Step, inputJSON, outputJSON, event.Confidence, evidenceJSON, event.Reasoning)
	if err != nil {
		return fmt.Errorf("sqlite: insert audit event: %w", err)
	}
	return nil
}

// TrailByRun loads the persisted events for a run in Seq order.
func (r *AuditRepo) TrailByRun(ctx context.Context, runID string) (audit.Trail, error) {
	const q = `SELECT run_id, seq, created_at, step_name, input_json, output_json, confidence, evidence_json, reasoning
		FROM agent_runs WHERE run_id = ? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: trail by run: %w", err)
	}
	defer rows.Close()
	var trail audit.Trail
	for rows.Next() {
		var (
			e                               audit.Event
			id, createdAt                   string
			inputJSON, outputJSON, evidence string
		)
		if err := rows.Scan(&id, &e.Seq, &createdAt, &e.Step,
			&inputJSON, &outputJSON, &e.Confidence, &evidence, &e.Reasoning); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit event: %w", err)
		}
		e.RunID = core.ID(id)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse event timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(inputJSON), &e.Input); err != nil {
			return nil, fmt.Errorf("sqlite: decode event input: %w", err)
		}
		if err := json.Unmarshal([]byte(outputJSON), &e.Output); err != nil {
			return nil, fmt.Errorf("sqlite: decode event output: %w", err)
		}
		if err := json.Unmarshal([]byte(evidence), &e.Evidence); err != nil {
			return nil, fmt.Errorf("sqlite: decode event evidence: %w", err)
		}
		trail = append(trail, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter audit events: %w", err)
	}
	return trail, nil
}

func marshalOr(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(raw) == "null" {
		return empty, nil
	}
	return string(raw), nil
}
