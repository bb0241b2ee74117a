package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/knowledge"
	"github.com/mailroom/mailroom/engine/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, &Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, ApplyMigrations(ctx, db))
	return db
}

func seedBusiness(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO customers (customer_id, name, email, tier) VALUES (?, ?, ?, ?)`,
			[]any{"CUST-001", "Dana Reyes", "dana@example.com", "Premium"}},
		{`INSERT INTO products (product_id, name, description, category, base_price, is_refundable) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"PROD-001", "Analytics Suite", "Dashboards", "Software", "1000", 1}},
		{`INSERT INTO products (product_id, name, description, category, base_price, is_refundable) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"PROD-002", "Starter Plan", "Entry tier", "Software", "99.50", 0}},
		{`INSERT INTO orders (order_number, customer_id, product_id, status, tracking_number, total_amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]any{"ORD-1001", "CUST-001", "PROD-001", "DELIVERED", "TRK-9", "1000", "2026-08-01T10:00:00", "2026-08-02T10:00:00"}},
		{`INSERT INTO subscriptions (subscription_id, customer_id, product_id, status) VALUES (?, ?, ?, ?)`,
			[]any{"SUB-001", "CUST-001", "PROD-002", "ACTIVE"}},
		{`INSERT INTO subscriptions (subscription_id, customer_id, product_id, status) VALUES (?, ?, ?, ?)`,
			[]any{"SUB-002", "CUST-001", "PROD-001", "CANCELLED"}},
		{`INSERT INTO pricing_policies (policy_name, customer_tier, max_discount_percent, approval_threshold, active) VALUES (?, ?, ?, ?, ?)`,
			[]any{"premium-default", "Premium", 10, 15, 1}},
		{`INSERT INTO refund_policies (policy_id, product_id, refund_window_days, refund_percentage, requires_approval, active) VALUES (?, ?, ?, ?, ?, ?)`,
			[]any{"RPOL-001", "PROD-001", 30, 50, 1, 1}},
	}
	for _, s := range stmts {
		_, err := db.ExecContext(ctx, s.q, s.args...)
		require.NoError(t, err)
	}
}

func TestBusinessRepo_Lookups(t *testing.T) {
	db := openTestDB(t)
	seedBusiness(t, db)
	repo := NewBusinessRepo(db)
	ctx := context.Background()

	t.Run("Should find customer by email case-insensitively", func(t *testing.T) {
		c, err := repo.CustomerByEmail(ctx, "DANA@example.com")
		require.NoError(t, err)
		assert.Equal(t, "CUST-001", c.ID)
		assert.Equal(t, "Premium", c.Tier)
	})

	t.Run("Should return ErrNotFound for unknown customer", func(t *testing.T) {
		_, err := repo.CustomerByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Should parse product price as decimal", func(t *testing.T) {
		p, err := repo.ProductByID(ctx, "PROD-002")
		require.NoError(t, err)
		assert.True(t, p.BasePrice.Equal(decimal.RequireFromString("99.50")))
		assert.False(t, p.IsRefundable)
	})

	t.Run("Should list products in id order", func(t *testing.T) {
		products, err := repo.Products(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "PROD-001", products[0].ID)
	})

	t.Run("Should load order with parsed timestamps", func(t *testing.T) {
		o, err := repo.OrderByNumberAndCustomer(ctx, "ORD-1001", "CUST-001")
		require.NoError(t, err)
		assert.Equal(t, "DELIVERED", o.Status)
		assert.Equal(t, 2026, o.CreatedAt.Year())
		assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("Should not match order owned by another customer", func(t *testing.T) {
		_, err := repo.OrderByNumberAndCustomer(ctx, "ORD-1001", "CUST-999")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Should only return active subscriptions", func(t *testing.T) {
		subs, err := repo.ActiveSubscriptions(ctx, "CUST-001")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "SUB-001", subs[0].ID)
	})

	t.Run("Should load pricing policies for tier", func(t *testing.T) {
		policies, err := repo.PricingPoliciesByTier(ctx, "Premium")
		require.NoError(t, err)
		require.Len(t, policies, 1)
		assert.Equal(t, 10.0, policies[0].MaxDiscountPercent)
		assert.Equal(t, 15.0, policies[0].ApprovalThreshold)
	})

	t.Run("Should load active refund policy for product", func(t *testing.T) {
		p, err := repo.RefundPolicyByProduct(ctx, "PROD-001")
		require.NoError(t, err)
		assert.Equal(t, 30, p.RefundWindowDays)
		assert.Equal(t, 50.0, p.RefundPercentage)
	})

	t.Run("Should return ErrNotFound when no refund policy exists", func(t *testing.T) {
		_, err := repo.RefundPolicyByProduct(ctx, "PROD-002")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBusinessRepo_InsertTicket(t *testing.T) {
	db := openTestDB(t)
	repo := NewBusinessRepo(db)
	ctx := context.Background()

	t.Run("Should insert ticket and report populated columns", func(t *testing.T) {
		fields, err := repo.InsertTicket(ctx, &store.Ticket{
			ID:            "tid-1",
			Number:        "TCK-AB12CD34",
			CustomerEmail: "dana@example.com",
			EmailSubject:  "Refund request",
			EmailContent:  "Please refund order ORD-1001",
			Category:      "Support",
			Status:        "OPEN",
			Priority:      "HIGH",
		})
		require.NoError(t, err)
		assert.Contains(t, fields, "ticket_number")
		assert.Contains(t, fields, "customer_email")

		var number, priority string
		err = db.QueryRowContext(ctx,
			`SELECT ticket_number, priority FROM tickets WHERE ticket_id = ?`, "tid-1").
			Scan(&number, &priority)
		require.NoError(t, err)
		assert.Equal(t, "TCK-AB12CD34", number)
		assert.Equal(t, "HIGH", priority)
	})

	t.Run("Should survive schema drift by skipping missing columns", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `ALTER TABLE tickets DROP COLUMN priority`)
		require.NoError(t, err)
		fields, err := repo.InsertTicket(ctx, &store.Ticket{
			ID:            "tid-2",
			Number:        "TCK-EF56GH78",
			CustomerEmail: "dana@example.com",
			Category:      "Sales",
			Status:        "OPEN",
			Priority:      "LOW",
		})
		require.NoError(t, err)
		assert.NotContains(t, fields, "priority")
		assert.Contains(t, fields, "ticket_id")
	})
}

func TestAuditRepo_RecordAndLoad(t *testing.T) {
	db := openTestDB(t)
	repo := NewAuditRepo(db)
	ctx := context.Background()

	t.Run("Should round-trip events in sequence order", func(t *testing.T) {
		runID := core.MustNewID()
		events := []*audit.Event{
			{RunID: runID, Seq: 1, Step: "CLASSIFY",
				Input:      core.Input{"subject": "refund"},
				Output:     core.Output{"category": "Support"},
				Confidence: 0.78,
				Evidence:   []string{"keyword: refund"},
				Reasoning:  "matched support keywords",
				CreatedAt:  time.Now().UTC()},
			{RunID: runID, Seq: 2, Step: "ROUTE",
				Output:     core.Output{"route": "Support workflow"},
				Confidence: 0.9,
				CreatedAt:  time.Now().UTC()},
		}
		for _, e := range events {
			require.NoError(t, repo.Record(ctx, e))
		}
		trail, err := repo.TrailByRun(ctx, string(runID))
		require.NoError(t, err)
		require.Len(t, trail, 2)
		assert.Equal(t, "CLASSIFY", trail[0].Step)
		assert.Equal(t, 0.78, trail[0].Confidence)
		assert.Equal(t, []string{"keyword: refund"}, trail[0].Evidence)
		assert.Equal(t, "Support", trail[0].Output["category"])
		assert.Equal(t, 2, trail[1].Seq)
	})

	t.Run("Should store empty payloads as empty JSON", func(t *testing.T) {
		runID := core.MustNewID()
		require.NoError(t, repo.Record(ctx, &audit.Event{RunID: runID, Seq: 1, Step: "PRESENT", Confidence: 0.95}))
		var inputJSON, evidenceJSON string
		err := db.QueryRowContext(ctx,
			`SELECT input_json, evidence_json FROM agent_runs WHERE run_id = ?`, string(runID)).
			Scan(&inputJSON, &evidenceJSON)
		require.NoError(t, err)
		assert.Equal(t, "{}", inputJSON)
		assert.Equal(t, "[]", evidenceJSON)
	})
}

func TestKnowledgeRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewKnowledgeRepo(db)
	ctx := context.Background()

	t.Run("Should store documents and list chunks in storage order", func(t *testing.T) {
		docID, err := repo.AddDocument(ctx, "faq.md", []knowledge.Chunk{
			{Text: "refund policy allows thirty days", Embedding: []float32{0.1, 0.2}},
			{Text: "pricing tiers for premium customers"},
		})
		require.NoError(t, err)
		assert.Positive(t, docID)

		chunks, err := repo.ListChunks(ctx)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, docID, chunks[0].DocID)
		assert.Equal(t, []float32{0.1, 0.2}, chunks[0].Embedding)
		assert.Nil(t, chunks[1].Embedding)
	})

	t.Run("Should keep chunks from separate documents ordered by insertion", func(t *testing.T) {
		_, err := repo.AddDocument(ctx, "handbook.md", []knowledge.Chunk{{Text: "escalation handbook"}})
		require.NoError(t, err)
		chunks, err := repo.ListChunks(ctx)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "escalation handbook", chunks[2].Text)
	})
}
