package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailroom/mailroom/engine/store"
	"github.com/shopspring/decimal"
)

// BusinessRepo implements store.Store on top of a SQLite *sql.DB.
type BusinessRepo struct{ db *sql.DB }

func NewBusinessRepo(db *sql.DB) store.Store { return &BusinessRepo{db: db} }

// timeLayouts covers the timestamp formats seen in imported business data.
var timeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("sqlite: unrecognized timestamp %q", raw)
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: parse amount %q: %w", raw, err)
	}
	return d, nil
}

func (r *BusinessRepo) CustomerByEmail(ctx context.Context, email string) (*store.Customer, error) {
	const q = `SELECT customer_id, name, email, tier FROM customers WHERE lower(email) = lower(?) LIMIT 1`
	var c store.Customer
	if err := r.db.QueryRowContext(ctx, q, email).Scan(&c.ID, &c.Name, &c.Email, &c.Tier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: customer by email: %w", err)
	}
	return &c, nil
}

func (r *BusinessRepo) ProductByID(ctx context.Context, productID string) (*store.Product, error) {
	const q = `SELECT product_id, name, description, category, base_price, is_refundable
		FROM products WHERE product_id = ? LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, productID)
	p, err := scanProduct(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: product by id: %w", err)
	}
	return p, nil
}

func scanProduct(scan func(dest ...any) error) (*store.Product, error) {
	var p store.Product
	var price string
	var refundable int
	if err := scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &refundable); err != nil {
		return nil, err
	}
	amount, err := parseAmount(price)
	if err != nil {
		return nil, err
	}
	p.BasePrice = amount
	p.IsRefundable = refundable != 0
	return &p, nil
}

func (r *BusinessRepo) Products(ctx context.Context) ([]store.Product, error) {
	const q = `SELECT product_id, name, description, category, base_price, is_refundable
		FROM products ORDER BY product_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list products: %w", err)
	}
	defer rows.Close()
	var out []store.Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter products: %w", err)
	}
	return out, nil
}

func scanOrder(scan func(dest ...any) error) (*store.Order, error) {
	var o store.Order
	var amount, createdAt, updatedAt string
	if err := scan(&o.Number, &o.CustomerID, &o.ProductID, &o.Status, &o.TrackingNumber,
		&amount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	total, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	o.TotalAmount = total
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

const orderColumns = `order_number, customer_id, product_id, status, tracking_number,
	total_amount, created_at, updated_at`

func (r *BusinessRepo) OrdersByCustomer(ctx context.Context, customerID string) ([]store.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = ? ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: orders by customer: %w", err)
	}
	defer rows.Close()
	var out []store.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter orders: %w", err)
	}
	return out, nil
}

func (r *BusinessRepo) OrderByNumberAndCustomer(ctx context.Context, orderNumber, customerID string) (*store.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ? AND customer_id = ? LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, orderNumber, customerID)
	o, err := scanOrder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: order by number: %w", err)
	}
	return o, nil
}

func (r *BusinessRepo) ActiveSubscriptions(ctx context.Context, customerID string) ([]store.Subscription, error) {
	const q = `SELECT subscription_id, customer_id, product_id, status
		FROM subscriptions WHERE customer_id = ? AND status = 'ACTIVE'`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: active subscriptions: %w", err)
	}
	defer rows.Close()
	var out []store.Subscription
	for rows.Next() {
		var s store.Subscription
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.ProductID, &s.Status); err != nil {
			return nil, fmt.Errorf("sqlite: scan subscription: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter subscriptions: %w", err)
	}
	return out, nil
}

func (r *BusinessRepo) PricingPoliciesByTier(ctx context.Context, tier string) ([]store.PricingPolicy, error) {
	const q = `SELECT policy_name, customer_tier, max_discount_percent, approval_threshold, active
		FROM pricing_policies WHERE customer_tier = ? AND active = 1`
	rows, err := r.db.QueryContext(ctx, q, tier)
	if err != nil {
		return nil, fmt.Errorf("sqlite: pricing policies: %w", err)
	}
	defer rows.Close()
	var out []store.PricingPolicy
	for rows.Next() {
		var p store.PricingPolicy
		var active int
		if err := rows.Scan(&p.Name, &p.CustomerTier, &p.MaxDiscountPercent, &p.ApprovalThreshold, &active); err != nil {
			return nil, fmt.Errorf("sqlite: scan pricing policy: %w", err)
		}
		p.Active = active != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter pricing policies: %w", err)
	}
	return out, nil
}

func (r *BusinessRepo) RefundPolicyByProduct(ctx context.Context, productID string) (*store.RefundPolicy, error) {
	const q = `SELECT policy_id, product_id, refund_window_days, refund_percentage, requires_approval, active
		FROM refund_policies WHERE product_id = ? AND active = 1 LIMIT 1`
	var p store.RefundPolicy
	var requiresApproval, active int
	err := r.db.QueryRowContext(ctx, q, productID).Scan(
		&p.ID, &p.ProductID, &p.RefundWindowDays, &p.RefundPercentage, &requiresApproval, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: refund policy by product: %w", err)
	}
	p.RequiresApproval = requiresApproval != 0
	p.Active = active != 0
	return &p, nil
}

// InsertTicket discovers the live tickets schema and populates only the
// columns that exist, so externally managed schema drift does not break
// ticket logging. Returns the column names written.
func (r *BusinessRepo) InsertTicket(ctx context.Context, t *store.Ticket) ([]string, error) {
	cols, err := r.tableColumns(ctx, "tickets")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format("2006-01-02T15:04:05")
	available := map[string]any{
		"ticket_id":      t.ID,
		"ticket_number":  t.Number,
		"customer_email": t.CustomerEmail,
		"email_subject":  t.EmailSubject,
		"email_content":  t.EmailContent,
		"category":       t.Category,
		"status":         t.Status,
		"priority":       t.Priority,
		"created_at":     now,
		"updated_at":     now,
	}
	var names []string
	var args []any
	for _, col := range cols {
		if val, ok := available[col]; ok {
			names = append(names, col)
			args = append(args, val)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("sqlite: tickets table has no usable columns")
	}
	q := fmt.Sprintf("INSERT INTO tickets (%s) VALUES (%s)",
		strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "))
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("sqlite: insert ticket: %w", err)
	}
	return names, nil
}

func (r *BusinessRepo) tableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("sqlite: table info %s: %w", table, err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("sqlite: scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter table info: %w", err)
	}
	return cols, nil
}
