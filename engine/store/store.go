package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by every lookup that matches no row. Callers treat
// it as a recoverable condition, never as a run failure.
var ErrNotFound = errors.New("store: record not found")

// Store is the read-mostly port over the business database. Lookups are
// keyed by natural identifiers and return the first match when duplicates
// exist; callers must tolerate that ambiguity.
type Store interface {
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
	ProductByID(ctx context.Context, productID string) (*Product, error)
	Products(ctx context.Context) ([]Product, error)
	OrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	OrderByNumberAndCustomer(ctx context.Context, orderNumber, customerID string) (*Order, error)
	ActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)
	PricingPoliciesByTier(ctx context.Context, tier string) ([]PricingPolicy, error)
	RefundPolicyByProduct(ctx context.Context, productID string) (*RefundPolicy, error)

	// InsertTicket appends a ticket, populating only the columns the target
	// schema actually has, and reports which fields were written.
	InsertTicket(ctx context.Context, ticket *Ticket) ([]string, error)
}
