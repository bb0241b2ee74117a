package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Business records are externally owned reference data; the engine reads
// them by natural key and only ever inserts tickets.

type Customer struct {
	ID    string
	Name  string
	Email string
	Tier  string
}

type Product struct {
	ID           string
	Name         string
	Description  string
	Category     string
	BasePrice    decimal.Decimal
	IsRefundable bool
}

type Order struct {
	Number         string
	CustomerID     string
	ProductID      string
	Status         string
	TrackingNumber string
	TotalAmount    decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Subscription struct {
	ID         string
	CustomerID string
	ProductID  string
	Status     string
}

type PricingPolicy struct {
	Name               string
	CustomerTier       string
	MaxDiscountPercent float64
	ApprovalThreshold  float64
	Active             bool
}

type RefundPolicy struct {
	ID               string
	ProductID        string
	RefundWindowDays int
	RefundPercentage float64
	RequiresApproval bool
	Active           bool
}

// Ticket is the only record the engine writes. Creation is not idempotent:
// re-running the same email inserts a fresh ticket.
type Ticket struct {
	ID            string
	Number        string
	CustomerEmail string
	EmailSubject  string
	EmailContent  string
	Category      string
	Status        string
	Priority      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
