package triage

import (
	"strings"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/mail"
	"github.com/shopspring/decimal"
)

// State is the record one triage run owns and mutates step by step. Every
// field a step writes stays visible, unmodified, to all later steps.
// Confidence fields are pointers so finalize can tell "never set" from zero.
type State struct {
	RunID      core.ID    `json:"run_id"`
	Email      mail.Email `json:"email"`
	GuardFlags []string   `json:"guard_flags,omitempty"`

	Category           string   `json:"category,omitempty"`
	CategoryConfidence *float64 `json:"category_confidence,omitempty"`
	Route              string   `json:"route,omitempty"`
	RouteConfidence    *float64 `json:"route_confidence,omitempty"`
	KBContext          []string `json:"kb_context,omitempty"`
	KBConfidence       *float64 `json:"kb_confidence,omitempty"`
	Intent             string   `json:"intent,omitempty"`
	IntentConfidence   *float64 `json:"intent_confidence,omitempty"`
	IntentRationale    string   `json:"intent_rationale,omitempty"`

	Summary         string           `json:"summary,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Offers          []Offer          `json:"offers"`
	DraftedEmail    string           `json:"drafted_email,omitempty"`

	SalesConfidence   *float64 `json:"sales_confidence,omitempty"`
	SupportConfidence *float64 `json:"support_confidence,omitempty"`
	OtherConfidence   *float64 `json:"other_confidence,omitempty"`
	AvgConfidence     *float64 `json:"avg_confidence,omitempty"`

	TicketLogged   bool     `json:"ticket_logged"`
	TicketEvidence []string `json:"ticket_evidence,omitempty"`

	Refund RefundCase `json:"refund"`
}

// RefundCase is the derived sub-state the refund state machine fills in.
type RefundCase struct {
	CustomerEmail string          `json:"customer_email,omitempty"`
	OrderNumber   string          `json:"order_number,omitempty"`
	ArticleDOI    string          `json:"article_doi,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
	Rationale     string          `json:"rationale,omitempty"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	ProductID     string          `json:"product_id,omitempty"`
	ProductName   string          `json:"product_name,omitempty"`
	OrderAmount   decimal.Decimal `json:"order_amount"`
	IsRefundable  bool            `json:"is_refundable"`
	CaseID        string          `json:"case_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Message       string          `json:"message,omitempty"`
}

// Recommendation is one product suggestion from the sales flow.
type Recommendation struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Purpose   string  `json:"purpose"`
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Offer is one priced option from the sales pricing branch.
type Offer struct {
	OptionName      string          `json:"option_name"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	DiscountPercent float64         `json:"discount_percent"`
	Compliant       bool            `json:"compliant"`
	Evidence        []string        `json:"evidence"`
	Reasoning       string          `json:"reasoning"`
}

// Update is a partial state change. Nil fields are unmentioned and leave the
// state untouched; a non-nil field overwrites. Slices use non-nil empties to
// mean "set to empty".
type Update struct {
	Category           *string
	CategoryConfidence *float64
	Route              *string
	RouteConfidence    *float64
	KBContext          []string
	KBConfidence       *float64
	Intent             *string
	IntentConfidence   *float64
	IntentRationale    *string

	Summary         *string
	Recommendations []Recommendation
	Offers          []Offer
	DraftedEmail    *string

	SalesConfidence   *float64
	SupportConfidence *float64
	OtherConfidence   *float64
	AvgConfidence     *float64

	TicketLogged   *bool
	TicketEvidence []string

	Refund *RefundUpdate
}

// RefundUpdate is the refund sub-state counterpart of Update.
type RefundUpdate struct {
	CustomerEmail *string
	OrderNumber   *string
	ArticleDOI    *string
	Reason        *string
	Confidence    *float64
	Rationale     *string
	CustomerID    *string
	CustomerName  *string
	ProductID     *string
	ProductName   *string
	OrderAmount   *decimal.Decimal
	IsRefundable  *bool
	CaseID        *string
	Amount        *decimal.Decimal
	Message       *string
}

// Merge applies an update key-wise. Unmentioned fields survive; nothing is
// ever deleted.
func Merge(st *State, u Update) {
	setStr(&st.Category, u.Category)
	setF64(&st.CategoryConfidence, u.CategoryConfidence)
	setStr(&st.Route, u.Route)
	setF64(&st.RouteConfidence, u.RouteConfidence)
	if u.KBContext != nil {
		st.KBContext = u.KBContext
	}
	setF64(&st.KBConfidence, u.KBConfidence)
	setStr(&st.Intent, u.Intent)
	setF64(&st.IntentConfidence, u.IntentConfidence)
	setStr(&st.IntentRationale, u.IntentRationale)
	setStr(&st.Summary, u.Summary)
	if u.Recommendations != nil {
		st.Recommendations = u.Recommendations
	}
	if u.Offers != nil {
		st.Offers = u.Offers
	}
	setStr(&st.DraftedEmail, u.DraftedEmail)
	setF64(&st.SalesConfidence, u.SalesConfidence)
	setF64(&st.SupportConfidence, u.SupportConfidence)
	setF64(&st.OtherConfidence, u.OtherConfidence)
	setF64(&st.AvgConfidence, u.AvgConfidence)
	if u.TicketLogged != nil {
		st.TicketLogged = *u.TicketLogged
	}
	if u.TicketEvidence != nil {
		st.TicketEvidence = u.TicketEvidence
	}
	if u.Refund != nil {
		mergeRefund(&st.Refund, u.Refund)
	}
}

func mergeRefund(rc *RefundCase, u *RefundUpdate) {
	setStr(&rc.CustomerEmail, u.CustomerEmail)
	setStr(&rc.OrderNumber, u.OrderNumber)
	setStr(&rc.ArticleDOI, u.ArticleDOI)
	setStr(&rc.Reason, u.Reason)
	setF64(&rc.Confidence, u.Confidence)
	setStr(&rc.Rationale, u.Rationale)
	setStr(&rc.CustomerID, u.CustomerID)
	setStr(&rc.CustomerName, u.CustomerName)
	setStr(&rc.ProductID, u.ProductID)
	setStr(&rc.ProductName, u.ProductName)
	if u.OrderAmount != nil {
		rc.OrderAmount = *u.OrderAmount
	}
	if u.IsRefundable != nil {
		rc.IsRefundable = *u.IsRefundable
	}
	setStr(&rc.CaseID, u.CaseID)
	if u.Amount != nil {
		rc.Amount = *u.Amount
	}
	setStr(&rc.Message, u.Message)
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setF64(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func strp(v string) *string { return &v }

func f64p(v float64) *float64 { return &v }

func boolp(v bool) *bool { return &v }

func decp(v decimal.Decimal) *decimal.Decimal { return &v }

// hasAny reports whether the text contains any of the keywords.
func hasAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// truncate caps a string at n runes for audit input snapshots.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
