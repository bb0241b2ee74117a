package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/llm"
	"github.com/mailroom/mailroom/engine/store"
	"github.com/shopspring/decimal"
)

// unidentified marks a refund field the extraction step could not resolve.
const unidentified = "unidentified"

// placeholderEmails are extraction outputs that must be replaced with the
// envelope sender.
var placeholderEmails = map[string]struct{}{
	unidentified: {},
	"unknown":    {},
	"n/a":        {},
}

// refundExtract pulls the refund request details from the email. The oracle
// path parses leniently; the fallback derives the reason from the same
// keyword groups the support intent heuristics use. A missing or placeholder
// customer email is always replaced with the envelope sender.
func (s *Service) refundExtract(ctx context.Context, st *State) (*flow.Result[Update], error) {
	email := st.Email
	if !s.oracle.Available() {
		_, conf, rationale := fallbackSupportIntent(email.Text())
		update := &RefundUpdate{
			CustomerEmail: strp(email.Sender),
			OrderNumber:   strp(unidentified),
			ArticleDOI:    strp(unidentified),
			Reason:        strp(rationale),
			Confidence:    f64p(conf),
			Rationale:     strp(rationale),
		}
		return &flow.Result[Update]{
			Update:     Update{Refund: update},
			Input:      core.Input{"subject": email.Subject},
			Output:     core.Output{"customer_email": email.Sender, "order_number": unidentified},
			Confidence: conf,
			Evidence:   []string{"heuristic extraction"},
			Reasoning:  rationale,
		}, nil
	}

	prompt := refundExtractPrompt(email)
	resp, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("triage: refund extraction completion: %w", err)
	}
	customerEmail := email.Sender
	orderNumber, articleDOI, reason := unidentified, unidentified, unidentified
	conf, rationale := 0.3, "Could not parse model output; defaulted."
	if parsed, ok := llm.ExtractJSON(resp); ok {
		if v := strings.TrimSpace(parsed.Get("customerEmailId").String()); v != "" {
			if _, placeholder := placeholderEmails[strings.ToLower(v)]; !placeholder {
				customerEmail = v
			}
		}
		orderNumber = fieldOr(parsed.Get("purchaseOrderNumber").String(), unidentified)
		articleDOI = fieldOr(parsed.Get("articleDoi").String(), unidentified)
		reason = fieldOr(parsed.Get("refundReason").String(), unidentified)
		conf = 0.6
		if v := parsed.Get("confidence"); v.Exists() {
			conf = v.Float()
		}
		rationale = fieldOr(parsed.Get("rationale").String(), unidentified)
	}
	update := &RefundUpdate{
		CustomerEmail: strp(customerEmail),
		OrderNumber:   strp(orderNumber),
		ArticleDOI:    strp(articleDOI),
		Reason:        strp(reason),
		Confidence:    f64p(conf),
		Rationale:     strp(rationale),
	}
	return &flow.Result[Update]{
		Update:     Update{Refund: update},
		Input:      core.Input{"subject": email.Subject},
		Output:     core.Output{"customer_email": customerEmail, "order_number": orderNumber, "rationale": rationale},
		Confidence: conf,
		Evidence:   []string{"LLM extraction"},
		Reasoning:  rationale,
	}, nil
}

func fieldOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// refundValidate resolves customer, order and product. Any lookup miss (or a
// cancelled order) forces not-refundable with a validation rationale; it
// never propagates past the step boundary.
func (s *Service) refundValidate(ctx context.Context, st *State) (*flow.Result[Update], error) {
	rc := st.Refund

	fail := func(rationale string) *flow.Result[Update] {
		update := &RefundUpdate{
			IsRefundable: boolp(false),
			OrderAmount:  decp(decimal.Zero),
			Rationale:    strp(rationale),
		}
		return &flow.Result[Update]{
			Update:     Update{Refund: update},
			Input:      core.Input{"customer_email": rc.CustomerEmail, "order_number": rc.OrderNumber},
			Output:     core.Output{"is_refundable": false, "rationale": rationale},
			Confidence: 0.3,
			Evidence:   []string{"business records lookup"},
			Reasoning:  rationale,
		}
	}

	cust, err := s.store.CustomerByEmail(ctx, rc.CustomerEmail)
	if errors.Is(err, store.ErrNotFound) {
		return fail("Could not validate refund eligibility due to missing or invalid data."), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: refund customer lookup: %w", err)
	}
	order, err := s.store.OrderByNumberAndCustomer(ctx, rc.OrderNumber, cust.ID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("Could not validate refund eligibility due to missing or invalid data."), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: refund order lookup: %w", err)
	}
	if order.Status == "cancelled" {
		return fail(fmt.Sprintf("Order %s is cancelled and not eligible for refund.", order.Number)), nil
	}
	product, err := s.store.ProductByID(ctx, order.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return fail("Could not validate refund eligibility due to missing or invalid data."), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: refund product lookup: %w", err)
	}

	rationale := fmt.Sprintf("Order found with status %s. Product refundable: %v.", order.Status, product.IsRefundable)
	update := &RefundUpdate{
		CustomerID:   strp(cust.ID),
		CustomerName: strp(cust.Name),
		ProductID:    strp(product.ID),
		ProductName:  strp(product.Name),
		OrderAmount:  decp(order.TotalAmount),
		IsRefundable: boolp(product.IsRefundable),
		Rationale:    strp(rationale),
	}
	return &flow.Result[Update]{
		Update: Update{Refund: update},
		Input:  core.Input{"customer_email": rc.CustomerEmail, "order_number": rc.OrderNumber},
		Output: core.Output{
			"customer_id":   cust.ID,
			"product_id":    product.ID,
			"is_refundable": product.IsRefundable,
			"order_amount":  order.TotalAmount.String(),
		},
		Confidence: 1.0,
		Evidence:   []string{"business records lookup"},
		Reasoning:  rationale,
	}, nil
}

// refundCaseCreate allocates an opaque case token for refundable requests.
// Non-refundable requests are an audited skip; no state fields are set.
func (s *Service) refundCaseCreate(_ context.Context, st *State) (*flow.Result[Update], error) {
	rc := st.Refund
	if !rc.IsRefundable {
		return &flow.Result[Update]{
			Input:      core.Input{"customer_email": rc.CustomerEmail},
			Output:     core.Output{"skipped": true},
			Confidence: 1.0,
			Evidence:   []string{"case registry"},
			Reasoning:  "No refund case created; request is not refundable.",
		}, nil
	}
	caseID := strings.ReplaceAll(uuid.NewString(), "-", "")
	rationale := fmt.Sprintf("Created refund case %s for %s.", caseID, rc.CustomerEmail)
	return &flow.Result[Update]{
		Update:     Update{Refund: &RefundUpdate{CaseID: strp(caseID)}},
		Input:      core.Input{"customer_email": rc.CustomerEmail},
		Output:     core.Output{"case_id": caseID},
		Confidence: 1.0,
		Evidence:   []string{"case registry"},
		Reasoning:  rationale,
	}, nil
}

// refundCalculate applies the policy window and percentage. The window check
// is date-only; a request exactly on the window boundary is still allowed.
// Lookup misses revoke refundability and flag the case for manual review.
func (s *Service) refundCalculate(ctx context.Context, st *State) (*flow.Result[Update], error) {
	rc := st.Refund
	if !rc.IsRefundable {
		return &flow.Result[Update]{
			Input:      core.Input{"customer_email": rc.CustomerEmail},
			Output:     core.Output{"refund_amount": "0", "skipped": true},
			Confidence: 1.0,
			Evidence:   []string{"refund policy"},
			Reasoning:  "No calculation; request is not refundable.",
		}, nil
	}

	manualReview := func() *flow.Result[Update] {
		message := "Could not process refund. Please check manually."
		update := &RefundUpdate{
			IsRefundable: boolp(false),
			Amount:       decp(decimal.Zero),
			Message:      strp(message),
		}
		return &flow.Result[Update]{
			Update:     Update{Refund: update},
			Input:      core.Input{"customer_email": rc.CustomerEmail},
			Output:     core.Output{"refund_amount": "0", "rationale": message},
			Confidence: 0.3,
			Evidence:   []string{"refund policy"},
			Reasoning:  message,
		}
	}

	order, err := s.store.OrderByNumberAndCustomer(ctx, rc.OrderNumber, rc.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		return manualReview(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: refund calculate order lookup: %w", err)
	}
	policy, err := s.store.RefundPolicyByProduct(ctx, rc.ProductID)
	if errors.Is(err, store.ErrNotFound) {
		return manualReview(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: refund policy lookup: %w", err)
	}

	daysElapsed := daysBetween(order.CreatedAt, s.now())
	refundable := policy.RefundWindowDays >= daysElapsed
	amount := decimal.Zero
	message := "Refund cannot be processed as refund window has passed."
	if refundable {
		amount = rc.OrderAmount.Mul(decimal.NewFromFloat(policy.RefundPercentage)).Div(decimal.NewFromInt(100))
		message = "Allowed refund amount is " + amount.String()
	}
	update := &RefundUpdate{
		IsRefundable: boolp(refundable),
		Amount:       decp(amount),
		Message:      strp(message),
	}
	return &flow.Result[Update]{
		Update: Update{Refund: update},
		Input:  core.Input{"customer_email": rc.CustomerEmail, "order_number": rc.OrderNumber},
		Output: core.Output{
			"refund_amount": amount.String(),
			"days_elapsed":  daysElapsed,
			"rationale":     message,
		},
		Confidence: 1.0,
		Evidence:   []string{"refund policy"},
		Reasoning:  message,
	}, nil
}

// refundNotify emits the fixed acknowledgement for approved cases.
func (s *Service) refundNotify(_ context.Context, st *State) (*flow.Result[Update], error) {
	rc := st.Refund
	if !rc.IsRefundable {
		return &flow.Result[Update]{
			Input:      core.Input{"customer_email": rc.CustomerEmail},
			Output:     core.Output{"notified": false},
			Confidence: 1.0,
			Evidence:   []string{"notification"},
			Reasoning:  "No notification; request is not refundable.",
		}, nil
	}
	message := "Notification email sent to example@example.com for refund approval."
	return &flow.Result[Update]{
		Input:      core.Input{"customer_email": rc.CustomerEmail},
		Output:     core.Output{"notified": true},
		Confidence: 1.0,
		Evidence:   []string{"notification"},
		Reasoning:  message,
	}, nil
}

// daysBetween counts whole calendar days between two instants, ignoring the
// time-of-day component of both.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
