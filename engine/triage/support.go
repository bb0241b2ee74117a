package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/store"
)

// supportFulfillment is the support decision tree: authentication first (a
// failed lookup is terminal for the branch), then access/licensing, then
// refund-policy lookup, then a generic more-details draft.
func (s *Service) supportFulfillment(ctx context.Context, st *State) (*flow.Result[Update], error) {
	email := st.Email
	text := email.Text()

	cust, err := s.store.CustomerByEmail(ctx, email.Sender)
	if errors.Is(err, store.ErrNotFound) {
		return s.supportAuthFailure(st), nil
	}
	if err != nil {
		return nil, fmt.Errorf("triage: support customer lookup: %w", err)
	}
	evidence := []string{"customers lookup: found"}

	if hasAny(text, "access", "login", "license", "licence", "subscription") {
		return s.supportAccess(ctx, st, cust, evidence)
	}
	if hasAny(text, "refund", "unused credit", "damaged") {
		return s.supportRefundLookup(ctx, st, text, evidence)
	}
	return s.supportGeneric(st, evidence), nil
}

func (s *Service) supportAuthFailure(st *State) *flow.Result[Update] {
	intent := "User authentication failed"
	summary := "Sender email not found in customer registry. Request additional verification."
	conf := 0.85
	return &flow.Result[Update]{
		Update: Update{
			Intent:            strp(intent),
			Summary:           strp(summary),
			DraftedEmail:      strp(authFailureDraft(st.Email.Subject)),
			SupportConfidence: f64p(conf),
			Recommendations:   []Recommendation{},
			Offers:            []Offer{},
		},
		Input:      core.Input{"sender": st.Email.Sender},
		Output:     core.Output{"authenticated": false},
		Confidence: conf,
		Evidence:   []string{"customers lookup: not found"},
	}
}

func (s *Service) supportAccess(ctx context.Context, st *State, cust *store.Customer, evidence []string) (*flow.Result[Update], error) {
	intent := "Access issue around product"
	subs, err := s.store.ActiveSubscriptions(ctx, cust.ID)
	if err != nil {
		return nil, fmt.Errorf("triage: subscription lookup: %w", err)
	}
	var summary string
	var conf float64
	if len(subs) == 0 {
		summary = "No active subscription found. Access cannot be granted; route to sales for renewal."
		conf = 0.8
		evidence = append(evidence, "subscriptions: 0 active")
	} else {
		productName := subs[0].ProductID
		if prod, err := s.store.ProductByID(ctx, subs[0].ProductID); err == nil {
			productName = prod.Name
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("triage: product lookup: %w", err)
		}
		summary = fmt.Sprintf("Active subscription found for product %s. Verify license period and seat counts.", productName)
		conf = 0.78
		evidence = append(evidence, fmt.Sprintf("subscriptions: %d active", len(subs)))
	}
	return &flow.Result[Update]{
		Update: Update{
			Intent:            strp(intent),
			Summary:           strp(summary),
			SupportConfidence: f64p(conf),
			Recommendations:   []Recommendation{},
			Offers:            []Offer{},
		},
		Input:      core.Input{"customer_id": cust.ID},
		Output:     core.Output{"subs_active": len(subs)},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}

// supportRefundLookup infers the product from a name match in the email text
// and surfaces the matching refund policy as evidence for a human decision.
func (s *Service) supportRefundLookup(ctx context.Context, st *State, text string, evidence []string) (*flow.Result[Update], error) {
	intent := "Refund request"
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("triage: product listing: %w", err)
	}
	var chosen *store.Product
	for i := range products {
		if strings.Contains(text, strings.ToLower(products[i].Name)) {
			chosen = &products[i]
			break
		}
	}

	var summary string
	var conf float64
	var productID any
	if chosen == nil {
		summary = "Could not identify product for refund. Ask customer for product/order details."
		conf = 0.65
		evidence = append(evidence, "product inference: none")
	} else {
		productID = chosen.ID
		pol, err := s.store.RefundPolicyByProduct(ctx, chosen.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			summary = fmt.Sprintf("No active refund policy found for %s. Likely not eligible; provide evidence to sales rep.", chosen.Name)
			conf = 0.7
			evidence = append(evidence, "refund_policies: none")
		case err != nil:
			return nil, fmt.Errorf("triage: refund policy lookup: %w", err)
		default:
			summary = fmt.Sprintf("Refund policy found for %s: refund_percentage=%v%%. Requires approval=%v. Prepared evidence for human authorization.",
				chosen.Name, pol.RefundPercentage, pol.RequiresApproval)
			conf = 0.76
			evidence = append(evidence,
				fmt.Sprintf("refund_policy_id=%s", pol.ID),
				fmt.Sprintf("refund_percentage=%v", pol.RefundPercentage),
				fmt.Sprintf("requires_approval=%v", pol.RequiresApproval))
		}
	}
	return &flow.Result[Update]{
		Update: Update{
			Intent:            strp(intent),
			Summary:           strp(summary),
			SupportConfidence: f64p(conf),
			Recommendations:   []Recommendation{},
			Offers:            []Offer{},
		},
		Input:      core.Input{"text": truncate(text, 400)},
		Output:     core.Output{"product": productID},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}

func (s *Service) supportGeneric(st *State, evidence []string) *flow.Result[Update] {
	intent := "General support query"
	summary := "Logged support ticket. Need more details to proceed."
	conf := 0.6
	return &flow.Result[Update]{
		Update: Update{
			Intent:            strp(intent),
			Summary:           strp(summary),
			DraftedEmail:      strp(genericSupportDraft(st.Email.Subject)),
			SupportConfidence: f64p(conf),
			Recommendations:   []Recommendation{},
			Offers:            []Offer{},
		},
		Input:      core.Input{"text": truncate(st.Email.Text(), 300)},
		Output:     core.Output{"intent": intent},
		Confidence: conf,
		Evidence:   evidence,
	}
}
