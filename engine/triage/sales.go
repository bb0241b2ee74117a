package triage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/store"
	"github.com/shopspring/decimal"
)

const (
	defaultMaxDiscount       = 10.0
	defaultApprovalThreshold = 15.0
)

// salesFulfillment is the sales decision tree, evaluated in fixed priority
// order: order status, then pricing/bundling, then product recommendation.
// The first matching branch wins.
func (s *Service) salesFulfillment(ctx context.Context, st *State) (*flow.Result[Update], error) {
	email := st.Email
	text := email.Text()

	cust, err := s.store.CustomerByEmail(ctx, email.Sender)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("triage: sales customer lookup: %w", err)
	}
	tier := "Standard"
	if cust != nil {
		tier = cust.Tier
	}
	evidence := []string{fmt.Sprintf("Customer tier: %s", tier)}

	if st.Intent == "Order related query" || (hasAny(text, "order") && hasAny(text, "where", "status", "track")) {
		return s.salesOrderStatus(ctx, st, cust, evidence)
	}
	if st.Intent == "Best price offer and bundling related query" ||
		hasAny(text, "price", "discount", "offer", "bundle", "bundling", "quote") {
		return s.salesPricing(ctx, tier, evidence)
	}
	return s.salesRecommend(ctx, st, text, evidence)
}

func (s *Service) salesOrderStatus(ctx context.Context, st *State, cust *store.Customer, evidence []string) (*flow.Result[Update], error) {
	intent := "Order related query"
	var orders []store.Order
	if cust != nil {
		var err error
		orders, err = s.store.OrdersByCustomer(ctx, cust.ID)
		if err != nil {
			return nil, fmt.Errorf("triage: sales order lookup: %w", err)
		}
	}
	summary := "No order found for this customer in orders table."
	if len(orders) > 0 {
		top := orders[0]
		summary = fmt.Sprintf("Found order %s status=%s tracking=%s.", top.Number, top.Status, top.TrackingNumber)
	}
	evidence = append(evidence, fmt.Sprintf("orders: %d rows", len(orders)))
	conf := 0.8
	return &flow.Result[Update]{
		Update: Update{
			Intent:          strp(intent),
			Summary:         strp(summary),
			Recommendations: []Recommendation{},
			Offers:          []Offer{},
			SalesConfidence: f64p(conf),
		},
		Input:      core.Input{"text": truncate(st.Email.Text(), 300)},
		Output:     core.Output{"intent": intent},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}

// salesPricing proposes discounted offers over the 5 lowest-priced catalog
// products. The discount is min(policy max, 0.8*policy max) and an offer is
// compliant only below the approval threshold.
func (s *Service) salesPricing(ctx context.Context, tier string, evidence []string) (*flow.Result[Update], error) {
	intent := "Best price offer and bundling related query"
	maxDisc := defaultMaxDiscount
	approvalThr := defaultApprovalThreshold
	policies, err := s.store.PricingPoliciesByTier(ctx, tier)
	if err != nil {
		return nil, fmt.Errorf("triage: pricing policy lookup: %w", err)
	}
	if len(policies) > 0 {
		p := policies[0]
		maxDisc = p.MaxDiscountPercent
		approvalThr = p.ApprovalThreshold
		evidence = append(evidence, fmt.Sprintf("pricing_policy: %s max_discount=%v approval_threshold=%v",
			p.Name, maxDisc, approvalThr))
	}

	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("triage: product listing: %w", err)
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].BasePrice.LessThan(products[j].BasePrice)
	})
	if len(products) > 5 {
		products = products[:5]
	}

	disc := math.Min(maxDisc, 0.8*maxDisc)
	compliant := disc <= maxDisc && disc < approvalThr
	factor := decimal.NewFromFloat(1 - disc/100)
	offers := make([]Offer, 0, len(products))
	for _, p := range products {
		offers = append(offers, Offer{
			OptionName:      fmt.Sprintf("%s (bundle-ready)", p.Name),
			TotalPrice:      p.BasePrice.Mul(factor).Round(2),
			DiscountPercent: disc,
			Compliant:       compliant,
			Evidence: []string{
				fmt.Sprintf("base_price=%s", p.BasePrice),
				fmt.Sprintf("tier=%s", tier),
				fmt.Sprintf("max_discount=%v", maxDisc),
				fmt.Sprintf("approval_threshold=%v", approvalThr),
			},
			Reasoning: "Discount proposed within policy limits; if approval needed, route to human approval.",
		})
	}
	summary := "Prepared top pricing/bundling options honoring discount policy."
	conf := 0.77
	return &flow.Result[Update]{
		Update: Update{
			Intent:          strp(intent),
			Summary:         strp(summary),
			Recommendations: []Recommendation{},
			Offers:          offers,
			SalesConfidence: f64p(conf),
		},
		Input:      core.Input{"tier": tier},
		Output:     core.Output{"offers": len(offers)},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}

// salesRecommend scores catalog products by keyword overlap with the email
// and drafts clarifying questions when the customer states requirements.
func (s *Service) salesRecommend(ctx context.Context, st *State, text string, evidence []string) (*flow.Result[Update], error) {
	intent := "Specific product related inquiry"
	products, err := s.store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("triage: product listing: %w", err)
	}

	queryWords := wordSet(text)
	type scored struct {
		product store.Product
		score   float64
	}
	ranked := make([]scored, 0, len(products))
	for _, p := range products {
		words := wordSet(strings.ToLower(p.Name + " " + p.Description + " " + p.Category))
		shared := 0
		for w := range queryWords {
			if _, ok := words[w]; ok {
				shared++
			}
		}
		ranked = append(ranked, scored{product: p, score: float64(shared) / math.Max(1, float64(len(queryWords)))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	recs := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		recs = append(recs, Recommendation{
			ProductID: r.product.ID,
			Name:      r.product.Name,
			Purpose:   fmt.Sprintf("Matches category %s", r.product.Category),
			Score:     math.Min(1.0, r.score*3),
			Reasoning: "Keyword match between email and product metadata; refine with KB/LLM when available.",
		})
	}

	summary := "Recommended products based on customer ask and product catalog evidence."
	conf := 0.5
	if len(recs) > 0 {
		conf = 0.7
	}
	update := Update{
		Intent:          strp(intent),
		Summary:         strp(summary),
		Recommendations: recs,
		Offers:          []Offer{},
		SalesConfidence: f64p(conf),
	}
	if hasAny(text, "need", "requirement") {
		update.DraftedEmail = strp(clarifyingDraft(st.Email.Subject))
	}
	return &flow.Result[Update]{
		Update:     update,
		Input:      core.Input{"subject": st.Email.Subject},
		Output:     core.Output{"recs": len(recs)},
		Confidence: conf,
		Evidence:   evidence,
	}, nil
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
