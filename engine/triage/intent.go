package triage

import (
	"context"
	"fmt"
	"slices"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/llm"
)

// heuristicIntent is one deterministic fallback rule: first matching keyword
// set wins.
type heuristicIntent struct {
	keywords   []string
	intent     string
	confidence float64
	rationale  string
}

var salesHeuristics = []heuristicIntent{
	{[]string{"price", "discount", "offer", "bundle", "bundling", "quote"},
		"Best price offer and bundling related query", 0.76, "Pricing/bundling keywords detected."},
	{[]string{"recommend", "suggest", "which", "suitable", "need", "requirement"},
		"Customer requirement possible products", 0.70, "Requirement/recommendation phrasing detected."},
	{[]string{"product", "feature", "spec", "model"},
		"Specific product related inquiry", 0.68, "Product-specific keywords detected."},
}

var supportHeuristics = []heuristicIntent{
	{[]string{"refund", "return", "chargeback", "unused credits", "damaged"},
		"Refund request", 0.78, "Refund-related keywords detected."},
	{[]string{"access", "login", "license", "subscription", "activate"},
		"Access issue around product", 0.76, "Access/licensing keywords detected."},
	{[]string{"verify", "authenticate", "who am i", "identity"},
		"Account verification", 0.68, "Verification keywords detected."},
	{[]string{"error", "issue", "problem", "bug", "not working"},
		"Technical issue", 0.70, "Technical-problem keywords detected."},
}

func fallbackSalesIntent(text string) (string, float64, string) {
	if hasAny(text, "order") && hasAny(text, "where", "status", "track") {
		return "Order related query", 0.78, "Order tracking keywords detected."
	}
	return matchHeuristics(text, salesHeuristics, "Other sales")
}

func fallbackSupportIntent(text string) (string, float64, string) {
	return matchHeuristics(text, supportHeuristics, "Other support")
}

func matchHeuristics(text string, rules []heuristicIntent, catchAll string) (string, float64, string) {
	for _, r := range rules {
		if hasAny(text, r.keywords...) {
			return r.intent, r.confidence, r.rationale
		}
	}
	return catchAll, 0.55, "Fallback."
}

// intentStep identifies the fine-grained intent within a route, grounding the
// oracle call on the retrieved knowledge chunks.
func (s *Service) intentStep(step, domain, catchAll string, allowed []string, fallback func(string) (string, float64, string)) flow.Func[State, Update] {
	return func(ctx context.Context, st *State) (*flow.Result[Update], error) {
		email := st.Email
		if !s.oracle.Available() {
			intent, conf, rationale := fallback(email.Text())
			return &flow.Result[Update]{
				Update: Update{
					Intent:           strp(intent),
					IntentConfidence: f64p(conf),
					IntentRationale:  strp(rationale),
				},
				Input:      core.Input{"subject": email.Subject, "kb_chunks": len(st.KBContext)},
				Output:     core.Output{"intent": intent, "rationale": rationale},
				Confidence: conf,
				Evidence:   []string{"heuristic intent"},
				Reasoning:  rationale,
			}, nil
		}

		prompt := intentPrompt(domain, allowed, email, st.KBContext)
		resp, err := s.oracle.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("triage: %s completion: %w", step, err)
		}
		intent, conf, rationale := catchAll, 0.55, "Could not parse model output; defaulted."
		if parsed, ok := llm.ExtractJSON(resp); ok {
			intent = parsed.Get("intent").String()
			if !slices.Contains(allowed, intent) {
				intent = catchAll
			}
			conf = 0.6
			if v := parsed.Get("confidence"); v.Exists() {
				conf = v.Float()
			}
			rationale = parsed.Get("rationale").String()
		}
		return &flow.Result[Update]{
			Update: Update{
				Intent:           strp(intent),
				IntentConfidence: f64p(conf),
				IntentRationale:  strp(rationale),
			},
			Input:      core.Input{"subject": email.Subject, "kb_chunks": len(st.KBContext)},
			Output:     core.Output{"intent": intent, "rationale": rationale},
			Confidence: conf,
			Evidence:   []string{"LLM + KB"},
			Reasoning:  rationale,
		}, nil
	}
}
