package triage

import (
	"context"
	"fmt"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/llm"
)

var (
	supportKeywords = []string{"refund", "access", "login", "license", "error", "issue", "problem"}
	salesKeywords   = []string{"price", "quote", "discount", "buy", "purchase", "bundle", "offer", "order"}
)

// classify buckets the email into Sales Type / Support Type / Other. With the
// oracle absent it falls back to fixed keyword sets with calibrated
// confidences; unparsable oracle output downgrades to Other at 0.4.
func (s *Service) classify(ctx context.Context, st *State) (*flow.Result[Update], error) {
	email := st.Email
	if !s.oracle.Available() {
		text := email.Text()
		var category string
		var conf float64
		switch {
		case hasAny(text, supportKeywords...):
			category, conf = "Support Type", 0.78
		case hasAny(text, salesKeywords...):
			category, conf = "Sales Type", 0.76
		default:
			category, conf = "Other", 0.55
		}
		return &flow.Result[Update]{
			Update:     Update{Category: strp(category), CategoryConfidence: f64p(conf)},
			Input:      core.Input{"sender": email.Sender, "subject": email.Subject},
			Output:     core.Output{"category": category, "confidence": conf},
			Confidence: conf,
			Evidence:   []string{"rule-based keywords"},
		}, nil
	}

	prompt := classifyPrompt(email)
	resp, err := s.oracle.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("triage: classify completion: %w", err)
	}
	category, conf, rationale := "Other", 0.4, "Could not parse model output."
	if parsed, ok := llm.ExtractJSON(resp); ok {
		if v := parsed.Get("category"); v.Exists() {
			category = v.String()
		}
		if v := parsed.Get("confidence"); v.Exists() {
			conf = v.Float()
		}
		rationale = parsed.Get("rationale").String()
	}
	return &flow.Result[Update]{
		Update:     Update{Category: strp(category), CategoryConfidence: f64p(conf)},
		Input:      core.Input{"prompt": prompt},
		Output:     core.Output{"category": category, "confidence": conf, "rationale": rationale},
		Confidence: conf,
		Evidence:   []string{"LLM JSON"},
		Reasoning:  rationale,
	}, nil
}
