package triage

import (
	"context"
	"fmt"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
)

// kbStep retrieves top-k knowledge chunks for a domain-prefixed query and
// stores their text in the state for the intent step to cite.
func (s *Service) kbStep(step, queryPrefix string, k int, confHit, confMiss float64) flow.Func[State, Update] {
	return func(ctx context.Context, st *State) (*flow.Result[Update], error) {
		query := fmt.Sprintf("%sSubject: %s\nBody: %s", queryPrefix, st.Email.Subject, st.Email.Body)
		chunks, err := s.kb.Retrieve(ctx, query, k)
		if err != nil {
			return nil, fmt.Errorf("triage: %s retrieval: %w", step, err)
		}
		ctxTexts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			ctxTexts = append(ctxTexts, c.Text)
		}
		conf := confMiss
		if len(ctxTexts) > 0 {
			conf = confHit
		}
		return &flow.Result[Update]{
			Update:     Update{KBContext: ctxTexts, KBConfidence: f64p(conf)},
			Input:      core.Input{"query": truncate(query, 500)},
			Output:     core.Output{"num_chunks": len(ctxTexts)},
			Confidence: conf,
			Evidence:   []string{"top-k chunk retrieval"},
		}, nil
	}
}
