package triage

import (
	"context"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
)

// unknown is the default bucket for emails outside sales/support.
func (s *Service) unknown(_ context.Context, st *State) (*flow.Result[Update], error) {
	intent := "Other"
	summary := "Email does not match sales/support. Logged for manual triage."
	conf := 0.55
	return &flow.Result[Update]{
		Update: Update{
			Intent:          strp(intent),
			Summary:         strp(summary),
			Recommendations: []Recommendation{},
			Offers:          []Offer{},
			OtherConfidence: f64p(conf),
		},
		Input:      core.Input{"subject": st.Email.Subject},
		Output:     core.Output{"intent": intent},
		Confidence: conf,
		Evidence:   []string{"default bucket"},
	}, nil
}

// finalize consolidates the run: the average of every confidence a step set.
func (s *Service) finalize(_ context.Context, st *State) (*flow.Result[Update], error) {
	fields := []*float64{
		st.CategoryConfidence,
		st.RouteConfidence,
		st.KBConfidence,
		st.IntentConfidence,
		st.SalesConfidence,
		st.SupportConfidence,
		st.OtherConfidence,
	}
	var sum float64
	var n int
	for _, f := range fields {
		if f != nil {
			sum += *f
			n++
		}
	}
	avg := 0.0
	if n > 0 {
		avg = sum / float64(n)
	}
	return &flow.Result[Update]{
		Update:     Update{AvgConfidence: f64p(avg)},
		Input:      core.Input{"route": st.Route},
		Output:     core.Output{"avg_confidence": avg},
		Confidence: 0.9,
		Evidence:   []string{"consolidated outputs"},
	}, nil
}

// present is the last step before the end marker; it leaves the state
// unchanged and marks the run complete.
func (s *Service) present(_ context.Context, st *State) (*flow.Result[Update], error) {
	return &flow.Result[Update]{
		Input:      core.Input{"route": st.Route},
		Output:     core.Output{"status": "done"},
		Confidence: 0.95,
		Evidence:   []string{"ready to present"},
	}, nil
}
