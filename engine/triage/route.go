package triage

import (
	"context"
	"fmt"

	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
)

var salesIntents = []string{
	"Specific product related inquiry",
	"Customer requirement possible products",
	"Best price offer and bundling related query",
	"Order related query",
	"Need more info from customer",
	"Other sales",
}

var supportIntents = []string{
	"Access issue around product",
	"Refund request",
	"Technical issue",
	"Account verification",
	"Need more info from customer",
	"Other support",
}

// route maps the classified category onto a coarse workflow bucket.
func (s *Service) route(_ context.Context, st *State) (*flow.Result[Update], error) {
	cat := st.Category
	if cat == "" {
		cat = "Other"
	}
	route := "other"
	switch cat {
	case "Sales Type":
		route = "sales"
	case "Support Type":
		route = "support"
	}
	conf := 0.6
	if route == "sales" || route == "support" {
		conf = 0.9
	}
	return &flow.Result[Update]{
		Update:     Update{Route: strp(route), RouteConfidence: f64p(conf)},
		Input:      core.Input{"category": cat},
		Output:     core.Output{"route": route},
		Confidence: conf,
		Evidence:   []string{fmt.Sprintf("mapped %s -> %s", cat, route)},
	}, nil
}

// subRouter re-derives the route from the identified intent against the
// fixed allow-list for the domain. Out-of-list intents audit at 0.3; the
// merged route_confidence is always 1.0.
func subRouter(catchAll string, allowed []string) flow.Func[State, Update] {
	return func(_ context.Context, st *State) (*flow.Result[Update], error) {
		route := st.Intent
		if route == "" {
			route = catchAll
		}
		conf := 0.3
		for _, a := range allowed {
			if route == a {
				conf = 0.9
				break
			}
		}
		rationale := fmt.Sprintf("Mapped from intent %s", route)
		return &flow.Result[Update]{
			Update:     Update{Route: strp(route), RouteConfidence: f64p(1.0)},
			Input:      core.Input{"category": st.Category},
			Output:     core.Output{"route": route, "rationale": rationale},
			Confidence: conf,
			Evidence:   []string{fmt.Sprintf("mapped %s -> %s", st.Category, route)},
			Reasoning:  rationale,
		}, nil
	}
}
