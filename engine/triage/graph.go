package triage

import (
	"fmt"

	"github.com/mailroom/mailroom/engine/flow"
)

// buildGraph wires the full triage topology:
//
//	classify -> route -> (sales | support | unknown) -> finalize -> present
//
// The sales subgraph runs kb -> intent -> ticket -> route -> fulfillment.
// The support subgraph runs the same spine, then dispatches refund-request
// intents into the sequential refund state machine instead of the
// fulfillment tree.
func (s *Service) buildGraph() (*flow.Compiled[State, Update], error) {
	refund, err := s.buildRefundGraph()
	if err != nil {
		return nil, err
	}
	sales, err := s.buildSalesGraph()
	if err != nil {
		return nil, err
	}
	support, err := s.buildSupportGraph(refund)
	if err != nil {
		return nil, err
	}

	g := flow.NewGraph[State, Update]("triage", Merge)
	g.AddNode("classify", s.classify)
	g.AddNode("route", s.route)
	g.AddConditional("dispatch",
		func(st *State) string { return st.Route },
		map[string]string{"sales": "sales", "support": "support", "other": "unknown"},
		"unknown")
	g.AddComposite("sales", sales)
	g.AddComposite("support", support)
	g.AddNode("unknown", s.unknown)
	g.AddNode("finalize", s.finalize)
	g.AddNode("present", s.present)

	g.SetEntryPoint("classify")
	g.AddEdge("classify", "route")
	g.AddEdge("route", "dispatch")
	g.AddEdge("sales", "finalize")
	g.AddEdge("support", "finalize")
	g.AddEdge("unknown", "finalize")
	g.AddEdge("finalize", "present")
	g.AddEdge("present", flow.End)

	compiled, err := g.Compile()
	if err != nil {
		return nil, fmt.Errorf("triage: compile graph: %w", err)
	}
	return compiled, nil
}

func (s *Service) buildSalesGraph() (*flow.Compiled[State, Update], error) {
	g := flow.NewGraph[State, Update]("sales", Merge)
	g.AddNode("sales_kb_retrieve", s.kbStep("sales_kb_retrieve", "[SALES]\n", 5, 0.75, 0.35))
	g.AddNode("sales_intent", s.intentStep("sales_intent", "SALES", "Other sales", salesIntents, fallbackSalesIntent))
	g.AddNode("ticket_log", s.ticket)
	g.AddNode("sales_route", subRouter("Other sales", salesIntents))
	g.AddNode("sales_fulfillment", s.salesFulfillment)

	g.SetEntryPoint("sales_kb_retrieve")
	g.AddEdge("sales_kb_retrieve", "sales_intent")
	g.AddEdge("sales_intent", "ticket_log")
	g.AddEdge("ticket_log", "sales_route")
	g.AddEdge("sales_route", "sales_fulfillment")
	g.AddEdge("sales_fulfillment", flow.End)
	return g.Compile()
}

func (s *Service) buildSupportGraph(refund *flow.Compiled[State, Update]) (*flow.Compiled[State, Update], error) {
	g := flow.NewGraph[State, Update]("support", Merge)
	g.AddNode("support_kb_retrieve", s.kbStep("support_kb_retrieve", "[SUPPORT]\n", 5, 0.75, 0.35))
	g.AddNode("support_intent", s.intentStep("support_intent", "SUPPORT", "Other support", supportIntents, fallbackSupportIntent))
	g.AddNode("ticket_log", s.ticket)
	g.AddNode("support_route", subRouter("Other support", supportIntents))
	g.AddConditional("support_dispatch",
		func(st *State) string { return st.Route },
		map[string]string{"Refund request": "refund_case"},
		"support_fulfillment")
	g.AddComposite("refund_case", refund)
	g.AddNode("support_fulfillment", s.supportFulfillment)

	g.SetEntryPoint("support_kb_retrieve")
	g.AddEdge("support_kb_retrieve", "support_intent")
	g.AddEdge("support_intent", "ticket_log")
	g.AddEdge("ticket_log", "support_route")
	g.AddEdge("support_route", "support_dispatch")
	g.AddEdge("refund_case", flow.End)
	g.AddEdge("support_fulfillment", flow.End)
	return g.Compile()
}

func (s *Service) buildRefundGraph() (*flow.Compiled[State, Update], error) {
	g := flow.NewGraph[State, Update]("refund", Merge)
	g.AddNode("refund_extract", s.refundExtract)
	g.AddNode("refund_validate", s.refundValidate)
	g.AddNode("refund_case_creation", s.refundCaseCreate)
	g.AddNode("refund_calculation", s.refundCalculate)
	g.AddNode("refund_notify", s.refundNotify)

	g.SetEntryPoint("refund_extract")
	g.AddEdge("refund_extract", "refund_validate")
	g.AddEdge("refund_validate", "refund_case_creation")
	g.AddEdge("refund_case_creation", "refund_calculation")
	g.AddEdge("refund_calculation", "refund_notify")
	g.AddEdge("refund_notify", flow.End)
	return g.Compile()
}
