package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailroom/mailroom/engine/core"
)

// End is the explicit terminal marker. Every path must reach it; the engine
// has no implicit termination.
const End = "__end__"

// Kind is the closed set of node variants the engine executes.
type Kind int

const (
	// KindSimple runs a step function and merges its update into the state.
	KindSimple Kind = iota
	// KindComposite runs a fully compiled sub-graph under the same run.
	KindComposite
	// KindConditional dispatches to one of several successors by selector.
	// It produces no state change and no audit event.
	KindConditional
)

// Func is a step: it reads the state and returns a partial update plus the
// audit payload for the event the engine will write.
type Func[S, U any] func(ctx context.Context, state *S) (*Result[U], error)

// Selector maps the current state to the name of a conditional branch.
type Selector[S any] func(state *S) string

// Result carries a step's partial state update and its audit payload.
type Result[U any] struct {
	Update     U
	Input      core.Input
	Output     core.Output
	Confidence float64
	Evidence   []string
	Reasoning  string
}

// MergeFunc applies a partial update to the state. Implementations must be
// key-wise overwrite: fields the update does not mention survive unchanged,
// and nothing is ever deleted.
type MergeFunc[S, U any] func(state *S, update U)

type node[S, U any] struct {
	name     string
	kind     Kind
	fn       Func[S, U]
	sub      *Compiled[S, U]
	selector Selector[S]
	targets  map[string]string
	fallback string
	next     string
}

// Graph is a builder for a directed, conditionally-branching step graph.
type Graph[S, U any] struct {
	name  string
	merge MergeFunc[S, U]
	nodes map[string]*node[S, U]
	order []string
	entry string
	errs  []error
}

func NewGraph[S, U any](name string, merge MergeFunc[S, U]) *Graph[S, U] {
	return &Graph[S, U]{
		name:  name,
		merge: merge,
		nodes: make(map[string]*node[S, U]),
	}
}

func (g *Graph[S, U]) add(n *node[S, U]) {
	if n.name == "" || n.name == End {
		g.errs = append(g.errs, fmt.Errorf("graph %q: invalid node name %q", g.name, n.name))
		return
	}
	if _, exists := g.nodes[n.name]; exists {
		g.errs = append(g.errs, fmt.Errorf("graph %q: duplicate node %q", g.name, n.name))
		return
	}
	g.nodes[n.name] = n
	g.order = append(g.order, n.name)
}

// AddNode registers a simple step.
func (g *Graph[S, U]) AddNode(name string, fn Func[S, U]) {
	g.add(&node[S, U]{name: name, kind: KindSimple, fn: fn})
}

// AddComposite registers a compiled sub-graph as a single node. Its inner
// audit events are appended to the parent run's trail in execution order.
func (g *Graph[S, U]) AddComposite(name string, sub *Compiled[S, U]) {
	g.add(&node[S, U]{name: name, kind: KindComposite, sub: sub})
}

// AddConditional registers a fan-out node. The selector's result picks a
// target; unmapped values fall through to the fallback target, which is
// mandatory: compilation fails without it.
func (g *Graph[S, U]) AddConditional(name string, sel Selector[S], targets map[string]string, fallback string) {
	g.add(&node[S, U]{name: name, kind: KindConditional, selector: sel, targets: targets, fallback: fallback})
}

// AddEdge sets the single successor of a simple or composite node. Use End to
// terminate the path.
func (g *Graph[S, U]) AddEdge(from, to string) {
	n, ok := g.nodes[from]
	if !ok {
		g.errs = append(g.errs, fmt.Errorf("graph %q: edge from unknown node %q", g.name, from))
		return
	}
	if n.kind == KindConditional {
		g.errs = append(g.errs, fmt.Errorf("graph %q: node %q is conditional; its targets are its edges", g.name, from))
		return
	}
	if n.next != "" {
		g.errs = append(g.errs, fmt.Errorf("graph %q: node %q already has a successor", g.name, from))
		return
	}
	n.next = to
}

func (g *Graph[S, U]) SetEntryPoint(name string) {
	g.entry = name
}

// Compile validates the graph and freezes it for execution. Malformed graphs
// (missing entry, dangling edges, conditional without a default, cycles) are
// rejected here rather than at run time.
func (g *Graph[S, U]) Compile() (*Compiled[S, U], error) {
	if len(g.errs) > 0 {
		return nil, fmt.Errorf("graph %q: %w", g.name, errors.Join(g.errs...))
	}
	if g.merge == nil {
		return nil, fmt.Errorf("graph %q: merge function is required", g.name)
	}
	if g.entry == "" {
		return nil, fmt.Errorf("graph %q: entry point is not set", g.name)
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("graph %q: entry point %q is not a node", g.name, g.entry)
	}
	for _, name := range g.order {
		if err := g.validateNode(g.nodes[name]); err != nil {
			return nil, err
		}
	}
	c := &Compiled[S, U]{name: g.name, merge: g.merge, nodes: g.nodes, entry: g.entry}
	if err := c.checkAcyclic(); err != nil {
		return nil, err
	}
	return c, nil
}

func (g *Graph[S, U]) validateNode(n *node[S, U]) error {
	switch n.kind {
	case KindConditional:
		if n.selector == nil {
			return fmt.Errorf("graph %q: conditional %q has no selector", g.name, n.name)
		}
		if n.fallback == "" {
			return fmt.Errorf("graph %q: conditional %q has no default branch", g.name, n.name)
		}
		for key, target := range n.targets {
			if err := g.checkTarget(n.name, target); err != nil {
				return fmt.Errorf("%w (branch %q)", err, key)
			}
		}
		return g.checkTarget(n.name, n.fallback)
	default:
		if n.kind == KindSimple && n.fn == nil {
			return fmt.Errorf("graph %q: node %q has no function", g.name, n.name)
		}
		if n.kind == KindComposite && n.sub == nil {
			return fmt.Errorf("graph %q: composite %q has no sub-graph", g.name, n.name)
		}
		if n.next == "" {
			return fmt.Errorf("graph %q: node %q has no successor; route it to flow.End explicitly", g.name, n.name)
		}
		return g.checkTarget(n.name, n.next)
	}
}

func (g *Graph[S, U]) checkTarget(from, target string) error {
	if target == End {
		return nil
	}
	if _, ok := g.nodes[target]; !ok {
		return fmt.Errorf("graph %q: node %q routes to unknown node %q", g.name, from, target)
	}
	return nil
}

// Compiled is an immutable, validated graph ready to run.
type Compiled[S, U any] struct {
	name  string
	merge MergeFunc[S, U]
	nodes map[string]*node[S, U]
	entry string
}

func (c *Compiled[S, U]) Name() string {
	return c.name
}

// checkAcyclic walks every possible edge from the entry and rejects cycles.
func (c *Compiled[S, U]) checkAcyclic() error {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(c.nodes))
	var visit func(name string) error
	visit = func(name string) error {
		if name == End {
			return nil
		}
		switch state[name] {
		case visiting:
			return fmt.Errorf("graph %q: cycle through node %q", c.name, name)
		case done:
			return nil
		}
		state[name] = visiting
		n := c.nodes[name]
		if n.kind == KindConditional {
			for _, target := range n.targets {
				if err := visit(target); err != nil {
					return err
				}
			}
			if err := visit(n.fallback); err != nil {
				return err
			}
		} else if err := visit(n.next); err != nil {
			return err
		}
		state[name] = done
		return nil
	}
	return visit(c.entry)
}
