package flow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Route string
	Seen  []string
	Count int
}

type testUpdate struct {
	Route *string
	Seen  []string
	Count *int
}

func mergeTest(s *testState, u testUpdate) {
	if u.Route != nil {
		s.Route = *u.Route
	}
	if u.Seen != nil {
		s.Seen = append(s.Seen, u.Seen...)
	}
	if u.Count != nil {
		s.Count = *u.Count
	}
}

func mark(name string, conf float64) flow.Func[testState, testUpdate] {
	return func(_ context.Context, _ *testState) (*flow.Result[testUpdate], error) {
		return &flow.Result[testUpdate]{
			Update:     testUpdate{Seen: []string{name}},
			Output:     core.Output{"node": name},
			Confidence: conf,
			Evidence:   []string{"marker"},
			Reasoning:  "marks " + name,
		}, nil
	}
}

func compileLinear(t *testing.T) *flow.Compiled[testState, testUpdate] {
	t.Helper()
	g := flow.NewGraph("linear", mergeTest)
	g.AddNode("a", mark("a", 0.5))
	g.AddNode("b", mark("b", 0.7))
	g.AddEdge("a", "b")
	g.AddEdge("b", flow.End)
	g.SetEntryPoint("a")
	compiled, err := g.Compile()
	require.NoError(t, err)
	return compiled
}

func TestGraph_Compile(t *testing.T) {
	t.Run("Should reject a conditional without a default branch", func(t *testing.T) {
		g := flow.NewGraph("bad", mergeTest)
		g.AddNode("a", mark("a", 0.5))
		g.AddConditional("pick", func(s *testState) string { return s.Route }, map[string]string{"x": "a"}, "")
		g.AddEdge("a", flow.End)
		g.SetEntryPoint("pick")
		_, err := g.Compile()
		assert.ErrorContains(t, err, "no default branch")
	})
	t.Run("Should reject a node without a successor", func(t *testing.T) {
		g := flow.NewGraph("bad", mergeTest)
		g.AddNode("a", mark("a", 0.5))
		g.SetEntryPoint("a")
		_, err := g.Compile()
		assert.ErrorContains(t, err, "no successor")
	})
	t.Run("Should reject edges to unknown nodes", func(t *testing.T) {
		g := flow.NewGraph("bad", mergeTest)
		g.AddNode("a", mark("a", 0.5))
		g.AddEdge("a", "ghost")
		g.SetEntryPoint("a")
		_, err := g.Compile()
		assert.ErrorContains(t, err, "unknown node")
	})
	t.Run("Should reject cycles", func(t *testing.T) {
		g := flow.NewGraph("bad", mergeTest)
		g.AddNode("a", mark("a", 0.5))
		g.AddNode("b", mark("b", 0.5))
		g.AddEdge("a", "b")
		g.AddEdge("b", "a")
		g.SetEntryPoint("a")
		_, err := g.Compile()
		assert.ErrorContains(t, err, "cycle")
	})
	t.Run("Should reject a missing entry point", func(t *testing.T) {
		g := flow.NewGraph("bad", mergeTest)
		g.AddNode("a", mark("a", 0.5))
		g.AddEdge("a", flow.End)
		_, err := g.Compile()
		assert.ErrorContains(t, err, "entry point")
	})
}

func TestCompiled_Run(t *testing.T) {
	t.Run("Should execute steps in order and audit each exactly once", func(t *testing.T) {
		compiled := compileLinear(t)
		state := &testState{}
		rec := audit.NewCollector()
		runID := core.MustNewID()
		trail, err := compiled.Run(context.Background(), runID, state, rec)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, state.Seen)
		require.Len(t, trail, 2)
		assert.Equal(t, "a", trail[0].Step)
		assert.Equal(t, "b", trail[1].Step)
		assert.Equal(t, 0, trail[0].Seq)
		assert.Equal(t, 1, trail[1].Seq)
		assert.Len(t, rec.Events(), 2)
		for _, ev := range trail {
			assert.Equal(t, runID, ev.RunID)
			assert.GreaterOrEqual(t, ev.Confidence, 0.0)
			assert.LessOrEqual(t, ev.Confidence, 1.0)
		}
	})
	t.Run("Should route unmapped selector values to the default branch", func(t *testing.T) {
		g := flow.NewGraph("cond", mergeTest)
		g.AddNode("seed", mark("seed", 0.5))
		g.AddConditional("pick", func(s *testState) string { return s.Route }, map[string]string{
			"sales": "sales",
		}, "unknown")
		g.AddNode("sales", mark("sales", 0.9))
		g.AddNode("unknown", mark("unknown", 0.55))
		g.AddEdge("seed", "pick")
		g.AddEdge("sales", flow.End)
		g.AddEdge("unknown", flow.End)
		g.SetEntryPoint("seed")
		compiled, err := g.Compile()
		require.NoError(t, err)

		state := &testState{Route: "something-else"}
		trail, err := compiled.Run(context.Background(), core.MustNewID(), state, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"seed", "unknown"}, state.Seen)
		assert.Len(t, trail, 2, "conditional dispatch itself is not a step")
	})
	t.Run("Should append composite events to the parent trail in order", func(t *testing.T) {
		inner := compileLinear(t)
		g := flow.NewGraph("outer", mergeTest)
		g.AddNode("pre", mark("pre", 0.6))
		g.AddComposite("nested", inner)
		g.AddNode("post", mark("post", 0.8))
		g.AddEdge("pre", "nested")
		g.AddEdge("nested", "post")
		g.AddEdge("post", flow.End)
		g.SetEntryPoint("pre")
		compiled, err := g.Compile()
		require.NoError(t, err)

		state := &testState{}
		trail, err := compiled.Run(context.Background(), core.MustNewID(), state, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"pre", "a", "b", "post"}, state.Seen)
		require.Len(t, trail, 4)
		for i, ev := range trail {
			assert.Equal(t, i, ev.Seq)
		}
	})
	t.Run("Should preserve fields across merges", func(t *testing.T) {
		g := flow.NewGraph("merge", mergeTest)
		route := "sales"
		count := 7
		g.AddNode("set-route", func(_ context.Context, _ *testState) (*flow.Result[testUpdate], error) {
			return &flow.Result[testUpdate]{Update: testUpdate{Route: &route}, Confidence: 1}, nil
		})
		g.AddNode("set-count", func(_ context.Context, _ *testState) (*flow.Result[testUpdate], error) {
			return &flow.Result[testUpdate]{Update: testUpdate{Count: &count}, Confidence: 1}, nil
		})
		g.AddEdge("set-route", "set-count")
		g.AddEdge("set-count", flow.End)
		g.SetEntryPoint("set-route")
		compiled, err := g.Compile()
		require.NoError(t, err)

		state := &testState{}
		_, err = compiled.Run(context.Background(), core.MustNewID(), state, nil)
		require.NoError(t, err)
		assert.Equal(t, "sales", state.Route, "earlier update must survive later merges")
		assert.Equal(t, 7, state.Count)
	})
	t.Run("Should abort on node error and surface the partial trail", func(t *testing.T) {
		g := flow.NewGraph("fail", mergeTest)
		g.AddNode("ok", mark("ok", 0.5))
		g.AddNode("boom", func(_ context.Context, _ *testState) (*flow.Result[testUpdate], error) {
			return nil, errors.New("store connection lost")
		})
		g.AddNode("never", mark("never", 0.5))
		g.AddEdge("ok", "boom")
		g.AddEdge("boom", "never")
		g.AddEdge("never", flow.End)
		g.SetEntryPoint("ok")
		compiled, err := g.Compile()
		require.NoError(t, err)

		state := &testState{}
		trail, err := compiled.Run(context.Background(), core.MustNewID(), state, nil)
		require.Error(t, err)
		assert.ErrorContains(t, err, `node "boom"`)
		require.Len(t, trail, 1)
		assert.Equal(t, "ok", trail[0].Step)
		assert.NotContains(t, state.Seen, "never")
	})
	t.Run("Should clamp out-of-range confidences at record time", func(t *testing.T) {
		g := flow.NewGraph("clamp", mergeTest)
		g.AddNode("hot", func(_ context.Context, _ *testState) (*flow.Result[testUpdate], error) {
			return &flow.Result[testUpdate]{Confidence: 1.8}, nil
		})
		g.AddEdge("hot", flow.End)
		g.SetEntryPoint("hot")
		compiled, err := g.Compile()
		require.NoError(t, err)
		trail, err := compiled.Run(context.Background(), core.MustNewID(), &testState{}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1.0, trail[0].Confidence)
	})
}
