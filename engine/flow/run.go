package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/pkg/logger"
)

// runContext is shared across composite boundaries so a nested sub-graph
// appends to the same trail with a continuous sequence.
type runContext struct {
	runID    core.ID
	recorder audit.Recorder
	trail    audit.Trail
	seq      int
}

// Run executes the graph over the state: a single sequential chain of steps,
// one audit event per step, merged updates visible to every later step. On a
// node error the run aborts and the partial trail is returned alongside it.
func (c *Compiled[S, U]) Run(
	ctx context.Context,
	runID core.ID,
	state *S,
	recorder audit.Recorder,
) (audit.Trail, error) {
	rc := &runContext{runID: runID, recorder: recorder}
	err := c.run(ctx, rc, state)
	return rc.trail, err
}

func (c *Compiled[S, U]) run(ctx context.Context, rc *runContext, state *S) error {
	log := logger.FromContext(ctx).With("graph", c.name, "run_id", rc.runID)
	cur := c.entry
	for cur != End {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("flow: graph %q canceled at node %q: %w", c.name, cur, err)
		}
		n := c.nodes[cur]
		switch n.kind {
		case KindConditional:
			key := n.selector(state)
			next, ok := n.targets[key]
			if !ok {
				next = n.fallback
			}
			log.Debug("conditional dispatch", "node", cur, "key", key, "next", next)
			cur = next
		case KindComposite:
			log.Debug("entering sub-graph", "node", cur)
			if err := n.sub.run(ctx, rc, state); err != nil {
				return err
			}
			cur = n.next
		default:
			res, err := n.fn(ctx, state)
			if err != nil {
				return fmt.Errorf("flow: graph %q node %q: %w", c.name, cur, err)
			}
			c.merge(state, res.Update)
			if err := c.recordEvent(ctx, rc, cur, res); err != nil {
				return fmt.Errorf("flow: graph %q node %q: record audit event: %w", c.name, cur, err)
			}
			cur = n.next
		}
	}
	return nil
}

// recordEvent writes exactly one event per step invocation, before the walk
// advances. The trail keeps it even when no external recorder is configured.
func (c *Compiled[S, U]) recordEvent(ctx context.Context, rc *runContext, step string, res *Result[U]) error {
	event := &audit.Event{
		RunID:      rc.runID,
		Seq:        rc.seq,
		Step:       step,
		Input:      res.Input.Clone(),
		Output:     res.Output.Clone(),
		Confidence: audit.ClampConfidence(res.Confidence),
		Evidence:   append([]string(nil), res.Evidence...),
		Reasoning:  res.Reasoning,
		CreatedAt:  time.Now().UTC(),
	}
	rc.seq++
	rc.trail = append(rc.trail, event)
	if rc.recorder == nil {
		return nil
	}
	return rc.recorder.Record(ctx, event)
}
