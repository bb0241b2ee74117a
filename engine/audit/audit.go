package audit

import (
	"context"
	"sync"
	"time"

	"github.com/mailroom/mailroom/engine/core"
)

// Event is the immutable record of one step execution. Events for a run are
// strictly ordered by Seq, which the engine assigns in execution order.
type Event struct {
	RunID      core.ID     `json:"run_id"`
	Seq        int         `json:"seq"`
	Step       string      `json:"step"`
	Input      core.Input  `json:"input"`
	Output     core.Output `json:"output"`
	Confidence float64     `json:"confidence"`
	Evidence   []string    `json:"evidence"`
	Reasoning  string      `json:"reasoning"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Trail is the ordered list of events for a single run.
type Trail []*Event

// Recorder appends events to a sink. Implementations must treat each call as
// a single atomic insert; events are never updated or deleted.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// ClampConfidence forces confidence into [0,1] before an event is recorded.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Collector is an in-memory append-only recorder, safe for concurrent runs.
type Collector struct {
	mu     sync.Mutex
	events Trail
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Record(_ context.Context, event *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() Trail {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(Trail, len(c.events))
	copy(out, c.events)
	return out
}

// MultiRecorder fans a single event out to several sinks in order.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, event *Event) error {
	for _, r := range m {
		if err := r.Record(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
