package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mailroom/mailroom/engine/audit"
	"github.com/mailroom/mailroom/engine/core"
	"github.com/mailroom/mailroom/engine/flow"
	"github.com/mailroom/mailroom/engine/knowledge"
	"github.com/mailroom/mailroom/engine/llm"
	"github.com/mailroom/mailroom/engine/mail"
	"github.com/mailroom/mailroom/engine/store"
	"github.com/mailroom/mailroom/pkg/logger"
)

// Service runs the triage pipeline. One Service is safe for concurrent use:
// every run owns a private state and only appends to the audit sink.
type Service struct {
	store    store.Store
	kb       *knowledge.Service
	oracle   *llm.Capability
	recorder audit.Recorder
	graph    *flow.Compiled[State, Update]
	chunker  knowledge.Chunker
	kbStore  knowledge.Store
	topK     int
	now      func() time.Time
}

// Outcome is what a completed (or aborted) run hands back: the final state
// and the ordered audit trail.
type Outcome struct {
	State *State      `json:"state"`
	Trail audit.Trail `json:"trail"`
}

// NewService wires the triage graph over its collaborators. The recorder may
// be nil; the per-run trail is kept either way.
func NewService(st store.Store, kbStore knowledge.Store, oracle *llm.Capability, recorder audit.Recorder) (*Service, error) {
	if st == nil {
		return nil, errors.New("triage: business store is required")
	}
	if kbStore == nil {
		return nil, errors.New("triage: knowledge store is required")
	}
	if oracle == nil {
		oracle = llm.Disabled()
	}
	kb, err := knowledge.NewService(kbStore, oracle.Embedder())
	if err != nil {
		return nil, fmt.Errorf("triage: build retriever: %w", err)
	}
	s := &Service{
		store:    st,
		kb:       kb,
		oracle:   oracle,
		recorder: recorder,
		chunker:  knowledge.DefaultChunker(),
		kbStore:  kbStore,
		topK:     4,
		now:      time.Now,
	}
	graph, err := s.buildGraph()
	if err != nil {
		return nil, err
	}
	s.graph = graph
	return s, nil
}

// RunTriage executes one run for the email: normalize, screen, walk the
// graph. A node failure surfaces the partial trail alongside the error.
func (s *Service) RunTriage(ctx context.Context, email mail.Email) (*Outcome, error) {
	email = email.Normalize()
	if err := email.Validate(); err != nil {
		return nil, err
	}
	runID, err := core.NewID()
	if err != nil {
		return nil, fmt.Errorf("triage: generate run id: %w", err)
	}
	log := logger.FromContext(ctx).With("run_id", runID)

	ok, flags := mail.Guard(email)
	if !ok {
		log.Warn("injection patterns flagged", "flags", flags)
	}
	st := &State{RunID: runID, Email: email, GuardFlags: flags}

	log.Info("triage run started", "sender", email.Sender)
	trail, err := s.graph.Run(ctx, runID, st, s.recorder)
	outcome := &Outcome{State: st, Trail: trail}
	if err != nil {
		log.Error("triage run aborted", "error", err, "steps", len(trail))
		return outcome, err
	}
	log.Info("triage run finished", "route", st.Route, "intent", st.Intent, "steps", len(trail))
	return outcome, nil
}

// SetRetrievalDepth overrides how many chunks SearchKnowledge returns.
// Non-positive values keep the default.
func (s *Service) SetRetrievalDepth(k int) {
	if k > 0 {
		s.topK = k
	}
}

// SearchKnowledge queries the knowledge base directly with the configured
// retrieval depth.
func (s *Service) SearchKnowledge(ctx context.Context, query string) ([]knowledge.Chunk, error) {
	return s.kb.Retrieve(ctx, query, s.topK)
}

// IngestDocument chunks a document, embeds the chunks when an embedder is
// configured, and stores everything under one document id. Returns the
// document id and the number of chunks stored.
func (s *Service) IngestDocument(ctx context.Context, filename, text string) (int64, int, error) {
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return 0, 0, errors.New("triage: document has no text to ingest")
	}
	chunks := make([]knowledge.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = knowledge.Chunk{Text: p}
	}
	if embedder := s.oracle.Embedder(); embedder != nil {
		vectors, err := embedder.EmbedDocuments(ctx, pieces)
		if err != nil {
			return 0, 0, fmt.Errorf("triage: embed document chunks: %w", err)
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}
	docID, err := s.kbStore.AddDocument(ctx, filename, chunks)
	if err != nil {
		return 0, 0, fmt.Errorf("triage: store document: %w", err)
	}
	return docID, len(chunks), nil
}
