package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mailroom/mailroom/pkg/logger"
	"github.com/tmc/langchaingo/embeddings"
)

// Service ranks stored chunks against a query. It prefers vector similarity
// when an embedder is configured and at least one chunk carries an embedding,
// and degrades to deterministic lexical-overlap scoring otherwise. Retrieval
// never fails just because the embedding provider is absent.
type Service struct {
	store    Store
	embedder embeddings.Embedder
}

// NewService builds a retriever. The embedder may be nil; the service then
// always takes the lexical path.
func NewService(store Store, embedder embeddings.Embedder) (*Service, error) {
	if store == nil {
		return nil, errors.New("knowledge: retriever store is required")
	}
	return &Service{store: store, embedder: embedder}, nil
}

// Retrieve returns up to k chunks ranked by relevance, best first. Results
// are deterministic for a fixed store state and query: equal scores keep
// storage order.
func (s *Service) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("knowledge: query is required")
	}
	if k <= 0 {
		return nil, nil
	}
	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge: list chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	log := logger.FromContext(ctx)
	if s.embedder != nil && anyEmbedded(chunks) {
		results, err := s.retrieveByVector(ctx, query, k, chunks)
		if err != nil {
			return nil, err
		}
		log.Debug("knowledge retrieval", "path", "vector", "results", len(results))
		return results, nil
	}
	results := retrieveByOverlap(query, k, chunks)
	log.Debug("knowledge retrieval", "path", "lexical", "results", len(results))
	return results, nil
}

func anyEmbedded(chunks []Chunk) bool {
	for i := range chunks {
		if chunks[i].Embedding != nil {
			return true
		}
	}
	return false
}

func (s *Service) retrieveByVector(ctx context.Context, query string, k int, chunks []Chunk) ([]Chunk, error) {
	qv, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}
	type scored struct {
		chunk Chunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for i := range chunks {
		if chunks[i].Embedding == nil {
			continue
		}
		ranked = append(ranked, scored{chunk: chunks[i], score: Cosine(qv, chunks[i].Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]Chunk, 0, min(k, len(ranked)))
	for i := 0; i < len(ranked) && i < k; i++ {
		out = append(out, ranked[i].chunk)
	}
	return out, nil
}

func retrieveByOverlap(query string, k int, chunks []Chunk) []Chunk {
	queryWords := tokenize(query)
	type scored struct {
		chunk Chunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for i := range chunks {
		score := OverlapScore(queryWords, tokenize(chunks[i].Text))
		if score <= 0 {
			continue
		}
		ranked = append(ranked, scored{chunk: chunks[i], score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	out := make([]Chunk, 0, min(k, len(ranked)))
	for i := 0; i < len(ranked) && i < k; i++ {
		out = append(out, ranked[i].chunk)
	}
	return out
}

// Cosine is dot(a,b)/(||a||*||b||); 0 when either norm is 0 or the
// dimensions disagree.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// OverlapScore is |query ∩ chunk| / max(1, |query|) over lowercase
// whitespace tokens.
func OverlapScore(queryWords, chunkWords map[string]struct{}) float64 {
	shared := 0
	for w := range queryWords {
		if _, ok := chunkWords[w]; ok {
			shared++
		}
	}
	return float64(shared) / math.Max(1, float64(len(queryWords)))
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
