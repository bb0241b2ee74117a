package knowledge

import "context"

// Store is the persistence contract for knowledge chunks. ListChunks returns
// chunks in storage order; the retriever relies on that order for stable
// tie-breaking.
type Store interface {
	ListChunks(ctx context.Context) ([]Chunk, error)
	AddDocument(ctx context.Context, filename string, chunks []Chunk) (int64, error)
}
