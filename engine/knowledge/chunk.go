package knowledge

import "strings"

// Chunk is a unit of retrievable text. A nil Embedding means the chunk is
// only reachable through the lexical fallback path.
type Chunk struct {
	ID        int64
	DocID     int64
	Text      string
	Embedding []float32
}

// Chunker splits normalized text into fixed-size overlapping windows.
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker mirrors the ingestion defaults the knowledge base was built
// with; changing them invalidates stored chunk boundaries.
func DefaultChunker() Chunker {
	return Chunker{Size: 900, Overlap: 150}
}

// Split whitespace-normalizes the text and cuts it into overlapping windows.
// Blank windows are dropped.
func (c Chunker) Split(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	size := c.Size
	if size <= 0 {
		size = DefaultChunker().Size
	}
	step := size - c.Overlap
	if step < 1 {
		step = 1
	}
	runes := []rune(text)
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := min(i+size, len(runes))
		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
