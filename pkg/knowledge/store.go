// Package knowledge provides the project knowledge store: document chunking,
// embedding, and vector recall over an in-memory or Qdrant backend.
package knowledge

import "context"

// Document is one stored chunk plus its recall score.
type Document struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Store is the vector persistence surface. Query embeds the query text and
// returns the limit most similar documents, highest similarity first.
type Store interface {
	Query(ctx context.Context, collection, query string, limit int) ([]Document, error)
	Insert(ctx context.Context, collection string, docs []Document) error
}

// Embedder converts texts into dense vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
