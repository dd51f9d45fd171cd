package knowledge

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	doc    Document
	vector []float64
}

// MemoryStore is an embedder-backed vector store held in RAM. It serves tests
// and single-process setups where a Qdrant deployment is overkill.
type MemoryStore struct {
	embedder Embedder

	mu          sync.RWMutex
	collections map[string][]memoryEntry
}

// NewMemoryStore creates an in-memory store using the provided embedder.
func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		embedder:    embedder,
		collections: make(map[string][]memoryEntry),
	}
}

// Insert embeds and stores the documents under collection. Documents without
// an ID get one assigned.
func (s *MemoryStore) Insert(ctx context.Context, collection string, docs []Document) error {
	if s == nil || s.embedder == nil {
		return errors.New("knowledge: memory store has no embedder")
	}
	if strings.TrimSpace(collection) == "" {
		return errors.New("knowledge: collection is required")
	}
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(docs) {
		return errors.New("knowledge: embedder returned wrong vector count")
	}

	entries := make([]memoryEntry, 0, len(docs))
	for i, doc := range docs {
		if strings.TrimSpace(doc.ID) == "" {
			doc.ID = uuid.NewString()
		}
		entries = append(entries, memoryEntry{doc: doc, vector: vectors[i]})
	}

	s.mu.Lock()
	s.collections[collection] = append(s.collections[collection], entries...)
	s.mu.Unlock()
	return nil
}

// Query embeds the query and returns the limit nearest documents by cosine
// similarity, best first.
func (s *MemoryStore) Query(ctx context.Context, collection, query string, limit int) ([]Document, error) {
	if s == nil || s.embedder == nil {
		return nil, errors.New("knowledge: memory store has no embedder")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("knowledge: collection is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("knowledge: query is required")
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("knowledge: embedder returned empty vector")
	}
	queryVec := vectors[0]

	s.mu.RLock()
	entries := append([]memoryEntry(nil), s.collections[collection]...)
	s.mu.RUnlock()

	results := make([]Document, 0, len(entries))
	for _, entry := range entries {
		doc := entry.doc
		doc.Similarity = cosineSimilarity(queryVec, entry.vector)
		results = append(results, doc)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Drop removes an entire collection.
func (s *MemoryStore) Drop(collection string) {
	s.mu.Lock()
	delete(s.collections, collection)
	s.mu.Unlock()
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
