package knowledge

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// Vector name and size follow the mcp-server-qdrant layout so collections
	// remain readable by both sides.
	qdrantVectorName = "fast-all-minilm-l6-v2"
	qdrantVectorSize = 384

	qdrantUpsertBatch   = 100
	defaultQdrantURL    = "http://localhost:6333"
	defaultQdrantExpiry = 30 * time.Second
)

// QdrantOption customizes the Qdrant store.
type QdrantOption func(*QdrantStore)

// WithQdrantHTTPClient overrides the HTTP client.
func WithQdrantHTTPClient(client *http.Client) QdrantOption {
	return func(s *QdrantStore) {
		if client != nil {
			s.http = client
		}
	}
}

// WithQdrantVector overrides the named vector and its dimensionality.
func WithQdrantVector(name string, size int) QdrantOption {
	return func(s *QdrantStore) {
		if name != "" {
			s.vectorName = name
		}
		if size > 0 {
			s.vectorSize = size
		}
	}
}

// QdrantStore implements Store against a Qdrant server's REST API using
// named vectors.
type QdrantStore struct {
	baseURL    string
	http       *http.Client
	embedder   Embedder
	vectorName string
	vectorSize int

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore creates a store targeting the given Qdrant URL. An empty URL
// falls back to http://localhost:6333.
func NewQdrantStore(baseURL string, embedder Embedder, opts ...QdrantOption) (*QdrantStore, error) {
	if embedder == nil {
		return nil, errors.New("knowledge: qdrant store requires an embedder")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultQdrantURL
	}
	s := &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultQdrantExpiry},
		embedder:   embedder,
		vectorName: qdrantVectorName,
		vectorSize: qdrantVectorSize,
		ensured:    make(map[string]bool),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type qdrantPoint struct {
	ID      string               `json:"id"`
	Vector  map[string][]float64 `json:"vector"`
	Payload qdrantPayload        `json:"payload"`
}

type qdrantPayload struct {
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Insert embeds the documents and upserts them in batches. Point IDs derive
// from an md5 of the document ID so re-ingesting the same source is
// idempotent.
func (s *QdrantStore) Insert(ctx context.Context, collection string, docs []Document) error {
	if strings.TrimSpace(collection) == "" {
		return errors.New("knowledge: collection is required")
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
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

	points := make([]qdrantPoint, 0, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("%s_%d", collection, i)
		}
		points = append(points, qdrantPoint{
			ID:      pointID(id),
			Vector:  map[string][]float64{s.vectorName: vectors[i]},
			Payload: qdrantPayload{Document: doc.Content, Metadata: doc.Metadata},
		})
	}

	for start := 0; start < len(points); start += qdrantUpsertBatch {
		end := start + qdrantUpsertBatch
		if end > len(points) {
			end = len(points)
		}
		body := map[string]any{"points": points[start:end]}
		if err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
			return fmt.Errorf("qdrant upsert: %w", err)
		}
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any           `json:"id"`
		Score   float64       `json:"score"`
		Payload qdrantPayload `json:"payload"`
	} `json:"result"`
}

// Query embeds the query text and runs a named-vector search.
func (s *QdrantStore) Query(ctx context.Context, collection, query string, limit int) ([]Document, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("knowledge: collection is required")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("knowledge: query is required")
	}
	if limit <= 0 {
		limit = 3
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("knowledge: embedder returned empty vector")
	}

	body := map[string]any{
		"vector":       map[string]any{"name": s.vectorName, "vector": vectors[0]},
		"limit":        limit,
		"with_payload": true,
	}
	var resp qdrantSearchResponse
	if err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	docs := make([]Document, 0, len(resp.Result))
	for _, hit := range resp.Result {
		docs = append(docs, Document{
			ID:         fmt.Sprint(hit.ID),
			Content:    hit.Payload.Document,
			Similarity: hit.Score,
			Metadata:   hit.Payload.Metadata,
		})
	}
	return docs, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	done := s.ensured[collection]
	s.mu.Unlock()
	if done {
		return nil
	}

	var list struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
		return fmt.Errorf("qdrant list collections: %w", err)
	}
	exists := false
	for _, c := range list.Result.Collections {
		if c.Name == collection {
			exists = true
			break
		}
	}
	if !exists {
		body := map[string]any{
			"vectors": map[string]any{
				s.vectorName: map[string]any{"size": s.vectorSize, "distance": "Cosine"},
			},
		}
		if err := s.do(ctx, http.MethodPut, "/collections/"+collection, body, nil); err != nil {
			return fmt.Errorf("qdrant create collection: %w", err)
		}
	}

	s.mu.Lock()
	s.ensured[collection] = true
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// pointID maps an arbitrary string to a UUID-shaped md5 digest, the ID format
// Qdrant accepts.
func pointID(key string) string {
	sum := md5.Sum([]byte(key))
	hexed := hex.EncodeToString(sum[:])
	return strings.Join([]string{hexed[0:8], hexed[8:12], hexed[12:16], hexed[16:20], hexed[20:32]}, "-")
}
