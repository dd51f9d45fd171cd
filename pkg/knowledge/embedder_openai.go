package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultEmbedBatch = 32

// OpenAIEmbedder implements Embedder on OpenAI's embeddings API. Requests are
// batched so long document sets stay under the API's input limits.
type OpenAIEmbedder struct {
	client  openaisdk.Client
	model   openaisdk.EmbeddingModel
	batch   int
	dims    int
	reqOpts []option.RequestOption
}

// OpenAIOption customizes the embedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithEmbedBatchSize overrides texts per request (default 32).
func WithEmbedBatchSize(size int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if size > 0 {
			e.batch = size
		}
	}
}

// WithEmbedDimensions truncates vectors to dim when the model supports it.
func WithEmbedDimensions(dim int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if dim > 0 {
			e.dims = dim
		}
	}
}

// WithEmbedRequestOptions forwards extra SDK request options (base URL,
// organization, proxies).
func WithEmbedRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		e.reqOpts = append(e.reqOpts, opts...)
	}
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(apiKey, model string, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("knowledge: openai api key is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("knowledge: embedding model is required")
	}
	e := &OpenAIEmbedder{
		model: openaisdk.EmbeddingModel(model),
		batch: defaultEmbedBatch,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.client = openaisdk.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, e.reqOpts...)...)
	return e, nil
}

// Embed converts texts into dense vectors, one API call per batch.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if e == nil {
		return nil, errors.New("knowledge: openai embedder is nil")
	}
	if len(texts) == 0 {
		return nil, errors.New("knowledge: no texts provided")
	}
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batch, len(texts))
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	params := openaisdk.EmbeddingNewParams{
		Model: e.model,
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}
	if e.dims > 0 {
		params.Dimensions = openaisdk.Int(int64(e.dims))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embed request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("knowledge: expected %d vectors got %d", len(texts), len(resp.Data))
	}
	vectors := make([][]float64, 0, len(texts))
	for _, data := range resp.Data {
		vectors = append(vectors, append([]float64(nil), data.Embedding...))
	}
	return vectors, nil
}
