package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// Metric identifies how vectors are compared.
type Metric string

// MetricCosine compares L2-normalized vectors by dot product.
const MetricCosine Metric = "cosine"

// EmbeddingSpace pins the model, dimension and metric that passage and question
// vectors must share.
type EmbeddingSpace struct {
	Model     string
	Dimension int
	Metric    Metric
}

// DefaultEmbeddingSpace is Gemini's text-embedding-004 via the OpenAI-compatible API.
var DefaultEmbeddingSpace = EmbeddingSpace{
	Model:     "text-embedding-004",
	Dimension: 768,
	Metric:    MetricCosine,
}

// DefaultEmbeddingBase is Gemini's OpenAI-compatible endpoint.
const DefaultEmbeddingBase = "https://generativelanguage.googleapis.com/v1beta/openai"

// embedBatchSize keeps requests under the provider's 100-input limit.
const embedBatchSize = 96

// Embedder produces vectors in a fixed EmbeddingSpace.
type Embedder interface {
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Space() EmbeddingSpace
}

// OpenAIEmbedder calls any OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	space  EmbeddingSpace
}

// NewOpenAIEmbedder creates an embedder for baseURL (empty = Gemini) in space.
func NewOpenAIEmbedder(apiKey, baseURL string, space EmbeddingSpace) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("embedding API key not set")
	}
	if space.Model == "" || space.Dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding space %+v", space)
	}
	oc := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = DefaultEmbeddingBase
	}
	oc.BaseURL = baseURL
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(oc), space: space}, nil
}

// Space returns the embedder's vector space.
func (e *OpenAIEmbedder) Space() EmbeddingSpace { return e.space }

// EmbedBatch embeds texts in batches, preserving order via the response index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for lo := 0; lo < len(texts); lo += embedBatchSize {
		hi := min(lo+embedBatchSize, len(texts))
		metrics.EmbeddingCalls.Add(1)
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.space.Model),
			Input: texts[lo:hi],
		})
		if err != nil {
			metrics.EmbeddingErrors.Add(1)
			return nil, fmt.Errorf("embeddings [%d:%d]: %w", lo, hi, err)
		}
		if len(resp.Data) != hi-lo {
			metrics.EmbeddingErrors.Add(1)
			return nil, fmt.Errorf("embeddings [%d:%d]: got %d vectors", lo, hi, len(resp.Data))
		}
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= hi-lo || out[lo+d.Index] != nil {
				metrics.EmbeddingErrors.Add(1)
				return nil, fmt.Errorf("embeddings: index %d out of range or repeated", d.Index)
			}
			if len(d.Embedding) != e.space.Dimension {
				metrics.EmbeddingErrors.Add(1)
				return nil, fmt.Errorf("embeddings: dimension %d, want %d", len(d.Embedding), e.space.Dimension)
			}
			v := make([]float32, len(d.Embedding))
			copy(v, d.Embedding)
			l2normalize(v)
			out[lo+d.Index] = v
		}
	}
	return out, nil
}

// l2normalize normalizes a vector to unit length in place.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
