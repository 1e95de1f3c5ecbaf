package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// RetrievalK is the number of passages handed to the generator.
const RetrievalK = 10

// Index is a request-scoped in-memory vector index over passages.
// vectors[i] belongs to passages[i].
type Index struct {
	space    EmbeddingSpace
	passages []Passage
	vectors  [][]float32
}

// Len returns the number of indexed passages.
func (idx *Index) Len() int { return len(idx.passages) }

// Space returns the embedding space the index was built in.
func (idx *Index) Space() EmbeddingSpace { return idx.space }

// BuildIndex embeds every passage and returns the populated index.
// Any embedding failure fails the whole build.
func BuildIndex(ctx context.Context, emb Embedder, passages []Passage) (*Index, error) {
	if len(passages) == 0 {
		return nil, newError(KindEmbedding, errors.New("no passages to index"))
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, newError(KindEmbedding, err)
	}
	if len(vectors) != len(passages) {
		return nil, newError(KindEmbedding, fmt.Errorf("got %d vectors for %d passages", len(vectors), len(passages)))
	}
	space := emb.Space()
	for i, v := range vectors {
		if len(v) != space.Dimension {
			return nil, newError(KindEmbedding, fmt.Errorf("passage %d: dimension %d, want %d", i, len(v), space.Dimension))
		}
	}
	return &Index{space: space, passages: passages, vectors: vectors}, nil
}

// Search returns up to k passages ordered by similarity to query, highest first.
// Equal scores keep insertion order.
func (idx *Index) Search(query []float32, k int) ([]ScoredPassage, error) {
	if len(query) != idx.space.Dimension {
		return nil, fmt.Errorf("query dimension %d, index dimension %d", len(query), idx.space.Dimension)
	}
	results := make([]ScoredPassage, len(idx.passages))
	for i := range idx.passages {
		results[i] = ScoredPassage{Passage: idx.passages[i], Score: similarity(idx.space.Metric, query, idx.vectors[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Retrieve embeds question and returns the k nearest passages in rank order.
func Retrieve(ctx context.Context, emb Embedder, idx *Index, question string, k int) ([]ScoredPassage, error) {
	if emb.Space() != idx.space {
		return nil, newError(KindEmbedding, fmt.Errorf("embedder space %+v differs from index space %+v", emb.Space(), idx.space))
	}
	vecs, err := emb.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, newError(KindEmbedding, fmt.Errorf("embed question: %w", err))
	}
	if len(vecs) != 1 {
		return nil, newError(KindEmbedding, fmt.Errorf("got %d vectors for question", len(vecs)))
	}
	results, err := idx.Search(vecs[0], k)
	if err != nil {
		return nil, newError(KindEmbedding, err)
	}
	return results, nil
}

// similarity scores a against b. Vectors are unit length, so cosine is the dot product.
func similarity(m Metric, a, b []float32) float32 {
	switch m {
	case MetricCosine:
		var dot float32
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	default:
		return CosineSimilarity(a, b)
	}
}

// CosineSimilarity computes the cosine of the angle between a and b, for vectors
// that are not known to be normalized.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
