package consensus

import (
	"context"
	"fmt"
	"math"
	"sync"

	"google.golang.org/genai"
)

// EmbeddingMatcher matches labels by cosine similarity of Gemini embeddings.
// It is the config-gated alternative to NormalizedMatcher for callers who
// want semantic matching across reworded labels.
type EmbeddingMatcher struct {
	client    *genai.Client
	model     string
	threshold float64

	mu    sync.Mutex
	cache map[string][]float32
}

// DefaultSimilarityThreshold is the cosine similarity above which two labels
// count as the same field.
const DefaultSimilarityThreshold = 0.85

// NewEmbeddingMatcher creates a matcher backed by the Gemini embedding API.
func NewEmbeddingMatcher(ctx context.Context, apiKey, model string, threshold float64) (*EmbeddingMatcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding matcher requires an API key")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &EmbeddingMatcher{
		client:    client,
		model:     model,
		threshold: threshold,
		cache:     make(map[string][]float32),
	}, nil
}

// Same implements Matcher.
func (m *EmbeddingMatcher) Same(ctx context.Context, a, b string) (bool, error) {
	na, nb := normalizeLabel(a), normalizeLabel(b)
	if na == "" || nb == "" {
		return false, nil
	}
	if na == nb {
		return true, nil
	}

	va, err := m.embed(ctx, na)
	if err != nil {
		return false, err
	}
	vb, err := m.embed(ctx, nb)
	if err != nil {
		return false, err
	}

	return cosineSimilarity(va, vb) >= m.threshold, nil
}

func (m *EmbeddingMatcher) embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	if v, ok := m.cache[text]; ok {
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := m.client.Models.EmbedContent(ctx, m.model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	v := result.Embeddings[0].Values
	m.mu.Lock()
	m.cache[text] = v
	m.mu.Unlock()
	return v, nil
}

// cosineSimilarity returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
