// Package rag assembles retrieval context for the chat path.
package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindvault/backend/internal/metrics"
	"github.com/mindvault/backend/internal/vector"
	"github.com/mindvault/backend/pkg/logger"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 4

const snippetSeparator = "\n\n---\n\n"

// Embedder produces one vector for a query string.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex answers nearest-neighbor queries with chunk metadata.
type VectorIndex interface {
	Query(ctx context.Context, queryEmbedding []float32, topK int) ([]vector.Match, error)
}

type ContextBuilder struct {
	embedder Embedder
	index    VectorIndex
	topK     int
}

func NewContextBuilder(embedder Embedder, index VectorIndex) *ContextBuilder {
	return &ContextBuilder{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
	}
}

// Build embeds the query, retrieves the topK best-matching chunks, and
// joins their text in ranking order. An empty retrieval result yields
// an empty string, not an error.
func (b *ContextBuilder) Build(ctx context.Context, query string) (string, error) {
	embedding, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := b.index.Query(ctx, embedding, b.topK)
	if err != nil {
		return "", fmt.Errorf("failed to query vector index: %w", err)
	}

	metrics.RetrievalMatches.Observe(float64(len(matches)))

	if len(matches) == 0 {
		logger.Debug("No retrieval matches for query")
		return "", nil
	}

	snippets := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.Metadata.Text == "" {
			continue
		}
		snippets = append(snippets, m.Metadata.Text)
	}

	logger.Debug("Retrieval context built",
		zap.Int("matches", len(matches)),
		zap.Int("snippets", len(snippets)),
	)

	return strings.Join(snippets, snippetSeparator), nil
}

// SystemPrompt renders the assistant instruction preamble with the
// retrieved context injected. With no context the assistant is told to
// say it lacks grounding rather than invent an answer.
func SystemPrompt(contextBlock string) string {
	return fmt.Sprintf(`You are Mind Vault, a knowledgeable assistant.
Answer the user's question using the background information below.
If the answer is not contained in the background information, politely
say that the provided documents do not cover it.

Background information:
%s`, contextBlock)
}
