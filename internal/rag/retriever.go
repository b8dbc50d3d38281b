package rag

import (
	"context"
	"log/slog"

	"github.com/nikhilbhutani/ragserver/internal/embedding"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
)

// Retriever embeds a query and finds the most similar chunks. It never
// fails: embedding falls back to a mock vector and lookup failures degrade
// to an empty result set, so the chat path can always continue.
type Retriever struct {
	embed      *embedding.Client
	index      vectorstore.Index
	collection string
	topK       int
	minScore   float64
}

func NewRetriever(embed *embedding.Client, index vectorstore.Index, collection string, topK int, minScore float64) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	if minScore <= 0 {
		minScore = 0.7
	}
	return &Retriever{
		embed:      embed,
		index:      index,
		collection: collection,
		topK:       topK,
		minScore:   minScore,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) []vectorstore.SearchResult {
	vec, err := r.embed.Embed(ctx, query)
	if err != nil {
		// The mock substitute still has the right shape; retrieval will
		// simply be ungrounded.
		slog.Warn("query embedded in degraded mode", "error", err)
	}

	results, err := r.index.Search(ctx, r.collection, vec, vectorstore.SearchOptions{
		Limit:    r.topK,
		MinScore: r.minScore,
	})
	if err != nil {
		slog.Warn("vector search failed, continuing without context", "error", err)
		return nil
	}
	return results
}
