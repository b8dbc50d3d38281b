package vectorstore

import (
	"context"
	"time"
)

// Chunk is an embedded slice of a document ready to be stored.
type Chunk struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any

	// EmbedErr is set when the embedding provider failed and a mock vector
	// was substituted. The chunk is still stored, but it is not semantically
	// grounded.
	EmbedErr error
}

// SearchResult is one nearest-neighbor hit. ID is the chunk's original id,
// regardless of the id format the backend stored the point under.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

type SearchOptions struct {
	Limit    int           // default 5
	MinScore float64       // default 0.7
	Timeout  time.Duration // default 30s
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = 5
	}
	if o.MinScore <= 0 {
		o.MinScore = 0.7
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name        string
	VectorCount int64
}

// Index is a named-collection vector store with cosine similarity.
//
// Search degrades gracefully: an absent collection or a failed/timed-out
// lookup yields an empty result set, never an error. Create and upsert
// failures are surfaced, since silently dropping a document is worse than
// reporting the failure.
type Index interface {
	// EnsureCollection creates the collection if absent. The returned flag
	// is true when this call created it.
	EnsureCollection(ctx context.Context, name string) (created bool, err error)

	// Upsert writes chunks into the collection in durable batches. Earlier
	// batches already written stay in place when a later batch fails.
	Upsert(ctx context.Context, name string, chunks []Chunk) error

	Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchResult, error)

	// Describe returns nil for an absent collection.
	Describe(ctx context.Context, name string) (*CollectionInfo, error)

	DeleteCollection(ctx context.Context, name string) error

	Ping(ctx context.Context) error
}

// upsertBatchSize bounds memory and request size per write; each batch waits
// for durability before the next is issued.
const upsertBatchSize = 100
