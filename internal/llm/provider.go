package llm

import "context"

// EmbeddingDim is the dimensionality of all embedding vectors in the system.
// It matches text-embedding-3-small; the vector index is created with the
// same size, so every provider must produce vectors of exactly this length.
const EmbeddingDim = 1536

// Embedder generates a fixed-dimension embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer produces a chat completion from a message transcript.
type Completer interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest is the input for chat completions.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}
