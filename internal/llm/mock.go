package llm

import (
	"context"
	"math"
	"math/rand"
	"strings"
)

// InsufficientContextMessage is returned verbatim when no context was
// retrieved for a question and no real completion provider is available.
const InsufficientContextMessage = "I don't have enough information in the indexed documents to answer that. " +
	"Try uploading a relevant document first."

const closingInvitation = "Let me know if you'd like more detail on any of this."

// MockEmbedder stands in when no embedding provider is configured. Vectors
// have the right shape but carry no semantic meaning.
type MockEmbedder struct{}

func (MockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return MockEmbedding(), nil
}

// MockEmbedding returns a random vector of EmbeddingDim components drawn
// uniformly from [-1, 1], normalized to unit L2 length.
func MockEmbedding() []float32 {
	vec := make([]float32, EmbeddingDim)
	var norm float64
	for i := range vec {
		v := rand.Float64()*2 - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// SynthesizeResponse builds a canned answer from retrieved context texts.
// It is the fallback for an unconfigured, failing, or timed-out completion
// provider, so the chat path always produces some answer string.
func SynthesizeResponse(contexts []string) string {
	if len(contexts) == 0 {
		return InsufficientContextMessage
	}

	var parts []string
	for _, c := range contexts {
		if len(parts) >= 2 {
			break
		}
		excerpt := strings.Join(firstSentences(c, 2), " ")
		if excerpt != "" {
			parts = append(parts, excerpt)
		}
	}
	if len(parts) == 0 {
		return InsufficientContextMessage
	}

	var sb strings.Builder
	sb.WriteString("Based on the indexed documents: ")
	sb.WriteString(strings.Join(parts, " "))
	sb.WriteString(" ")
	sb.WriteString(closingInvitation)
	return sb.String()
}

func firstSentences(text string, n int) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n') {
			s := strings.TrimSpace(current.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			if len(sentences) >= n {
				return sentences
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" && len(sentences) < n {
		sentences = append(sentences, s)
	}
	return sentences
}
