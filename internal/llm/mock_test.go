package llm

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbeddingShape(t *testing.T) {
	vec := MockEmbedding()
	require.Len(t, vec, EmbeddingDim)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestMockEmbedderNeverFails(t *testing.T) {
	var e MockEmbedder
	vec, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)
	assert.Len(t, vec, EmbeddingDim)
}

func TestSynthesizeResponseNoContexts(t *testing.T) {
	assert.Equal(t, InsufficientContextMessage, SynthesizeResponse(nil))
	assert.Equal(t, InsufficientContextMessage, SynthesizeResponse([]string{}))
}

func TestSynthesizeResponseUsesFirstTwoContexts(t *testing.T) {
	contexts := []string{
		"Alpha one. Alpha two. Alpha three.",
		"Beta one. Beta two.",
		"Gamma should never appear.",
	}

	resp := SynthesizeResponse(contexts)

	assert.Contains(t, resp, "Alpha one.")
	assert.Contains(t, resp, "Alpha two.")
	assert.NotContains(t, resp, "Alpha three.")
	assert.Contains(t, resp, "Beta one.")
	assert.NotContains(t, resp, "Gamma")
	assert.True(t, strings.HasSuffix(resp, closingInvitation))
}

func TestFirstSentences(t *testing.T) {
	got := firstSentences("One. Two! Three? Four.", 3)
	assert.Equal(t, []string{"One.", "Two!", "Three?"}, got)

	// Text without terminal punctuation still yields a sentence.
	got = firstSentences("no punctuation here", 2)
	assert.Equal(t, []string{"no punctuation here"}, got)
}
