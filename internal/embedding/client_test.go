package embedding

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragserver/internal/llm"
)

type stubEmbedder struct {
	calls int32
	fn    func(text string) ([]float32, error)
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.fn(text)
}

func unitVector() []float32 {
	vec := make([]float32, llm.EmbeddingDim)
	vec[0] = 1
	return vec
}

func TestEmbedMockModeWithoutProvider(t *testing.T) {
	c := NewClient(nil, nil, Config{})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, llm.EmbeddingDim)
	assert.False(t, c.Configured())
}

func TestEmbedReturnsProviderVector(t *testing.T) {
	stub := &stubEmbedder{fn: func(string) ([]float32, error) { return unitVector(), nil }}
	c := NewClient(stub, nil, Config{})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, unitVector(), vec)
	assert.True(t, c.Configured())
}

func TestEmbedFallsBackToMockAfterFailure(t *testing.T) {
	stub := &stubEmbedder{fn: func(string) ([]float32, error) { return nil, errors.New("boom") }}
	c := NewClient(stub, nil, Config{MaxRetries: 1})

	vec, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempts")
	// The caller still gets a usable vector.
	assert.Len(t, vec, llm.EmbeddingDim)
	assert.EqualValues(t, 1, atomic.LoadInt32(&stub.calls))
}

func TestEmbedTimeoutTreatedAsFailure(t *testing.T) {
	stub := &stubEmbedder{fn: func(string) ([]float32, error) {
		time.Sleep(500 * time.Millisecond)
		return unitVector(), nil
	}}
	c := NewClient(stub, nil, Config{MaxRetries: 1, Timeout: 20 * time.Millisecond})

	vec, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Len(t, vec, llm.EmbeddingDim)
}

func TestEmbedSanitizesInput(t *testing.T) {
	var got string
	stub := &stubEmbedder{fn: func(text string) ([]float32, error) {
		got = text
		return unitVector(), nil
	}}
	c := NewClient(stub, nil, Config{})

	long := strings.Repeat("line one\nline two\n", 1000)
	_, err := c.Embed(context.Background(), long)
	require.NoError(t, err)

	assert.NotContains(t, got, "\n")
	assert.LessOrEqual(t, len([]rune(got)), maxInputChars)
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 1*time.Second, backoffDelay(1, false))
	assert.Equal(t, 2*time.Second, backoffDelay(2, false))
	assert.Equal(t, 4*time.Second, backoffDelay(3, false))
	assert.Equal(t, 15*time.Second, backoffDelay(6, false))

	assert.Equal(t, 2*time.Second, backoffDelay(1, true))
	assert.Equal(t, 4*time.Second, backoffDelay(2, true))
	assert.Equal(t, 8*time.Second, backoffDelay(3, true))
	assert.Equal(t, 15*time.Second, backoffDelay(4, true))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(errors.New("429 Too Many Requests")))
	assert.True(t, isRateLimited(errors.New("openai: rate limit exceeded")))
	assert.False(t, isRateLimited(errors.New("connection refused")))
	assert.False(t, isRateLimited(nil))
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	stub := &stubEmbedder{fn: func(text string) ([]float32, error) {
		vec := make([]float32, llm.EmbeddingDim)
		vec[0] = float32(len(text))
		return vec, nil
	}}
	c := NewClient(stub, nil, Config{})

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = strings.Repeat("a", i+1)
	}

	vecs, errs := c.EmbedBatch(context.Background(), texts)
	require.Len(t, vecs, len(texts))
	for i := range texts {
		require.NoError(t, errs[i])
		assert.EqualValues(t, len(texts[i]), vecs[i][0], "result out of order at index %d", i)
	}
	assert.EqualValues(t, len(texts), atomic.LoadInt32(&stub.calls))
}

func TestEmbedBatchCarriesPerChunkErrors(t *testing.T) {
	stub := &stubEmbedder{fn: func(text string) ([]float32, error) {
		if strings.HasPrefix(text, "bad") {
			return nil, errors.New("boom")
		}
		return unitVector(), nil
	}}
	c := NewClient(stub, nil, Config{MaxRetries: 1})

	vecs, errs := c.EmbedBatch(context.Background(), []string{"good", "bad one", "good again"})
	require.Len(t, vecs, 3)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])
	// The failed entry still holds a mock vector of the right shape.
	assert.Len(t, vecs[1], llm.EmbeddingDim)
}
