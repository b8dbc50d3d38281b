package rag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragserver/internal/llm"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
)

type stubCompleter struct {
	lastReq llm.ChatRequest
	fn      func(llm.ChatRequest) (string, error)
}

func (s *stubCompleter) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	s.lastReq = req
	return s.fn(req)
}

func sampleResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{
			ID:       "c1",
			Content:  "The sky is blue.",
			Score:    0.91,
			Metadata: map[string]any{"source_file": "sky.txt"},
		},
	}
}

func TestGenerateWithProvider(t *testing.T) {
	stub := &stubCompleter{fn: func(llm.ChatRequest) (string, error) {
		return "The sky is blue, according to the context.", nil
	}}
	g := NewGenerator(stub, GeneratorConfig{Model: "test-model"})

	answer := g.Generate(t.Context(), "what color is the sky?", sampleResults())

	assert.Equal(t, "The sky is blue, according to the context.", answer.Response)
	require.Len(t, answer.Contexts, 1)
	assert.Equal(t, "sky.txt", answer.Contexts[0].Source)
	assert.InDelta(t, 0.91, answer.Contexts[0].Score, 1e-9)

	// The prompt grounds the question in the retrieved context.
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, "system", stub.lastReq.Messages[0].Role)
	assert.Contains(t, stub.lastReq.Messages[1].Content, "[Context 1]")
	assert.Contains(t, stub.lastReq.Messages[1].Content, "The sky is blue.")
	assert.Contains(t, stub.lastReq.Messages[1].Content, "Question: what color is the sky?")
	assert.Equal(t, "test-model", stub.lastReq.Model)
}

func TestGenerateWithoutProvider(t *testing.T) {
	g := NewGenerator(nil, GeneratorConfig{})

	answer := g.Generate(t.Context(), "anything", sampleResults())

	assert.Contains(t, answer.Response, "The sky is blue.")
	assert.Contains(t, answer.Response, "Based on the indexed documents")
}

func TestGenerateProviderFailureFallsBack(t *testing.T) {
	stub := &stubCompleter{fn: func(llm.ChatRequest) (string, error) {
		return "", errors.New("upstream unavailable")
	}}
	g := NewGenerator(stub, GeneratorConfig{})

	answer := g.Generate(t.Context(), "anything", sampleResults())

	assert.Contains(t, answer.Response, "The sky is blue.")
	assert.NotEmpty(t, answer.Response)
}

func TestGenerateTimeoutFallsBack(t *testing.T) {
	stub := &stubCompleter{fn: func(llm.ChatRequest) (string, error) {
		time.Sleep(500 * time.Millisecond)
		return "too late", nil
	}}
	g := NewGenerator(stub, GeneratorConfig{Timeout: 20 * time.Millisecond})

	answer := g.Generate(t.Context(), "anything", sampleResults())

	assert.NotEqual(t, "too late", answer.Response)
	assert.Contains(t, answer.Response, "The sky is blue.")
}

func TestGenerateNoResults(t *testing.T) {
	g := NewGenerator(nil, GeneratorConfig{})

	answer := g.Generate(t.Context(), "anything", nil)

	assert.Equal(t, llm.InsufficientContextMessage, answer.Response)
	assert.Empty(t, answer.Contexts)
}

func TestBuildPromptNoContext(t *testing.T) {
	prompt := buildPrompt("why?", nil)
	assert.Contains(t, prompt, "No context was retrieved")
	assert.Contains(t, prompt, "Question: why?")
}
