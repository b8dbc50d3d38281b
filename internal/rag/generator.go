package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/ragserver/internal/llm"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
	"github.com/nikhilbhutani/ragserver/pkg/tokenizer"
)

const groundingInstruction = `You are a helpful assistant that answers questions using only the provided context.
Answer strictly from the context below. If the context does not contain enough information to answer the question, say so explicitly instead of guessing.`

// Context is one retrieved chunk surfaced back to the caller for citation.
type Context struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// Answer is the outcome of the generation step.
type Answer struct {
	Response string
	Contexts []Context
}

type GeneratorConfig struct {
	Model       string
	Temperature float64       // default 0.7
	MaxTokens   int           // default 500
	Timeout     time.Duration // default 30s
}

// Generator assembles a grounded prompt from retrieved chunks and calls the
// completion provider. With no provider, or on provider failure or timeout,
// it synthesizes a mock response so the caller always gets an answer string.
type Generator struct {
	completer   llm.Completer // nil selects mock mode
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewGenerator(completer llm.Completer, cfg GeneratorConfig) *Generator {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Generator{
		completer:   completer,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

func (g *Generator) Generate(ctx context.Context, query string, results []vectorstore.SearchResult) *Answer {
	contexts := make([]Context, len(results))
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Content
		contexts[i] = Context{
			Content: r.Content,
			Score:   r.Score,
			Source:  sourceOf(r),
		}
	}

	return &Answer{
		Response: g.complete(ctx, query, texts),
		Contexts: contexts,
	}
}

func (g *Generator) complete(ctx context.Context, query string, contexts []string) string {
	if g.completer == nil {
		return llm.SynthesizeResponse(contexts)
	}

	prompt := buildPrompt(query, contexts)
	slog.Debug("generating grounded answer",
		"model", g.model,
		"contexts", len(contexts),
		"prompt_tokens_est", tokenizer.CountTokens(prompt),
	)

	response, err := g.completeOnce(ctx, llm.ChatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: "system", Content: groundingInstruction},
			{Role: "user", Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		slog.Warn("completion failed, falling back to mock response", "error", err)
		return llm.SynthesizeResponse(contexts)
	}
	return response
}

// completeOnce races the provider call against the request timeout; a late
// provider result is discarded.
func (g *Generator) completeOnce(ctx context.Context, req llm.ChatRequest) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		text, err := g.completer.Complete(callCtx, req)
		ch <- result{text: text, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-timer.C:
		return "", fmt.Errorf("completion timed out after %s", g.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func buildPrompt(query string, contexts []string) string {
	var sb strings.Builder
	if len(contexts) == 0 {
		sb.WriteString("No context was retrieved for this question.\n\n")
	}
	for i, c := range contexts {
		fmt.Fprintf(&sb, "[Context %d]\n%s\n\n", i+1, c)
	}
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}

func sourceOf(r vectorstore.SearchResult) string {
	if src, ok := r.Metadata["source_file"].(string); ok {
		return src
	}
	return ""
}
