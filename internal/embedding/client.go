package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nikhilbhutani/ragserver/internal/cache"
	"github.com/nikhilbhutani/ragserver/internal/llm"
)

const (
	// maxInputChars bounds the text sent to the provider to stay under
	// token limits.
	maxInputChars = 8000

	// concurrentBatchSize is how many embeddings are generated in parallel
	// within one batch of EmbedBatch.
	concurrentBatchSize = 5

	maxBackoff       = 15 * time.Second
	baseBackoff      = 1 * time.Second
	rateLimitBackoff = 2 * time.Second

	cacheTTL = 24 * time.Hour
)

type Config struct {
	MaxRetries int           // attempts per text, default 3
	Timeout    time.Duration // per-attempt timeout, default 10s
}

// Client wraps an embedding provider with per-attempt timeouts, retry with
// exponential backoff, and a mock fallback. Embed always yields a usable
// vector; the returned error only signals that the vector is a mock
// substitute rather than a real embedding.
type Client struct {
	provider   llm.Embedder // nil selects mock mode
	cache      *cache.Cache // optional
	maxRetries int
	timeout    time.Duration
}

func NewClient(provider llm.Embedder, c *cache.Cache, cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		provider:   provider,
		cache:      c,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
	}
}

// Configured reports whether a real provider backs this client.
func (c *Client) Configured() bool {
	return c.provider != nil
}

// Embed returns an embedding for text. With no provider configured it
// returns a mock vector immediately. Otherwise it retries the provider with
// backoff and, once retries are exhausted, substitutes a mock vector and
// reports the last provider error alongside it.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.provider == nil {
		return llm.MockEmbedding(), nil
	}

	text = sanitize(text)

	if vec, ok := c.cacheGet(ctx, text); ok {
		return vec, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		vec, err := c.embedOnce(ctx, text)
		if err == nil {
			c.cacheSet(ctx, text, vec)
			return vec, nil
		}
		lastErr = err

		if attempt < c.maxRetries {
			wait := backoffDelay(attempt, isRateLimited(err))
			slog.Warn("embedding attempt failed, backing off",
				"attempt", attempt,
				"wait", wait,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return llm.MockEmbedding(), fmt.Errorf("embedding canceled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	slog.Warn("embedding retries exhausted, falling back to mock vector", "error", lastErr)
	return llm.MockEmbedding(), fmt.Errorf("embedding failed after %d attempts: %w", c.maxRetries, lastErr)
}

// embedOnce races one provider call against the attempt timeout. The
// provider goroutine writes into its own buffered channel, so a late result
// after the timer fires is simply discarded.
func (c *Client) embedOnce(ctx context.Context, text string) ([]float32, error) {
	type result struct {
		vec []float32
		err error
	}
	ch := make(chan result, 1)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		vec, err := c.provider.Embed(callCtx, text)
		ch <- result{vec: vec, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.vec, r.err
	case <-timer.C:
		return nil, fmt.Errorf("embedding timed out after %s", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EmbedBatch embeds texts in batches of concurrentBatchSize. Batches run
// strictly in order; calls within a batch run concurrently and results are
// written back by index, so output order always matches input order. The
// error slice carries, per text, whether a mock vector was substituted.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, []error) {
	vecs := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	for start := 0; start < len(texts); start += concurrentBatchSize {
		end := min(start+concurrentBatchSize, len(texts))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				vecs[i], errs[i] = c.Embed(ctx, texts[i])
			}(i)
		}
		wg.Wait()
	}

	return vecs, errs
}

// sanitize collapses newlines to spaces and truncates to maxInputChars.
func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	runes := []rune(text)
	if len(runes) > maxInputChars {
		text = string(runes[:maxInputChars])
	}
	return text
}

// backoffDelay computes min(base * 2^(attempt-1), maxBackoff), with a larger
// base when the provider signaled backpressure.
func backoffDelay(attempt int, rateLimited bool) time.Duration {
	base := baseBackoff
	if rateLimited {
		base = rateLimitBackoff
	}
	delay := base << (attempt - 1)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests")
}

func (c *Client) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}
	var vec []float32
	if err := c.cache.Get(ctx, cacheKey(text), &vec); err != nil || len(vec) != llm.EmbeddingDim {
		return nil, false
	}
	return vec, true
}

func (c *Client) cacheSet(ctx context.Context, text string, vec []float32) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey(text), vec, cacheTTL); err != nil {
		slog.Debug("embedding cache write failed", "error", err)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + hex.EncodeToString(sum[:])
}
