package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// QdrantIndex talks to Qdrant over its REST API. Collections use cosine
// distance at a fixed dimensionality; create-if-absent races between
// concurrent callers are resolved by Qdrant itself.
type QdrantIndex struct {
	baseURL string
	apiKey  string
	dim     int
	client  *http.Client
}

type QdrantConfig struct {
	URL       string
	APIKey    string
	Dimension int
}

func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	return &QdrantIndex{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		dim:     cfg.Dimension,
		client:  &http.Client{},
	}
}

func (q *QdrantIndex) Ping(ctx context.Context) error {
	return q.do(ctx, http.MethodGet, "/collections", nil, nil)
}

func (q *QdrantIndex) EnsureCollection(ctx context.Context, name string) (bool, error) {
	exists, err := q.collectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.dim,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		// A concurrent caller may have created it between our check and the
		// PUT; treat that as "already existed".
		if exists, checkErr := q.collectionExists(ctx, name); checkErr == nil && exists {
			return false, nil
		}
		return false, fmt.Errorf("create collection %s: %w", name, err)
	}
	return true, nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, name string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if _, err := q.EnsureCollection(ctx, name); err != nil {
		return err
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":      canonicalPointID(c.ID),
			"vector":  c.Embedding,
			"payload": pointPayload(c),
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		body := map[string]any{"points": points[start:end]}
		// wait=true blocks until the batch is durable before the next one
		// is issued.
		if err := q.do(ctx, http.MethodPut, "/collections/"+name+"/points?wait=true", body, nil); err != nil {
			return fmt.Errorf("upsert batch %d: %w", start/upsertBatchSize, err)
		}
	}

	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	exists, err := q.collectionExists(ctx, name)
	if err != nil {
		slog.Warn("qdrant collection check failed, returning no results", "collection", name, "error", err)
		return nil, nil
	}
	if !exists {
		// No documents indexed yet is a normal state.
		return nil, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req := map[string]any{
		"vector":          vector,
		"limit":           opts.Limit,
		"score_threshold": opts.MinScore,
		"with_payload":    true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(searchCtx, http.MethodPost, "/collections/"+name+"/points/search", req, &resp); err != nil {
		slog.Warn("qdrant search failed, returning no results", "collection", name, "error", err)
		return nil, nil
	}

	results := make([]SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, resultFromPayload(r.Payload, r.Score))
	}
	return results, nil
}

func (q *QdrantIndex) Describe(ctx context.Context, name string) (*CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int64 `json:"points_count"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodGet, "/collections/"+name, nil, &resp)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("describe collection %s: %w", name, err)
	}
	return &CollectionInfo{Name: name, VectorCount: resp.Result.PointsCount}, nil
}

func (q *QdrantIndex) DeleteCollection(ctx context.Context, name string) error {
	return q.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

func (q *QdrantIndex) collectionExists(ctx context.Context, name string) (bool, error) {
	err := q.do(ctx, http.MethodGet, "/collections/"+name, nil, nil)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// canonicalPointID maps a chunk id to an id Qdrant accepts. Chunk ids are
// normally uuids already; anything else is replaced with a fresh uuid, and
// the original id stays in the payload for traceability.
func canonicalPointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewString()
}

func pointPayload(c Chunk) map[string]any {
	payload := make(map[string]any, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		payload[k] = v
	}
	payload["content"] = c.Content
	payload["original_id"] = c.ID
	return payload
}

// resultFromPayload rebuilds a SearchResult, pulling the original id and
// content out of the payload and stripping both from the returned metadata.
func resultFromPayload(payload map[string]any, score float64) SearchResult {
	r := SearchResult{Score: score, Metadata: make(map[string]any, len(payload))}
	for k, v := range payload {
		switch k {
		case "content":
			r.Content, _ = v.(string)
		case "original_id":
			r.ID, _ = v.(string)
		default:
			r.Metadata[k] = v
		}
	}
	return r
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("qdrant returned %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

func (q *QdrantIndex) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{status: resp.StatusCode, body: string(bytes.TrimSpace(data))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
