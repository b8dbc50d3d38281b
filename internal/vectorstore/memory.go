package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force cosine-similarity store. It backs the
// "memory" vector backend for dependency-free runs and is the workhorse for
// tests. All state is lost on process exit.
type MemoryIndex struct {
	mu          sync.RWMutex
	dim         int
	collections map[string][]memPoint
}

type memPoint struct {
	id       string
	content  string
	metadata map[string]any
	vector   []float32
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dim:         dimension,
		collections: make(map[string][]memPoint),
	}
}

func (m *MemoryIndex) Ping(context.Context) error { return nil }

func (m *MemoryIndex) EnsureCollection(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return false, nil
	}
	m.collections[name] = nil
	return true, nil
}

func (m *MemoryIndex) Upsert(_ context.Context, name string, chunks []Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; !ok {
		m.collections[name] = nil
	}
	for _, c := range chunks {
		if len(c.Embedding) != m.dim {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", c.ID, len(c.Embedding), m.dim)
		}
	}
	for _, c := range chunks {
		m.collections[name] = append(m.collections[name], memPoint{
			id:       c.ID,
			content:  c.Content,
			metadata: c.Metadata,
			vector:   c.Embedding,
		})
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, name string, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	m.mu.RLock()
	defer m.mu.RUnlock()

	points, ok := m.collections[name]
	if !ok {
		return nil, nil
	}

	var results []SearchResult
	for _, p := range points {
		score := cosine(p.vector, vector)
		if score < opts.MinScore {
			continue
		}
		results = append(results, SearchResult{
			ID:       p.id,
			Content:  p.content,
			Metadata: p.metadata,
			Score:    score,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func (m *MemoryIndex) Describe(_ context.Context, name string) (*CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	points, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	return &CollectionInfo{Name: name, VectorCount: int64(len(points))}, nil
}

func (m *MemoryIndex) DeleteCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
