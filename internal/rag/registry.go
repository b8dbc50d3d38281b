package rag

import (
	"sort"
	"sync"
	"time"
)

// IndexedDocument is the summary record kept for each successfully indexed
// document. The registry is a volatile process-local cache; entries are lost
// on restart.
type IndexedDocument struct {
	DocumentID  string    `json:"documentId"`
	ChunksCount int       `json:"chunksCount"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"fileType"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Registry is a concurrency-safe map of indexed documents keyed by document
// id. Inserts are additive; nothing updates or deletes entries.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]IndexedDocument
}

func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]IndexedDocument)}
}

func (r *Registry) Add(doc IndexedDocument) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.DocumentID] = doc
}

// List returns a snapshot ordered by indexing time.
func (r *Registry) List() []IndexedDocument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]IndexedDocument, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].DocumentID < docs[j].DocumentID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}
