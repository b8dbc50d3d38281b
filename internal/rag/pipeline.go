package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/ragserver/internal/embedding"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
	"github.com/nikhilbhutani/ragserver/pkg/chunker"
)

const fallbackResponse = "I'm sorry, something went wrong while answering that. Please try again in a moment."

// Extractor turns an uploaded file into plain text. Implementations never
// fail: unsupported and unreadable inputs yield placeholder text.
type Extractor interface {
	Extract(path string, fileType string) string
}

// IndexResult is the structured outcome of an indexing request.
type IndexResult struct {
	Success        bool   `json:"success"`
	DocumentID     string `json:"documentId,omitempty"`
	CollectionName string `json:"collectionName,omitempty"`
	DocumentCount  int    `json:"documentCount,omitempty"`
	Filename       string `json:"filename,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatResult is the structured outcome of a chat request. Response is never
// empty on the chat path: it carries a real answer, a mock synthesis, or an
// apologetic fallback.
type ChatResult struct {
	Success  bool      `json:"success"`
	Query    string    `json:"query,omitempty"`
	Response string    `json:"response"`
	Contexts []Context `json:"contexts"`
	Error    string    `json:"error,omitempty"`
}

// Status is the system snapshot served by the status endpoint.
type Status struct {
	QdrantConnected  bool              `json:"qdrantConnected"`
	OpenAIAvailable  bool              `json:"openaiAvailable"`
	GlobalCollection CollectionStatus  `json:"globalCollection"`
	IndexedDocuments []IndexedDocument `json:"indexedDocuments"`
}

type CollectionStatus struct {
	Name        string `json:"name"`
	Exists      bool   `json:"exists"`
	VectorCount int64  `json:"vectorCount"`
}

type PipelineConfig struct {
	Collection   string
	ChunkSize    int
	ChunkOverlap int
	MaxChunks    int // documents producing more chunks are truncated, default 25
	TopK         int
	MinScore     float64
}

// Pipeline wires chunking, embedding, the vector index, and generation into
// the two top-level flows: document indexing and grounded chat. All faults
// are converted to result values at this boundary; nothing escapes as an
// error or panic.
type Pipeline struct {
	chunkOpts  chunker.Options
	maxChunks  int
	collection string

	embed     *embedding.Client
	index     vectorstore.Index
	retriever *Retriever
	generator *Generator
	extractor Extractor
	registry  *Registry
}

func NewPipeline(
	index vectorstore.Index,
	embed *embedding.Client,
	generator *Generator,
	extractor Extractor,
	registry *Registry,
	cfg PipelineConfig,
) *Pipeline {
	chunkOpts := chunker.DefaultOptions()
	if cfg.ChunkSize > 0 {
		chunkOpts.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		chunkOpts.Overlap = cfg.ChunkOverlap
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = 25
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	return &Pipeline{
		chunkOpts:  chunkOpts,
		maxChunks:  cfg.MaxChunks,
		collection: cfg.Collection,
		embed:      embed,
		index:      index,
		retriever:  NewRetriever(embed, index, cfg.Collection, cfg.TopK, cfg.MinScore),
		generator:  generator,
		extractor:  extractor,
		registry:   registry,
	}
}

// Collection returns the name of the single global collection.
func (p *Pipeline) Collection() string {
	return p.collection
}

// IndexDocument extracts, chunks, embeds, and stores one uploaded file. The
// temporary file at filePath is always removed, success or failure.
func (p *Pipeline) IndexDocument(ctx context.Context, filePath, filename string) IndexResult {
	defer func() {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("remove temp upload", "path", filePath, "error", err)
		}
	}()

	fileType := DetectFileType(filename)
	text := p.extractor.Extract(filePath, fileType)

	docID := uuid.NewString()
	metadata := map[string]any{
		"source_file": filename,
		"file_type":   fileType,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
		"document_id": docID,
	}

	chunks := chunker.Split(text, p.chunkOpts, metadata)
	if len(chunks) == 0 {
		return IndexResult{Success: false, Error: "document contains no extractable text"}
	}
	if len(chunks) > p.maxChunks {
		slog.Info("document truncated to chunk ceiling",
			"document_id", docID,
			"produced", len(chunks),
			"ceiling", p.maxChunks,
		)
		chunks = chunks[:p.maxChunks]
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, embedErrs := p.embed.EmbedBatch(ctx, texts)

	stored := make([]vectorstore.Chunk, len(chunks))
	for i, c := range chunks {
		stored[i] = vectorstore.Chunk{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: vectors[i],
			Metadata:  c.Metadata,
			EmbedErr:  embedErrs[i],
		}
	}

	if err := p.index.Upsert(ctx, p.collection, stored); err != nil {
		slog.Error("vector upsert failed", "document_id", docID, "error", err)
		return IndexResult{Success: false, Error: fmt.Sprintf("store document: %v", err)}
	}

	p.registry.Add(IndexedDocument{
		DocumentID:  docID,
		ChunksCount: len(chunks),
		Filename:    filename,
		FileType:    fileType,
		CreatedAt:   time.Now().UTC(),
	})

	slog.Info("document indexed",
		"document_id", docID,
		"filename", filename,
		"chunks", len(chunks),
		"collection", p.collection,
	)

	return IndexResult{
		Success:        true,
		DocumentID:     docID,
		CollectionName: p.collection,
		DocumentCount:  len(chunks),
		Filename:       filename,
	}
}

// Chat answers a question from the indexed documents. Internal faults are
// converted into a structured failure with a user-safe response string.
func (p *Pipeline) Chat(ctx context.Context, query string) (result ChatResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chat pipeline panic", "panic", r)
			result = ChatResult{
				Success:  false,
				Query:    query,
				Response: fallbackResponse,
				Contexts: []Context{},
				Error:    "internal error",
			}
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return ChatResult{
			Success:  false,
			Response: fallbackResponse,
			Contexts: []Context{},
			Error:    "query is required",
		}
	}

	results := p.retriever.Retrieve(ctx, query)
	answer := p.generator.Generate(ctx, query, results)

	return ChatResult{
		Success:  true,
		Query:    query,
		Response: answer.Response,
		Contexts: answer.Contexts,
	}
}

// Status reports index connectivity, provider availability, the global
// collection, and the registry snapshot.
func (p *Pipeline) Status(ctx context.Context) Status {
	connected := p.index.Ping(ctx) == nil

	collection := CollectionStatus{Name: p.collection}
	if info, err := p.index.Describe(ctx, p.collection); err == nil && info != nil {
		collection.Exists = true
		collection.VectorCount = info.VectorCount
	}

	return Status{
		QdrantConnected:  connected,
		OpenAIAvailable:  p.embed.Configured(),
		GlobalCollection: collection,
		IndexedDocuments: p.registry.List(),
	}
}

// DetectFileType infers the document type from the filename extension.
// Unknown extensions are treated as plain text.
func DetectFileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".doc":
		return "doc"
	case ".jpg", ".jpeg", ".png":
		return "image"
	case ".pptx", ".ppt":
		return "ppt"
	default:
		return "txt"
	}
}
