package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nikhilbhutani/ragserver/internal/rag"
)

// maxUploadBytes caps uploaded documents at 10MB.
const maxUploadBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".pptx": true,
	".ppt":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".txt":  true,
}

type RAGHandler struct {
	pipeline  *rag.Pipeline
	uploadDir string
}

func NewRAGHandler(pipeline *rag.Pipeline, uploadDir string) *RAGHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &RAGHandler{pipeline: pipeline, uploadDir: uploadDir}
}

// Index accepts a multipart upload (field "document"), spools it to a temp
// file, and runs the indexing pipeline. Validation failures are rejected
// before any processing happens.
func (h *RAGHandler) Index(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}
	if header.Size > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "file exceeds the 10MB upload limit")
		return
	}

	tmp, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	tmp.Close()

	result := h.pipeline.IndexDocument(r.Context(), tmp.Name(), header.Filename)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}

type chatRequest struct {
	Query string `json:"query"`
}

// Chat answers a question from indexed documents. The response body always
// carries a non-empty response string on the chat path.
func (h *RAGHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result := h.pipeline.Chat(r.Context(), req.Query)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, result)
}
