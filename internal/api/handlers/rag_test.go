package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/ragserver/internal/embedding"
	"github.com/nikhilbhutani/ragserver/internal/rag"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
	"github.com/nikhilbhutani/ragserver/pkg/textextract"
)

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func newTestHandler(t *testing.T) *RAGHandler {
	t.Helper()
	pipeline := rag.NewPipeline(
		vectorstore.NewMemoryIndex(4),
		embedding.NewClient(fixedEmbedder{}, nil, embedding.Config{}),
		rag.NewGenerator(nil, rag.GeneratorConfig{}),
		textextract.NewFileExtractor(),
		rag.NewRegistry(),
		rag.PipelineConfig{},
	)
	return NewRAGHandler(pipeline, t.TempDir())
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestIndexUploadSuccess(t *testing.T) {
	h := newTestHandler(t)
	buf, contentType := multipartUpload(t, "notes.txt", "Some useful project notes about deadlines.")

	req := httptest.NewRequest(http.MethodPost, "/api/rag/index", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Index(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["documentId"])
	assert.Equal(t, "notes.txt", body["filename"])
	assert.EqualValues(t, 1, body["documentCount"])
}

func TestIndexRejectsUnsupportedExtension(t *testing.T) {
	h := newTestHandler(t)
	buf, contentType := multipartUpload(t, "malware.exe", "MZ...")

	req := httptest.NewRequest(http.MethodPost, "/api/rag/index", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Index(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "unsupported file extension")
}

func TestIndexRequiresDocumentField(t *testing.T) {
	h := newTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/rag/index", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.Index(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "document file is required")
}

func TestIndexEmptyDocumentFails(t *testing.T) {
	h := newTestHandler(t)
	buf, contentType := multipartUpload(t, "blank.txt", "   ")

	req := httptest.NewRequest(http.MethodPost, "/api/rag/index", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Index(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "no extractable text")
}

func TestChatRequiresQuery(t *testing.T) {
	h := newTestHandler(t)

	for _, payload := range []string{`{}`, `{"query":""}`, `{"query":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/rag/chat", strings.NewReader(payload))
		rec := httptest.NewRecorder()

		h.Chat(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
		body := decodeBody(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "query is required", body["error"])
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/rag/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["error"], "invalid request body")
}

func TestChatRoundTrip(t *testing.T) {
	h := newTestHandler(t)

	buf, contentType := multipartUpload(t, "facts.txt", "The deploy window opens at 9am on Tuesdays.")
	indexReq := httptest.NewRequest(http.MethodPost, "/api/rag/index", buf)
	indexReq.Header.Set("Content-Type", contentType)
	indexRec := httptest.NewRecorder()
	h.Index(indexRec, indexReq)
	require.Equal(t, http.StatusOK, indexRec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/rag/chat", strings.NewReader(`{"query":"when is the deploy window?"}`))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["response"], "deploy window")

	contexts, ok := body["contexts"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, contexts)
	first := contexts[0].(map[string]any)
	assert.Equal(t, "facts.txt", first["source"])
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestHandler(t)
	status := NewStatusHandler(h.pipeline)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	status.Status(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	st, ok := body["status"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, st["qdrantConnected"])
	assert.Equal(t, true, st["openaiAvailable"])
	assert.Contains(t, st, "globalCollection")
	assert.Contains(t, st, "indexedDocuments")
}
