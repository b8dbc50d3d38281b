package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Placeholder text substituted for content we cannot extract. Binary formats
// without a text layer (images, slide decks) and extraction faults both
// degrade to a placeholder so the indexing path never fails on extraction.
const (
	imagePlaceholder = "This document is an image. Image text extraction (OCR) is not supported; " +
		"this placeholder stands in for its content."
	slidesPlaceholder = "This document is a slide deck. Slide content extraction is not supported; " +
		"this placeholder stands in for its content."
	failedPlaceholder = "The content of this document could not be extracted."
)

// FileExtractor reads a file from disk and returns its plain text. It never
// returns an error: unsupported and unreadable inputs yield placeholder text.
type FileExtractor struct{}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

func (e *FileExtractor) Extract(path string, fileType string) string {
	switch fileType {
	case "image":
		return imagePlaceholder
	case "ppt":
		return slidesPlaceholder
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("open document for extraction", "path", path, "error", err)
		return failedPlaceholder
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Warn("stat document for extraction", "path", path, "error", err)
		return failedPlaceholder
	}

	text, err := Extract(f, info.Size(), fileType)
	if err != nil {
		slog.Warn("extract document text", "path", path, "file_type", fileType, "error", err)
		return failedPlaceholder
	}
	return text
}

// Extract pulls plain text out of a document. fileType is a normalized type
// name ("pdf", "docx", "doc", "txt").
func Extract(data io.ReaderAt, size int64, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx", "doc":
		return extractDOCX(data, size)
	default:
		return extractTXT(data, size)
	}
}

func extractPDF(data io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}

	return buf.String(), nil
}

func extractDOCX(data io.ReaderAt, size int64) (string, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if filepath.Base(f.Name) == "document.xml" {
			rc, err := f.Open()
			if err != nil {
				return "", fmt.Errorf("open document.xml: %w", err)
			}
			content, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return "", fmt.Errorf("read document.xml: %w", err)
			}
			buf.WriteString(stripXMLTags(string(content)))
			break
		}
	}

	return buf.String(), nil
}

func extractTXT(data io.ReaderAt, size int64) (string, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read text file: %w", err)
	}
	return string(bytes.TrimSpace(buf)), nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
