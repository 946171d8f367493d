package extract

import (
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
)

// PageSpan maps a rune range [Start, End) of the extracted text to a
// 1-based page number. Formats without pagination produce no spans.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// Extracted is the normalized output every extractor produces. Downstream
// chunking consumes only this shape and stays format-agnostic.
type Extracted struct {
	Text  string
	Pages []PageSpan
}

// TextExtractor turns one uploaded file into extracted text.
type TextExtractor interface {
	Extensions() []string
	Extract(name string, data []byte) (Extracted, error)
}

var extractors = map[string]TextExtractor{}

func register(e TextExtractor) {
	for _, ext := range e.Extensions() {
		extractors[ext] = e
	}
}

func init() {
	register(plainExtractor{})
	register(markdownExtractor{})
	register(pdfExtractor{})
	register(docxExtractor{})
}

// Supported lists the accepted file extensions.
func Supported() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	return out
}

// Extract dispatches on the file extension.
func Extract(name string, data []byte) (Extracted, error) {
	ext := strings.ToLower(filepath.Ext(name))
	e, ok := extractors[ext]
	if !ok {
		return Extracted{}, apperr.Newf(apperr.UnsupportedFormat, "unsupported file type: %s", ext)
	}
	return e.Extract(name, data)
}

// plainExtractor passes .txt content through untouched.
type plainExtractor struct{}

func (plainExtractor) Extensions() []string { return []string{".txt"} }

func (plainExtractor) Extract(_ string, data []byte) (Extracted, error) {
	return Extracted{Text: stripBOM(string(data))}, nil
}

// markdownExtractor treats .md as plain text; markdown syntax embeds fine
// in chunks and keeps headings retrievable.
type markdownExtractor struct{}

func (markdownExtractor) Extensions() []string { return []string{".md"} }

func (markdownExtractor) Extract(_ string, data []byte) (Extracted, error) {
	return Extracted{Text: stripBOM(string(data))}, nil
}

func stripBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
