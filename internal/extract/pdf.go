package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
)

// pdfExtractor pulls the embedded text layer out of a PDF, page by page,
// recording which rune range of the output belongs to which page.
type pdfExtractor struct{}

func (pdfExtractor) Extensions() []string { return []string{".pdf"} }

func (pdfExtractor) Extract(name string, data []byte) (out Extracted, err error) {
	// The pdf library panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			out = Extracted{}
			err = apperr.Newf(apperr.ExtractionError, "parsing pdf %s: %v", name, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extracted{}, apperr.Wrap(apperr.ExtractionError, "parsing pdf "+name, err)
	}

	var b strings.Builder
	var pages []PageSpan
	offset := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, perr := p.GetPlainText(nil)
		if perr != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
			offset++
		}
		n := utf8.RuneCountInString(text)
		pages = append(pages, PageSpan{Page: i, Start: offset, End: offset + n})
		b.WriteString(text)
		offset += n
	}

	if b.Len() == 0 {
		return Extracted{}, apperr.Newf(apperr.ExtractionError, "%s has no extractable text (scanned pdf?)", name)
	}
	return Extracted{Text: b.String(), Pages: pages}, nil
}
