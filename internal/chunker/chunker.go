package chunker

import (
	"strings"
	"unicode"

	"github.com/mohammad-safakhou/docchat/internal/extract"
)

// Chunk is one bounded span of a document's extracted text, the unit of
// embedding and retrieval.
type Chunk struct {
	Text   string
	Source string
	Page   int // 1-based page at the chunk's starting offset; 0 when unpaginated
	Offset int // rune offset within the extracted text, for stable ordering
}

// Config carries the splitting policy.
type Config struct {
	Size    int // max chunk length in runes
	Overlap int // runes shared between consecutive chunks
}

// boundaryTolerance is how far back from the size limit the splitter will
// move to land on whitespace instead of cutting mid-word.
const boundaryTolerance = 120

// Split cuts extracted text into overlapping chunks, preserving order.
// Consecutive chunks share exactly cfg.Overlap runes so facts spanning a
// cut stay retrievable. Empty input yields no chunks.
func Split(doc extract.Extracted, source string, cfg Config) []Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}
	runes := []rune(doc.Text)
	if len(runes) <= cfg.Size {
		return []Chunk{{
			Text:   doc.Text,
			Source: source,
			Page:   pageAt(doc.Pages, 0),
			Offset: 0,
		}}
	}

	var chunks []Chunk
	for start := 0; start < len(runes); {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start+cfg.Overlap, end)
		}
		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, Chunk{
				Text:   text,
				Source: source,
				Page:   pageAt(doc.Pages, start),
				Offset: start,
			})
		}
		if end == len(runes) {
			break
		}
		start = end - cfg.Overlap
	}
	return chunks
}

// cutPoint moves the hard limit back to the nearest paragraph break, then
// any whitespace, within the tolerance window. Falls back to a hard cut.
// The cut never moves back to min or earlier, so with min set to the end
// of the previous overlap the next chunk always starts past the current
// one even when the tolerance window exceeds size minus overlap.
func cutPoint(runes []rune, min, end int) int {
	low := end - boundaryTolerance
	if low < min {
		low = min
	}
	if low < 1 {
		low = 1
	}
	for i := end; i > low; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := end; i > low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// pageAt resolves the page containing a rune offset. A chunk that straddles
// a page boundary reports its starting page. Offsets falling in the joint
// between two page spans inherit the earlier page.
func pageAt(pages []extract.PageSpan, off int) int {
	page := 0
	for _, span := range pages {
		if span.Start > off {
			break
		}
		page = span.Page
	}
	return page
}
