package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
)

// docxExtractor reads the word/document.xml body out of the .docx zip
// container. Word paragraphs become newline-separated lines; .docx carries
// no page information before rendering, so no page map is produced.
type docxExtractor struct{}

func (docxExtractor) Extensions() []string { return []string{".docx"} }

func (docxExtractor) Extract(name string, data []byte) (Extracted, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extracted{}, apperr.Wrap(apperr.ExtractionError, "opening docx "+name, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return Extracted{}, apperr.Newf(apperr.ExtractionError, "%s is not a word document (missing document.xml)", name)
	}

	rc, err := doc.Open()
	if err != nil {
		return Extracted{}, apperr.Wrap(apperr.ExtractionError, "reading docx "+name, err)
	}
	defer rc.Close()

	text, err := documentText(rc)
	if err != nil {
		return Extracted{}, apperr.Wrap(apperr.ExtractionError, "parsing docx "+name, err)
	}
	if strings.TrimSpace(text) == "" {
		return Extracted{}, apperr.Newf(apperr.ExtractionError, "%s has no extractable text", name)
	}
	return Extracted{Text: text}, nil
}

// documentText walks WordprocessingML, collecting w:t runs and turning
// paragraph ends, breaks and tabs into whitespace.
func documentText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inRun := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "br":
				b.WriteString("\n")
			case "tab":
				b.WriteString("\t")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
