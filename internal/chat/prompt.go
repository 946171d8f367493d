package chat

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/docchat/internal/session"
)

const defaultPersona = "the individual described in the provided sources"

// systemPrompt frames the persona and pins the generator to the retrieved
// excerpts. Each excerpt is tagged with its source and page so the model
// can refer to them.
func systemPrompt(persona string, hits []session.Scored) string {
	if persona = strings.TrimSpace(persona); persona == "" {
		persona = defaultPersona
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s speaking with a curious visitor.\n", persona)
	b.WriteString("Stay strictly in character and speak in the first person.\n")
	b.WriteString("Use only the information from the source excerpts to answer.\n")
	b.WriteString("If the excerpts do not contain the answer, admit you cannot recall.\n")
	b.WriteString("Keep the reply vivid yet concise and avoid inventing facts.\n")
	b.WriteString("\nSource excerpts:\n")
	for _, hit := range hits {
		if hit.Chunk.Page > 0 {
			fmt.Fprintf(&b, "[source: %s, page %d]\n", hit.Chunk.Source, hit.Chunk.Page)
		} else {
			fmt.Fprintf(&b, "[source: %s]\n", hit.Chunk.Source)
		}
		b.WriteString(strings.TrimSpace(hit.Chunk.Text))
		b.WriteString("\n\n")
	}
	b.WriteString("Respond in the persona's voice, accurately and concisely.")
	return b.String()
}
