package chat

import (
	"context"
	"log"
	"strings"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/apperr"
	"github.com/mohammad-safakhou/docchat/internal/session"
	"github.com/mohammad-safakhou/docchat/provider"
)

// Answer is a grounded reply with its rank-ordered evidence.
type Answer struct {
	Text      string             `json:"answer"`
	Citations []session.Citation `json:"citations"`
}

// Responder runs the retrieval-augmented conversation pipeline for one
// chat call: embed the message, query the session index, compose a
// grounded prompt, generate, and record the exchange.
type Responder struct {
	store  *session.Store
	llm    provider.Provider
	policy config.RetrievalConfig
	logger *log.Logger
}

func New(store *session.Store, llm provider.Provider, policy config.RetrievalConfig, logger *log.Logger) *Responder {
	return &Responder{store: store, llm: llm, policy: policy, logger: logger}
}

// Chat answers one user message against the session's corpus.
//
// The raw message is the retrieval query; prior turns reach the generator
// but do not influence retrieval. Citations are the top-scored retrieved
// chunks, not a parse of the model's output, so attribution never depends
// on the generator naming its sources. On any failure the conversation
// memory is left untouched.
func (r *Responder) Chat(ctx context.Context, sessionID, message string) (Answer, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Answer{}, apperr.New(apperr.InvalidInput, "message must not be empty")
	}

	sess, err := r.store.Get(sessionID)
	if err != nil {
		return Answer{}, err
	}
	sess.Lock()
	defer sess.Unlock()

	if sess.Index().Len() == 0 {
		return Answer{}, apperr.New(apperr.NoDocuments, "upload documents before chatting")
	}

	vecs, err := r.llm.CreateEmbedding(ctx, []string{message})
	if err != nil {
		return Answer{}, apperr.Wrap(apperr.EmbeddingFailure, "embedding chat message", err)
	}
	hits := sess.Index().Query(vecs[0], r.policy.ContextK)

	system := systemPrompt(sess.Persona(), hits)
	history := sess.History(r.policy.HistoryTurns)

	text, err := r.llm.Completion(ctx, system, history, message)
	if err != nil {
		return Answer{}, apperr.Wrap(apperr.GenerationFailure, "generating answer", err)
	}

	citations := r.citations(hits)
	sess.AppendTurn(session.Turn{Role: session.RoleUser, Content: message})
	sess.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: text, Citations: citations})

	r.logger.Printf("chat %s: answered with %d citations from %d retrieved chunks", sessionID, len(citations), len(hits))
	return Answer{Text: text, Citations: citations}, nil
}

// citations keeps the top CitationK retrieved chunks, similarity order.
func (r *Responder) citations(hits []session.Scored) []session.Citation {
	k := r.policy.CitationK
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]session.Citation, 0, k)
	for _, hit := range hits[:k] {
		out = append(out, session.Citation{
			Source:  hit.Chunk.Source,
			Page:    hit.Chunk.Page,
			Snippet: snippet(hit.Chunk.Text, r.policy.SnippetMax),
		})
	}
	return out
}

// snippet collapses whitespace and bounds the excerpt length.
func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
