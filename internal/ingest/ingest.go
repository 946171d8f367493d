package ingest

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
	"github.com/mohammad-safakhou/docchat/internal/chunker"
	"github.com/mohammad-safakhou/docchat/internal/extract"
	"github.com/mohammad-safakhou/docchat/internal/session"
	"github.com/mohammad-safakhou/docchat/provider"
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// FileResult reports the outcome for a single file. One malformed file
// never aborts the rest of the upload.
type FileResult struct {
	Name   string      `json:"name"`
	Status string      `json:"status"`
	Chunks int         `json:"chunks,omitempty"`
	Error  string      `json:"error,omitempty"`
	Kind   apperr.Kind `json:"kind,omitempty"`
}

// Result summarizes an upload call.
type Result struct {
	Documents int          `json:"documents"`
	Chunks    int          `json:"chunks"`
	Files     []FileResult `json:"files"`
}

// Service turns uploaded files into embedded chunks in a session's index.
type Service struct {
	store  *session.Store
	llm    provider.Provider
	chunks chunker.Config
	logger *log.Logger
}

func New(store *session.Store, llm provider.Provider, cfg chunker.Config, logger *log.Logger) *Service {
	return &Service{store: store, llm: llm, chunks: cfg, logger: logger}
}

// Upload extracts, chunks, embeds and indexes the given files under one
// session. Extraction errors are reported per file; the embedding batch is
// atomic, so an embedding failure fails the call.
func (s *Service) Upload(ctx context.Context, sessionID string, files []File, persona string) (Result, error) {
	if len(files) == 0 {
		return Result{}, apperr.New(apperr.InvalidInput, "no files provided")
	}

	sess, err := s.store.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	sess.Lock()
	defer sess.Unlock()

	if persona = strings.TrimSpace(persona); persona != "" {
		if err := sess.SetPersona(persona); err != nil {
			return Result{}, err
		}
	}

	var (
		result  Result
		pending []chunker.Chunk
	)
	for _, f := range files {
		name := filepath.Base(f.Name)
		if name == "" || name == "." {
			name = uuid.NewString()
		}
		doc, err := extract.Extract(name, f.Data)
		if err != nil {
			kind, _ := apperr.KindOf(err)
			result.Files = append(result.Files, FileResult{
				Name:   name,
				Status: "error",
				Error:  err.Error(),
				Kind:   kind,
			})
			s.logger.Printf("upload %s: %s failed: %v", sessionID, name, err)
			continue
		}
		chunks := chunker.Split(doc, name, s.chunks)
		result.Files = append(result.Files, FileResult{
			Name:   name,
			Status: "ok",
			Chunks: len(chunks),
		})
		result.Documents++
		result.Chunks += len(chunks)
		pending = append(pending, chunks...)
	}

	if len(pending) == 0 {
		return result, nil
	}

	texts := make([]string, len(pending))
	for i, c := range pending {
		texts[i] = c.Text
	}
	vecs, err := s.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.EmbeddingFailure, "embedding uploaded chunks", err)
	}

	embedded := make([]session.EmbeddedChunk, len(pending))
	for i, c := range pending {
		embedded[i] = session.EmbeddedChunk{Chunk: c, Vector: vecs[i]}
	}
	if err := sess.Index().Insert(embedded); err != nil {
		return Result{}, apperr.Wrap(apperr.EmbeddingFailure, "indexing uploaded chunks", err)
	}
	s.logger.Printf("upload %s: %d documents, %d chunks indexed", sessionID, result.Documents, result.Chunks)
	return result, nil
}
