package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/chat"
	"github.com/mohammad-safakhou/docchat/internal/chunker"
	"github.com/mohammad-safakhou/docchat/internal/ingest"
	"github.com/mohammad-safakhou/docchat/internal/session"
)

type stubProvider struct {
	embedCalls int
	genCalls   int
	embedErr   error
	genErr     error
	answer     string
}

func (p *stubProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	p.embedCalls++
	if p.embedErr != nil {
		return nil, p.embedErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 8)
		for j, r := range text {
			v[(j+int(r))%8]++
		}
		out[i] = v
	}
	return out, nil
}

func (p *stubProvider) Completion(context.Context, string, []session.Turn, string) (string, error) {
	p.genCalls++
	if p.genErr != nil {
		return "", p.genErr
	}
	if p.answer != "" {
		return p.answer, nil
	}
	return "a grounded answer", nil
}

func newTestServer(llm *stubProvider) (*echo.Echo, *session.Store) {
	policy := config.RetrievalConfig{
		ChunkSize:    1200,
		ChunkOverlap: 150,
		ContextK:     4,
		CitationK:    3,
		HistoryTurns: 8,
		SnippetMax:   400,
	}
	store := session.NewStore(0)
	quiet := log.New(io.Discard, "", 0)
	h := &Handler{
		Sessions: store,
		Ingest:   ingest.New(store, llm, chunker.Config{Size: policy.ChunkSize, Overlap: policy.ChunkOverlap}, quiet),
		Chat:     chat.New(store, llm, policy, quiet),
	}
	e := newEcho([]string{"*"})
	h.Register(e.Group("/api"))
	return e, store
}

func doJSON(e *echo.Echo, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doUpload(t *testing.T, e *echo.Echo, sessionID, persona string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("session_id", sessionID); err != nil {
		t.Fatal(err)
	}
	if persona != "" {
		if err := w.WriteField("persona", persona); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := doJSON(e, "/api/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["session_id"] == "" {
		t.Fatal("empty session_id")
	}
	return resp["session_id"]
}

func kindOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	kind, _ := resp["kind"].(string)
	return kind
}

func TestEndToEndAdaLovelace(t *testing.T) {
	llm := &stubProvider{answer: "Ada Lovelace wrote the first algorithm for the Analytical Engine."}
	e, _ := newTestServer(llm)

	sid := createSession(t, e)

	rec := doUpload(t, e, sid, "", map[string]string{
		"ada.txt": "Ada Lovelace wrote the first algorithm for the Analytical Engine.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var up ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatal(err)
	}
	if up.Documents != 1 || up.Chunks != 1 {
		t.Fatalf("unexpected upload result: %+v", up)
	}

	rec = doJSON(e, "/api/chat", map[string]string{"session_id": sid, "message": "Who wrote the first algorithm?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body.String())
	}
	var ans chat.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ans.Text, "Ada Lovelace") {
		t.Errorf("answer should reference Ada Lovelace: %q", ans.Text)
	}
	if len(ans.Citations) != 1 {
		t.Fatalf("expected exactly one citation, got %d", len(ans.Citations))
	}
	if ans.Citations[0].Source != "ada.txt" {
		t.Errorf("citation source = %q", ans.Citations[0].Source)
	}
	// text files carry no pagination, so the page field must be absent
	if strings.Contains(rec.Body.String(), `"page"`) {
		t.Errorf("page must be omitted for text files: %s", rec.Body.String())
	}
}

func TestSessionIsolation(t *testing.T) {
	llm := &stubProvider{}
	e, _ := newTestServer(llm)

	a := createSession(t, e)
	b := createSession(t, e)

	rec := doUpload(t, e, a, "", map[string]string{"a.txt": "documents for session A only"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}

	// B sees none of A's documents, even though the upload succeeded
	rec = doJSON(e, "/api/chat", map[string]string{"session_id": b, "message": "what do you know?"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("chat on empty session: %d %s", rec.Code, rec.Body.String())
	}
	if kindOf(t, rec) != "no_documents" {
		t.Errorf("expected no_documents, got %s", rec.Body.String())
	}

	rec = doJSON(e, "/api/chat", map[string]string{"session_id": a, "message": "what do you know?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat on session A: %d %s", rec.Code, rec.Body.String())
	}
	var ans chat.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatal(err)
	}
	for _, c := range ans.Citations {
		if c.Source != "a.txt" {
			t.Errorf("citation from foreign session: %+v", c)
		}
	}
}

func TestChatUnknownSession(t *testing.T) {
	e, _ := newTestServer(&stubProvider{})
	rec := doJSON(e, "/api/chat", map[string]string{"session_id": "ghost", "message": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if kindOf(t, rec) != "session_not_found" {
		t.Errorf("expected session_not_found, got %s", rec.Body.String())
	}
}

func TestResetIdempotent(t *testing.T) {
	llm := &stubProvider{}
	e, _ := newTestServer(llm)
	sid := createSession(t, e)

	doUpload(t, e, sid, "", map[string]string{"a.txt": "some content here"})

	for i := 0; i < 2; i++ {
		rec := doJSON(e, "/api/reset", map[string]string{"session_id": sid})
		if rec.Code != http.StatusOK {
			t.Fatalf("reset %d: %d %s", i, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("reset %d: %s", i, rec.Body.String())
		}
	}

	// the id stays valid but the corpus is gone
	rec := doJSON(e, "/api/chat", map[string]string{"session_id": sid, "message": "anything left?"})
	if rec.Code != http.StatusBadRequest || kindOf(t, rec) != "no_documents" {
		t.Errorf("chat after reset: %d %s", rec.Code, rec.Body.String())
	}

	// resetting an unknown id is still ok
	rec = doJSON(e, "/api/reset", map[string]string{"session_id": "never-existed"})
	if rec.Code != http.StatusOK {
		t.Errorf("reset unknown id: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadReportsPerFileErrors(t *testing.T) {
	llm := &stubProvider{}
	e, _ := newTestServer(llm)
	sid := createSession(t, e)

	rec := doUpload(t, e, sid, "", map[string]string{
		"good.txt":  "valid text content",
		"sheet.csv": "a,b,c",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var up ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatal(err)
	}
	if up.Documents != 1 || len(up.Files) != 2 {
		t.Fatalf("unexpected result: %+v", up)
	}
	for _, f := range up.Files {
		if f.Name == "sheet.csv" && f.Kind != "unsupported_format" {
			t.Errorf("csv should be rejected with unsupported_format: %+v", f)
		}
	}
}

func TestUploadRequiresSessionID(t *testing.T) {
	e, _ := newTestServer(&stubProvider{})
	rec := doUpload(t, e, "", "", map[string]string{"a.txt": "text"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kindOf(t, rec) != "invalid_input" {
		t.Errorf("expected invalid_input, got %s", rec.Body.String())
	}
}

func TestChatEmptyMessage(t *testing.T) {
	e, _ := newTestServer(&stubProvider{})
	sid := createSession(t, e)
	rec := doJSON(e, "/api/chat", map[string]string{"session_id": sid, "message": ""})
	if rec.Code != http.StatusBadRequest || kindOf(t, rec) != "invalid_input" {
		t.Errorf("empty message: %d %s", rec.Code, rec.Body.String())
	}
}

func TestGenerationFailureSurfacesAndPreservesMemory(t *testing.T) {
	llm := &stubProvider{genErr: errors.New("model overloaded")}
	e, store := newTestServer(llm)
	sid := createSession(t, e)

	doUpload(t, e, sid, "", map[string]string{"a.txt": "some content"})

	rec := doJSON(e, "/api/chat", map[string]string{"session_id": sid, "message": "hello"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d %s", rec.Code, rec.Body.String())
	}
	if kindOf(t, rec) != "generation_failure" {
		t.Errorf("expected generation_failure, got %s", rec.Body.String())
	}

	sess, err := store.Get(sid)
	if err != nil {
		t.Fatal(err)
	}
	sess.Lock()
	turns := len(sess.Turns())
	sess.Unlock()
	if turns != 0 {
		t.Errorf("failed chat must not be recorded, found %d turns", turns)
	}
}

func TestNoDocumentsRefusalSkipsGenerator(t *testing.T) {
	llm := &stubProvider{}
	e, _ := newTestServer(llm)
	sid := createSession(t, e)

	rec := doJSON(e, "/api/chat", map[string]string{"session_id": sid, "message": "hello"})
	if rec.Code != http.StatusBadRequest || kindOf(t, rec) != "no_documents" {
		t.Fatalf("expected no_documents refusal: %d %s", rec.Code, rec.Body.String())
	}
	if llm.genCalls != 0 {
		t.Errorf("generator must not be invoked, got %d calls", llm.genCalls)
	}
}

func TestHealthz(t *testing.T) {
	e, _ := newTestServer(&stubProvider{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}
