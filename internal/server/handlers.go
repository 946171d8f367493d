package server

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/docchat/internal/apperr"
	"github.com/mohammad-safakhou/docchat/internal/chat"
	"github.com/mohammad-safakhou/docchat/internal/ingest"
	"github.com/mohammad-safakhou/docchat/internal/session"
)

// Handler exposes the session/upload/chat/reset surface.
type Handler struct {
	Sessions *session.Store
	Ingest   *ingest.Service
	Chat     *chat.Responder
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/session", h.createSession)
	g.POST("/upload", h.upload)
	g.POST("/chat", h.chat)
	g.POST("/reset", h.reset)
}

func (h *Handler) createSession(c echo.Context) error {
	sess := h.Sessions.Create()
	sessionsCreated.Inc()
	return c.JSON(http.StatusOK, map[string]string{"session_id": sess.ID()})
}

func (h *Handler) upload(c echo.Context) error {
	sessionID := c.FormValue("session_id")
	if sessionID == "" {
		return apperr.New(apperr.InvalidInput, "session_id is required")
	}
	persona := c.FormValue("persona")

	form, err := c.MultipartForm()
	if err != nil {
		return apperr.Wrap(apperr.InvalidInput, "multipart form required", err)
	}
	var files []ingest.File
	for _, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return apperr.Wrap(apperr.InvalidInput, "reading upload "+fh.Filename, err)
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return apperr.Wrap(apperr.InvalidInput, "reading upload "+fh.Filename, err)
		}
		files = append(files, ingest.File{Name: fh.Filename, Data: data})
	}

	result, err := h.Ingest.Upload(c.Request().Context(), sessionID, files, persona)
	if err != nil {
		uploads.WithLabelValues("error").Inc()
		return err
	}
	uploads.WithLabelValues("ok").Inc()
	chunksIndexed.Add(float64(result.Chunks))
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) chat(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid chat request", err)
	}
	answer, err := h.Chat.Chat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		chats.WithLabelValues("error").Inc()
		return err
	}
	chats.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusOK, answer)
}

// reset is idempotent: resetting an unknown or already-empty session is ok.
func (h *Handler) reset(c echo.Context) error {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidInput, "invalid reset request", err)
	}
	h.Sessions.Reset(req.SessionID)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
