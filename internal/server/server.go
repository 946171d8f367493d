package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/docchat/config"
	"github.com/mohammad-safakhou/docchat/internal/apperr"
	"github.com/mohammad-safakhou/docchat/internal/chat"
	"github.com/mohammad-safakhou/docchat/internal/chunker"
	"github.com/mohammad-safakhou/docchat/internal/ingest"
	"github.com/mohammad-safakhou/docchat/internal/session"
	"github.com/mohammad-safakhou/docchat/provider"
)

// Run wires the service together and serves until the process exits.
func Run(cfg *config.Config) error {
	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	store := session.NewStore(cfg.Sessions.TTL)
	stop := make(chan struct{})
	defer close(stop)
	if err := store.StartSweeper(cfg.Sessions.SweepCron, stop); err != nil {
		return err
	}

	chunkCfg := chunker.Config{Size: cfg.Retrieval.ChunkSize, Overlap: cfg.Retrieval.ChunkOverlap}
	h := &Handler{
		Sessions: store,
		Ingest:   ingest.New(store, llm, chunkCfg, log.New(log.Writer(), "[INGEST] ", log.LstdFlags)),
		Chat:     chat.New(store, llm, cfg.Retrieval, log.New(log.Writer(), "[CHAT] ", log.LstdFlags)),
	}

	e := newEcho(cfg.Server.CORSOrigins)
	h.Register(e.Group("/api"))
	return e.Start(cfg.Server.Address)
}

// newEcho builds the router with the shared middleware and error handling;
// split out so tests can drive handlers through a real echo instance.
func newEcho(corsOrigins []string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var kind apperr.Kind
		if k, ok := apperr.KindOf(err); ok {
			kind = k
			code = statusFor(k)
		} else if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			body := map[string]interface{}{"error": msg}
			if kind != "" {
				body["kind"] = string(kind)
			}
			_ = c.JSON(code, body)
		}
	}

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// statusFor maps the error taxonomy to HTTP statuses. Every kinded error
// stays distinguishable in the response body.
func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.SessionNotFound:
		return http.StatusNotFound
	case apperr.EmbeddingFailure, apperr.GenerationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
