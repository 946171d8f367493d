package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_sessions_created_total",
		Help: "Sessions allocated since process start",
	})
	uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_uploads_total",
		Help: "Upload calls by outcome",
	}, []string{"status"})
	chunksIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docchat_chunks_indexed_total",
		Help: "Chunks embedded and inserted into session indexes",
	})
	chats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docchat_chats_total",
		Help: "Chat calls by outcome",
	}, []string{"status"})
)
