package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/discovery-service/internal/delivery/http/handler"
	"github.com/user/discovery-service/internal/delivery/http/middleware"
)

func New(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.HandleHealthCheck)
	mux.HandleFunc("POST /api/discover", h.HandleDiscover)
	mux.HandleFunc("POST /api/download", h.HandleDownload)
	mux.HandleFunc("GET /api/history", h.HandleHistory)

	mux.Handle("/metrics", promhttp.Handler())

	var chainedHandler http.Handler = mux
	chainedHandler = middleware.Metrics(chainedHandler)
	chainedHandler = middleware.Logging(chainedHandler)

	return chainedHandler
}
