package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/discovery-service/internal/delivery/http/request"
	"github.com/user/discovery-service/internal/delivery/http/response"
	"github.com/user/discovery-service/internal/repository"
	"github.com/user/discovery-service/internal/usecase"
)

type Handler struct {
	orchestrator *usecase.Orchestrator
	archive      repository.ProvenanceArchive // nil when no archive is configured
}

func NewHandler(orchestrator *usecase.Orchestrator, archive repository.ProvenanceArchive) *Handler {
	return &Handler{orchestrator: orchestrator, archive: archive}
}

// HandleDiscover runs topic discovery and returns the preview. Provider
// flakiness never surfaces as an HTTP error; only invalid input does.
func (h *Handler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	var req request.DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	respectRobots := true
	if req.RespectRobots != nil {
		respectRobots = *req.RespectRobots
	}

	preview, err := h.orchestrator.Discover(r.Context(), req.Topics, usecase.DiscoverOptions{
		Limit:         req.Limit,
		RespectRobots: respectRobots,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyTopic) {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Cancellation mid-run still carries the completed topics.
		if preview != nil {
			h.writeJSON(w, http.StatusOK, preview)
			return
		}
		slog.Error("discovery failed", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// HandleDownload runs the select-and-download phase for a preview.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	var req request.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.OutDir == "" {
		h.writeJSONError(w, "out_dir is required", http.StatusBadRequest)
		return
	}

	respectRobots := true
	if req.RespectRobots != nil {
		respectRobots = *req.RespectRobots
	}

	result, err := h.orchestrator.SelectAndDownload(r.Context(), req.Preview, req.Selection, req.Filter, usecase.DownloadOptions{
		RespectRobots: respectRobots,
		OutDir:        req.OutDir,
	})
	if err != nil {
		slog.Error("download failed", "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleHistory serves archived provenance for a topic from Postgres.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		h.writeJSONError(w, "History archive is not configured", http.StatusNotImplemented)
		return
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		h.writeJSONError(w, "topic query parameter is required", http.StatusBadRequest)
		return
	}

	entries, err := h.archive.FindByTopic(r.Context(), topic, 100)
	if err != nil {
		slog.Error("history lookup failed", "topic", topic, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.HistoryResponse{Topic: topic, Entries: entries})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
