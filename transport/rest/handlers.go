package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

type statusResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (that *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	that.writeJSON(w, statusResponse{
		Status: "ok",
		Time:   time.Now().UTC(),
	})
}

func (that *Server) handleRecentMatches(w http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "handleRecentMatches")

	limit := defaultMatchLimit
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxMatchLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	matches, err := that.archive.ListRecent(req.Context(), limit)
	if err != nil {
		log.Error("failed to list matches", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	that.writeJSON(w, matches)
}

func (that *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
