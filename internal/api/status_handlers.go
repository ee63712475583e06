package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/STRATINT/engager/internal/engage"
	"github.com/STRATINT/engager/internal/models"
)

type StatusHandler struct {
	board    *engage.StatusBoard
	actions  ActionLogReader
	health   func(ctx context.Context) error
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

func NewStatusHandler(board *engage.StatusBoard, actions ActionLogReader, health func(ctx context.Context) error, location *time.Location, logger *slog.Logger) *StatusHandler {
	if location == nil {
		location = time.Local
	}
	return &StatusHandler{
		board:    board,
		actions:  actions,
		health:   health,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

// Healthz handles GET /healthz
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()}, h.logger)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// Status handles GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.board.Snapshot(), h.logger)
}

// Actions handles GET /api/actions
func (h *StatusHandler) Actions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	kind := models.ActionKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != models.ActionLike && kind != models.ActionFollow {
		http.Error(w, "Unknown action kind", http.StatusBadRequest)
		return
	}

	logs, err := h.actions.List(r.Context(), limit, kind)
	if err != nil {
		h.logger.Error("failed to list action logs", "error", err)
		http.Error(w, "Failed to retrieve action logs", http.StatusInternalServerError)
		return
	}

	now := h.now().In(h.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.location)
	today := make(map[models.ActionKind]int, len(models.ActionKinds))
	for _, k := range models.ActionKinds {
		n, err := h.actions.CountSince(r.Context(), k, midnight)
		if err != nil {
			h.logger.Error("failed to count actions", "kind", k, "error", err)
			http.Error(w, "Failed to retrieve action logs", http.StatusInternalServerError)
			return
		}
		today[k] = n
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"actions": logs,
		"count":   len(logs),
		"today":   today,
	}, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
