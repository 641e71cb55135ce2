package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/prf-search/pkg/errors"
)

// SnapshotLister returns persisted snapshots, newest first.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotLister
	logger     *slog.Logger
}

// NewHandler serves live stats from aggregator. snapshots may be nil when
// no database is configured.
func NewHandler(aggregator *Aggregator, snapshots SnapshotLister) *Handler {
	return &Handler{
		aggregator: aggregator,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// Snapshots serves GET /api/v1/analytics/snapshots?limit=N.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshot store not configured"})
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": "failed to list snapshots"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps, "count": len(snaps)})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
