package handler

import (
	"fmt"
	"net/http"

	"github.com/kegstock/kegstock/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns counters in Prometheus text exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "kegstock_beer_types_created_total", snap.BeerTypesCreated)
	writeCounter(w, "kegstock_beer_types_deleted_total", snap.BeerTypesDeleted)
	writeCounter(w, "kegstock_kegs_added_total", snap.KegsAdded)
	writeCounter(w, "kegstock_kegs_removed_total", snap.KegsRemoved)
	writeCounter(w, "kegstock_keg_removals_rejected_total", snap.KegRemovalsRejected)
	writeCounter(w, `kegstock_list_cache_requests_total{result="hit"}`, snap.ListCacheHits)
	writeCounter(w, `kegstock_list_cache_requests_total{result="miss"}`, snap.ListCacheMisses)
}

func writeCounter(w http.ResponseWriter, name string, value uint64) {
	_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
}
