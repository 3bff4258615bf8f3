package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sbr-consolidate/internal/completeness"
	"github.com/sbr-consolidate/internal/record"
	"github.com/sbr-consolidate/internal/store"
)

// APIHandler serves the re-scrape feed and pipeline statistics.
type APIHandler struct {
	Store *store.Store
}

// RescrapeResponse is the JSON form of the task list.
type RescrapeResponse struct {
	Count int                   `json:"count"`
	Tasks []record.RescrapeTask `json:"tasks"`
}

// StatsResponse represents overall statistics
type StatsResponse struct {
	Counts    store.Counts `json:"counts"`
	FoundRate float64      `json:"found_rate"`
	LatestRun *store.Run   `json:"latest_run,omitempty"`
}

// GetRescrapeTasks returns the tasks of the latest completeness check. An
// optional reason query parameter filters them.
func (h *APIHandler) GetRescrapeTasks(w http.ResponseWriter, r *http.Request) {
	tasks, ok := h.tasks(w, r)
	if !ok {
		return
	}
	if tasks == nil {
		tasks = []record.RescrapeTask{}
	}
	writeJSON(w, RescrapeResponse{Count: len(tasks), Tasks: tasks})
}

// GetRescrapeCSV returns the same task list as CSV.
func (h *APIHandler) GetRescrapeCSV(w http.ResponseWriter, r *http.Request) {
	tasks, ok := h.tasks(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rescrape_tasks.csv"`)
	if err := completeness.WriteTasks(w, tasks); err != nil {
		zap.L().Error("web: write rescrape csv", zap.Error(err))
	}
}

func (h *APIHandler) tasks(w http.ResponseWriter, r *http.Request) ([]record.RescrapeTask, bool) {
	tasks, err := h.Store.RescrapeTasks(r.Context())
	if err != nil {
		zap.L().Error("web: load rescrape tasks", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return nil, false
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		return tasks, true
	}
	switch reason {
	case record.ReasonMissing, record.ReasonIncomplete, record.ReasonCorrupt:
	default:
		http.Error(w, "Invalid reason", http.StatusBadRequest)
		return nil, false
	}

	filtered := tasks[:0]
	for _, t := range tasks {
		if t.Reason == reason {
			filtered = append(filtered, t)
		}
	}
	return filtered, true
}

// GetStats returns table sizes and the latest run.
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	var stats StatsResponse
	var err error

	stats.Counts, err = h.Store.Counts(r.Context())
	if err != nil {
		zap.L().Error("web: counts", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if stats.Counts.Validated > 0 {
		stats.FoundRate = float64(stats.Counts.Found) / float64(stats.Counts.Validated) * 100
	}

	stats.LatestRun, err = h.Store.LatestRun(r.Context())
	if err != nil {
		zap.L().Error("web: latest run", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, stats)
}

// Health reports that the server and its store are reachable.
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("web: encode response", zap.Error(err))
	}
}
