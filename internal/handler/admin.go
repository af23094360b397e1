package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"lattice-agent/internal/delivery"
	"lattice-agent/internal/model"
	"lattice-agent/internal/notify"
	"lattice-agent/pkg/response"
)

// QueueStats is the part of the delivery queue the admin API reads.
type QueueStats interface {
	Stats() delivery.Stats
	SpoolCount(ctx context.Context) (int, error)
}

// NotifierStats is the part of the misuse notifier the admin API reads.
type NotifierStats interface {
	Stats() notify.Stats
}

// GrantCounter reports live grants.
type GrantCounter interface {
	Grants() []model.Grant
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	queue     QueueStats
	notifier  NotifierStats
	grants    GrantCounter
	serverID  string
	spoolType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. Any dependency may be nil.
func NewAdminHandler(queue QueueStats, notifier NotifierStats, grants GrantCounter, serverID, spoolType string) *AdminHandler {
	return &AdminHandler{
		queue:     queue,
		notifier:  notifier,
		grants:    grants,
		serverID:  serverID,
		spoolType: spoolType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]any)

	stats["server_id"] = h.serverID
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)

	if h.queue != nil {
		stats["delivery"] = h.queue.Stats()

		count, err := h.queue.SpoolCount(ctx)
		if err == nil {
			stats["spool"] = map[string]any{
				"type":    h.spoolType,
				"pending": count,
				"status":  "ok",
			}
		} else {
			stats["spool"] = map[string]any{
				"type":   h.spoolType,
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["delivery"] = map[string]any{"status": "not_configured"}
	}

	if h.notifier != nil {
		stats["misuse_notifier"] = h.notifier.Stats()
	} else {
		stats["misuse_notifier"] = map[string]any{"status": "not_configured"}
	}

	if h.grants != nil {
		stats["grants"] = map[string]any{"live": len(h.grants.Grants())}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]any{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	stats["runtime"] = map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// PruneResult is returned by a manual prune.
type PruneResult struct {
	Removed int `json:"removed"`
}

// Pruner runs a grant prune on demand.
type Pruner interface {
	RunNow() int
}

// PruneHandler handles POST /api/v1/admin/prune
func PruneHandler(p Pruner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, PruneResult{Removed: p.RunNow()})
	}
}
