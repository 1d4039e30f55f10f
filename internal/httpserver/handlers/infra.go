package handlers

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/checkstore/internal/httpserver/deps"
	"github.com/MrSnakeDoc/checkstore/internal/scheduler"
)

type componentStatus struct {
	OK      bool   `json:"ok"`
	Backend string `json:"backend,omitempty"`
	Impact  string `json:"impact,omitempty"`
	Error   string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	Features   map[string]bool            `json:"features"`
	Disabled   []string                   `json:"disabled_features,omitempty"`
	HostLoop   scheduler.StatsSnapshot    `json:"host_loop"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		var stats scheduler.StatsSnapshot
		if d.Loop != nil {
			stats = d.Loop.Snapshot()
		}
		features := map[string]bool{}
		var disabled []string
		if d.Features != nil {
			features = d.Features.Features()
			disabled = d.Features.Disabled()
		}

		components := map[string]componentStatus{
			"mysql": checkDatabase(d),
			"queue": {
				OK:      stats.Running,
				Backend: d.QueueBackend,
			},
		}

		response := infraResponse{
			Mode:       determineMode(components, disabled),
			Components: components,
			Features:   features,
			Disabled:   disabled,
			HostLoop:   stats,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// determineMode is "critical" when no events are consumed, "degraded" when
// records are not written or a record feature was switched off.
func determineMode(components map[string]componentStatus, disabled []string) string {
	if q, ok := components["queue"]; ok && !q.OK {
		return "critical"
	}
	if db, ok := components["mysql"]; ok && !db.OK {
		return "degraded"
	}
	if len(disabled) > 0 {
		return "degraded"
	}
	return "nominal"
}

func checkDatabase(d deps.Deps) componentStatus {
	if d.DB == nil {
		return componentStatus{
			OK:     false,
			Impact: "records-not-written",
			Error:  "database not initialized",
		}
	}
	if !d.DB.Connected() {
		return componentStatus{
			OK:     false,
			Impact: "records-not-written",
			Error:  d.DB.LastError(),
		}
	}
	return componentStatus{OK: true}
}
