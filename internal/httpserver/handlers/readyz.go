package handlers

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/checkstore/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready    bool `json:"ready"`
	Database bool `json:"database"`
	HostLoop bool `json:"host_loop"`
}

// Readyz answers 503 while the database is disconnected or the host loop is not running.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{
			Database: d.DB != nil && d.DB.Connected(),
			HostLoop: d.Loop != nil && d.Loop.Running(),
		}
		resp.Ready = resp.Database && resp.HostLoop

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if resp.Ready {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
