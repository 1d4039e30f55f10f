package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/checkstore/internal/httpserver/deps"
	"github.com/MrSnakeDoc/checkstore/internal/scheduler"
)

type fakeDB struct {
	connected bool
	lastErr   string
}

func (f fakeDB) Connected() bool   { return f.connected }
func (f fakeDB) LastError() string { return f.lastErr }

type fakeFeatures struct {
	flags    map[string]bool
	disabled []string
}

func (f fakeFeatures) Features() map[string]bool { return f.flags }
func (f fakeFeatures) Disabled() []string        { return f.disabled }

type fakeLoop struct {
	snap scheduler.StatsSnapshot
}

func (f fakeLoop) Snapshot() scheduler.StatsSnapshot { return f.snap }
func (f fakeLoop) Running() bool                     { return f.snap.Running }

func TestHealthz(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := deps.Deps{
		StartTime: start,
		Version:   "v1.2.3",
		TimeNow:   func() time.Time { return start.Add(90 * time.Second) },
		DB:        fakeDB{connected: false},
	}

	rec := httptest.NewRecorder()
	Healthz(d)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with the database down", rec.Code)
	}
	var body healthzResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Status != "ok" || body.Version != "v1.2.3" || body.UptimeSeconds != 90 {
		t.Errorf("body = %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		db         deps.Database
		loop       deps.LoopStats
		wantStatus int
	}{
		{
			name:       "ready",
			db:         fakeDB{connected: true},
			loop:       fakeLoop{snap: scheduler.StatsSnapshot{Running: true}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "database disconnected",
			db:         fakeDB{connected: false, lastErr: "connection refused"},
			loop:       fakeLoop{snap: scheduler.StatsSnapshot{Running: true}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "host loop stopped",
			db:         fakeDB{connected: true},
			loop:       fakeLoop{},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "not wired",
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Readyz(deps.Deps{DB: tt.db, Loop: tt.loop})(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body readyzResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if body.Ready != (tt.wantStatus == http.StatusOK) {
				t.Errorf("ready = %v", body.Ready)
			}
		})
	}
}

func TestInfra(t *testing.T) {
	running := fakeLoop{snap: scheduler.StatsSnapshot{Running: true, Events: 12, PendingLogRows: 3}}
	flags := map[string]bool{"state_table": true, "log_events": true}

	tests := []struct {
		name     string
		d        deps.Deps
		wantMode string
	}{
		{
			name:     "nominal",
			d:        deps.Deps{DB: fakeDB{connected: true}, Loop: running, Features: fakeFeatures{flags: flags}},
			wantMode: "nominal",
		},
		{
			name:     "database down",
			d:        deps.Deps{DB: fakeDB{lastErr: "connection refused"}, Loop: running, Features: fakeFeatures{flags: flags}},
			wantMode: "degraded",
		},
		{
			name: "feature switched off",
			d: deps.Deps{DB: fakeDB{connected: true}, Loop: running, Features: fakeFeatures{
				flags:    map[string]bool{"state_table": false},
				disabled: []string{"state_table"},
			}},
			wantMode: "degraded",
		},
		{
			name:     "host loop stopped",
			d:        deps.Deps{DB: fakeDB{connected: true}, Loop: fakeLoop{}},
			wantMode: "critical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.d.QueueBackend = "redis"
			rec := httptest.NewRecorder()
			Infra(tt.d)(rec, httptest.NewRequest(http.MethodGet, "/infra", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var body infraResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid body: %v", err)
			}
			if body.Mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", body.Mode, tt.wantMode)
			}
			if body.Components["queue"].Backend != "redis" {
				t.Errorf("queue component = %+v", body.Components["queue"])
			}
		})
	}
}

func TestInfraReportsDatabaseError(t *testing.T) {
	d := deps.Deps{
		DB:   fakeDB{lastErr: "dial tcp: connection refused"},
		Loop: fakeLoop{snap: scheduler.StatsSnapshot{Running: true, Events: 7}},
	}
	rec := httptest.NewRecorder()
	Infra(d)(rec, httptest.NewRequest(http.MethodGet, "/infra", nil))

	var body infraResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	db := body.Components["mysql"]
	if db.OK || db.Error != "dial tcp: connection refused" {
		t.Errorf("mysql component = %+v", db)
	}
	if body.HostLoop.Events != 7 {
		t.Errorf("host_loop = %+v", body.HostLoop)
	}
}
