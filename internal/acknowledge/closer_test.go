package acknowledge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/store"
	"github.com/MrSnakeDoc/checkstore/internal/store/storetest"
)

func newTestCloser(exec store.Executor) *Closer {
	c := NewCloser(exec, logger.NewNop(), time.UTC)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }
	return c
}

var host = &domain.Identity{Key: "web1", HostName: "web1", HostID: "7", ItemsID: "42", ItemType: "Computer"}

func TestCloseOnRecovery(t *testing.T) {
	exec := &storetest.Executor{}
	c := newTestCloser(exec)

	// DOWN then UP
	c.Close(context.Background(), host, domain.EventData{HostName: "web1", StateID: 1, LastStateID: 0})
	c.Close(context.Background(), host, domain.EventData{HostName: "web1", StateID: 0, LastStateID: 1})

	updates := exec.Matching("UPDATE `" + Table + "`")
	if len(updates) != 1 {
		t.Fatalf("acknowledgement updates = %d, want 1: %v", len(updates), exec.Statements)
	}
	want := "UPDATE `glpi_plugin_monitoring_acknowledges` SET `expired`=1, `end_time`='2024-03-01 12:30:00' " +
		"WHERE `items_id`='42' AND `itemtype`='Computer'"
	if updates[0] != want {
		t.Errorf("update = %q, want %q", updates[0], want)
	}
}

func TestCloseRepeatsOnEveryGoodState(t *testing.T) {
	exec := &storetest.Executor{}
	c := newTestCloser(exec)

	for i := 0; i < 3; i++ {
		if _, attempted := c.Close(context.Background(), host, domain.EventData{StateID: 0, LastStateID: 0}); !attempted {
			t.Fatal("Close() should run on every good observation")
		}
	}
	if got := len(exec.Matching(Table)); got != 3 {
		t.Errorf("updates = %d, want 3", got)
	}
}

func TestCloseSkips(t *testing.T) {
	tests := []struct {
		name  string
		id    *domain.Identity
		state int
	}{
		{name: "bad state", id: host, state: 1},
		{name: "unknown state", id: host, state: 3},
		{name: "unresolved", id: &domain.Identity{HostName: "web2"}, state: 0},
		{name: "nil identity", id: nil, state: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &storetest.Executor{}
			if _, attempted := newTestCloser(exec).Close(context.Background(), tt.id, domain.EventData{StateID: tt.state}); attempted {
				t.Error("Close() attempted an update")
			}
			if len(exec.Statements) != 0 {
				t.Errorf("statements = %v", exec.Statements)
			}
		})
	}
}

func TestCloseNoMatchingRow(t *testing.T) {
	exec := (&storetest.Executor{}).On(Table, store.Result{Outcome: store.Applied, RowsAffected: 0})
	res, attempted := newTestCloser(exec).Close(context.Background(), host, domain.EventData{StateID: 0})
	if !attempted || res.Outcome != store.Applied {
		t.Errorf("Close() = %v, %v; a missing row is not an error", res.Outcome, attempted)
	}
	if !strings.Contains(exec.Statements[0], "SET `expired`=1") {
		t.Errorf("update should expire the acknowledgement: %q", exec.Statements[0])
	}
}

func TestCloseEndTimeInLocation(t *testing.T) {
	exec := &storetest.Executor{}
	c := NewCloser(exec, logger.NewNop(), time.FixedZone("CET", 3600))
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC) }

	c.Close(context.Background(), host, domain.EventData{StateID: 0})

	if !strings.Contains(exec.Statements[0], "`end_time`='2024-03-01 13:30:00'") {
		t.Errorf("end_time should be rendered in the configured zone: %q", exec.Statements[0])
	}
}
