package writeback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
	"github.com/MrSnakeDoc/checkstore/internal/store"
	"github.com/MrSnakeDoc/checkstore/internal/store/storetest"
)

func entry(i int) domain.LogEntry {
	return domain.LogEntry{
		ServiceItemsID: fmt.Sprint(i),
		Date:           time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Event:          "HTTP OK",
		State:          "OK",
		StateType:      "HARD",
		Latency:        0.25,
		ExecutionTime:  1.5,
	}
}

func fill(q *Queue, n int) {
	for i := 0; i < n; i++ {
		q.Enqueue(entry(i))
	}
}

func TestFlushDequeuesAtMostMaxCount(t *testing.T) {
	exec := &storetest.Executor{}
	q := NewQueue(exec, logger.NewNop(), 0)
	fill(q, 2500)

	n, res := q.Flush(context.Background(), 1000)
	if n != 1000 || res.Outcome != store.Applied {
		t.Fatalf("Flush() = %d, %v; want 1000 applied", n, res.Outcome)
	}
	if q.Len() != 1500 {
		t.Errorf("Len() = %d, want 1500", q.Len())
	}
	if len(exec.Statements) != 1 {
		t.Fatalf("statements = %d, want one bulk insert", len(exec.Statements))
	}
	if got := strings.Count(exec.Statements[0], "), ("); got != 999 {
		t.Errorf("bulk insert carries %d rows, want 1000", got+1)
	}
	if q.Flushed() != 1000 {
		t.Errorf("Flushed() = %d", q.Flushed())
	}
}

func TestFailedFlushDropsBatch(t *testing.T) {
	exec := (&storetest.Executor{}).On("INSERT INTO", store.Result{Outcome: store.Failed, Err: errors.New("lock wait timeout")})
	q := NewQueue(exec, logger.NewNop(), 0)
	fill(q, 2500)

	n, res := q.Flush(context.Background(), 1000)
	if n != 1000 || res.Outcome != store.Failed {
		t.Fatalf("Flush() = %d, %v; want 1000 failed", n, res.Outcome)
	}
	if q.Len() != 1500 {
		t.Errorf("Len() = %d, want 1500 (failed rows are not requeued)", q.Len())
	}
	if q.Dropped() != 1000 {
		t.Errorf("Dropped() = %d, want 1000", q.Dropped())
	}
}

func TestFlushOrderIsFIFO(t *testing.T) {
	exec := &storetest.Executor{}
	q := NewQueue(exec, logger.NewNop(), 0)
	fill(q, 3)

	q.Flush(context.Background(), 2)
	q.Flush(context.Background(), 2)

	if !strings.Contains(exec.Statements[0], "('0', ") || !strings.Contains(exec.Statements[0], "('1', ") {
		t.Errorf("first flush = %q", exec.Statements[0])
	}
	if !strings.Contains(exec.Statements[1], "('2', ") {
		t.Errorf("second flush = %q", exec.Statements[1])
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestFlushEmpty(t *testing.T) {
	exec := &storetest.Executor{}
	q := NewQueue(exec, logger.NewNop(), 0)

	if n, res := q.Flush(context.Background(), 1000); n != 0 || !res.OK() {
		t.Errorf("Flush() = %d, %v", n, res.Outcome)
	}
	if len(exec.Statements) != 0 {
		t.Errorf("empty flush issued %v", exec.Statements)
	}
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	exec := &storetest.Executor{}
	q := NewQueue(exec, logger.NewNop(), 10)
	fill(q, 15)

	if q.Len() != 10 {
		t.Errorf("Len() = %d, want 10", q.Len())
	}
	if q.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", q.Dropped())
	}

	q.Flush(context.Background(), 1)
	if !strings.Contains(exec.Statements[0], "('5', ") {
		t.Errorf("oldest surviving row should be 5: %q", exec.Statements[0])
	}
}

func TestFlushRowLayout(t *testing.T) {
	exec := &storetest.Executor{}
	q := NewQueue(exec, logger.NewNop(), 0)
	e := entry(42)
	e.Event = "it's down \n stack"
	q.Enqueue(e)

	q.Flush(context.Background(), 0)

	want := "INSERT INTO `glpi_plugin_monitoring_serviceevents` " +
		"(`plugin_monitoring_services_id`, `date`, `event`, `state`, `state_type`, `perf_data`, `latency`, `execution_time`) " +
		"VALUES ('42', '2024-03-01 10:00:00', 'it''s down \n stack', 'OK', 'HARD', '', '0.25', '1.5')"
	if exec.Statements[0] != want {
		t.Errorf("Flush() statement =\n%q\nwant\n%q", exec.Statements[0], want)
	}
}
