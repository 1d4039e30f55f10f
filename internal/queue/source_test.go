package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MrSnakeDoc/checkstore/internal/domain"
	"github.com/MrSnakeDoc/checkstore/internal/logger"
)

const serviceResult = `{
	"type": "service_check_result",
	"data": {
		"host_name": "web1",
		"service_description": "http",
		"state": "CRITICAL",
		"state_id": 2,
		"last_state_id": 0,
		"state_type": "SOFT",
		"last_chk": 1709287200,
		"output": "HTTP CRITICAL",
		"long_output": "connection refused",
		"perf_data": "time=0.5s",
		"latency": 0.12,
		"execution_time": 0.5,
		"problem_has_been_acknowledged": true,
		"in_scheduled_downtime": false
	}
}`

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(serviceResult))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Kind != domain.KindServiceCheckResult {
		t.Errorf("Kind = %v", ev.Kind)
	}
	d := ev.Data
	if d.HostName != "web1" || d.ServiceDescription != "http" || d.StateID != 2 || d.LastCheck != 1709287200 {
		t.Errorf("Data = %+v", d)
	}
	if !d.Acknowledged || d.InDowntime || d.Latency != 0.12 {
		t.Errorf("flags = %+v", d)
	}
	if d.EventText() != "HTTP CRITICAL \n connection refused" {
		t.Errorf("EventText() = %q", d.EventText())
	}
}

func TestDecodeSnapshotCustoms(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"initial_host_status","data":{"host_name":"web1","customs":{"_HOSTID":"7","_ITEMTYPE":"Computer","_ITEMSID":"42"}}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Data.Customs[domain.CustomItemsID] != "42" {
		t.Errorf("Customs = %v", ev.Data.Customs)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		unknownKind bool
	}{
		{name: "unknown type", payload: `{"type":"program_status","data":{}}`, unknownKind: true},
		{name: "missing type", payload: `{"data":{"host_name":"web1"}}`, unknownKind: true},
		{name: "not json", payload: `host_check_result web1`},
		{name: "wrong field type", payload: `{"type":"host_check_result","data":{"state_id":"zero"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if got := errors.Is(err, domain.ErrUnknownKind); got != tt.unknownKind {
				t.Errorf("errors.Is(ErrUnknownKind) = %v, want %v (%v)", got, tt.unknownKind, err)
			}
		})
	}
}

func TestDecodeAllSkipsBadPayloads(t *testing.T) {
	events := decodeAll([][]byte{
		[]byte(serviceResult),
		[]byte(`{"type":"bogus"}`),
		[]byte(`{`),
		[]byte(`{"type":"host_check_result","data":{"host_name":"db1"}}`),
	}, logger.NewNop())

	if len(events) != 2 {
		t.Fatalf("decodeAll() kept %d events, want 2", len(events))
	}
	if events[1].Data.HostName != "db1" {
		t.Errorf("order not preserved: %+v", events)
	}
}

func TestDrainBatches(t *testing.T) {
	msgs := make(chan *nats.Msg, 10)
	for i := 0; i < 5; i++ {
		msgs <- &nats.Msg{Data: []byte(`{"type":"host_check_result","data":{"host_name":"web1"}}`)}
	}

	events, err := drain(context.Background(), msgs, 3, time.Second, logger.NewNop())
	if err != nil {
		t.Fatalf("drain() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("first batch = %d events, want 3", len(events))
	}

	events, _ = drain(context.Background(), msgs, 3, time.Second, logger.NewNop())
	if len(events) != 2 {
		t.Errorf("second batch = %d events, want 2", len(events))
	}
}

func TestDrainTimesOutWithEmptyBatch(t *testing.T) {
	msgs := make(chan *nats.Msg)
	events, err := drain(context.Background(), msgs, 10, 10*time.Millisecond, logger.NewNop())
	if err != nil || len(events) != 0 {
		t.Errorf("drain() = %v, %v; want empty batch", events, err)
	}
}

func TestDrainHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := drain(ctx, make(chan *nats.Msg), 10, time.Minute, logger.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("drain() error = %v, want context.Canceled", err)
	}
}

func TestSlice(t *testing.T) {
	s := NewSlice(
		[]domain.Event{{Kind: domain.KindHostCheckResult}},
		[]domain.Event{{Kind: domain.KindHostCheckResult}, {Kind: domain.KindServiceCheckResult}},
	)

	for _, want := range []int{1, 2, 0} {
		got, err := s.Next(context.Background())
		if err != nil || len(got) != want {
			t.Errorf("Next() = %d events, %v; want %d", len(got), err, want)
		}
	}
	if s.Remaining() != 0 || s.Calls() != 3 {
		t.Errorf("Remaining() = %d, Calls() = %d", s.Remaining(), s.Calls())
	}
}
