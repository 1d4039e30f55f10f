package sqlstmt

import (
	"strings"
	"testing"
	"time"
)

func TestUpdateEscapesAndSkipsFilterColumns(t *testing.T) {
	cols := Columns{}.Add("a", "O'Brien").Add("b", true).Add("id", 5)
	filter := Columns{}.Add("id", 5)

	got, err := Update("t", cols, filter)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	want := "UPDATE `t` SET `a`='O''Brien', `b`=1 WHERE `id`='5'"
	if got != want {
		t.Errorf("Update() = %q, want %q", got, want)
	}
	if strings.Contains(got, "SET `id`") || strings.Contains(got, ", `id`=") {
		t.Errorf("Update() placed filter column in SET clause: %q", got)
	}
}

func TestUpdateMultipleFilters(t *testing.T) {
	got, err := Update("acks",
		Columns{}.Add("expired", true).Add("end_time", "2024-01-02 03:04:05"),
		Columns{}.Add("items_id", "12").Add("itemtype", "Computer"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	want := "UPDATE `acks` SET `expired`=1, `end_time`='2024-01-02 03:04:05' WHERE `items_id`='12' AND `itemtype`='Computer'"
	if got != want {
		t.Errorf("Update() = %q, want %q", got, want)
	}
}

func TestUpdateEscapesFilterValues(t *testing.T) {
	got, err := Update("t", Columns{}.Add("a", 1), Columns{}.Add("host", "it's"))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !strings.HasSuffix(got, "WHERE `host`='it''s'") {
		t.Errorf("Update() = %q, want escaped filter", got)
	}
}

func TestUpdateOnlyFilterColumns(t *testing.T) {
	_, err := Update("t", Columns{}.Add("id", 1), Columns{}.Add("id", 1))
	if err != ErrNoColumns {
		t.Errorf("Update() error = %v, want ErrNoColumns", err)
	}
}

func TestInsert(t *testing.T) {
	got, err := Insert("glpi_plugin_monitoring_shinken_states",
		Columns{}.Add("hostname", "srv'1").Add("is_ack", false).Add("state", 2))
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	want := "INSERT INTO `glpi_plugin_monitoring_shinken_states` (`hostname`, `is_ack`, `state`) VALUES ('srv''1', 0, '2')"
	if got != want {
		t.Errorf("Insert() = %q, want %q", got, want)
	}
}

func TestInsertRejectsBadIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		table string
		cols  Columns
	}{
		{name: "empty table", table: "", cols: Columns{}.Add("a", 1)},
		{name: "injected table", table: "t; DROP TABLE x", cols: Columns{}.Add("a", 1)},
		{name: "bad column", table: "t", cols: Columns{}.Add("a b", 1)},
		{name: "no columns", table: "t", cols: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Insert(tt.table, tt.cols); err == nil {
				t.Errorf("Insert(%q) should fail", tt.table)
			}
		})
	}
}

func TestBulkInsert(t *testing.T) {
	got, err := BulkInsert("events", []string{"id", "event"}, [][]any{
		{1, "ok"},
		{2, "it's down"},
	})
	if err != nil {
		t.Fatalf("BulkInsert() error = %v", err)
	}
	want := "INSERT INTO `events` (`id`, `event`) VALUES ('1', 'ok'), ('2', 'it''s down')"
	if got != want {
		t.Errorf("BulkInsert() = %q, want %q", got, want)
	}
}

func TestBulkInsertRowWidthMismatch(t *testing.T) {
	if _, err := BulkInsert("events", []string{"id", "event"}, [][]any{{1}}); err == nil {
		t.Error("BulkInsert() should reject short rows")
	}
	if _, err := BulkInsert("events", []string{"id"}, nil); err == nil {
		t.Error("BulkInsert() should reject empty row set")
	}
}

func TestLiteral(t *testing.T) {
	ts := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "true", in: true, want: "1"},
		{name: "false", in: false, want: "0"},
		{name: "nil", in: nil, want: "NULL"},
		{name: "int", in: 42, want: "'42'"},
		{name: "float", in: 0.25, want: "'0.25'"},
		{name: "quote", in: "a'b", want: "'a''b'"},
		{name: "backslash", in: `a\`, want: `'a\\'`},
		{name: "time", in: ts, want: "'2024-03-09 07:05:01'"},
		{name: "day", in: Day(ts), want: "'2024-03-09'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Literal(tt.in); got != tt.want {
				t.Errorf("Literal(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
