package sqlstmt

import (
	"testing"
	"time"
)

func TestSelect(t *testing.T) {
	got, err := Select("glpi_plugin_monitoring_availabilities",
		[]string{"daily_0", "last_check"},
		Columns{}.Add("hostname", "web'1").Add("day", "2024-03-01"))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	want := "SELECT `daily_0`, `last_check` FROM `glpi_plugin_monitoring_availabilities` WHERE `hostname`='web''1' AND `day`='2024-03-01'"
	if got != want {
		t.Errorf("Select() = %q, want %q", got, want)
	}
}

func TestSelectRejectsExpressions(t *testing.T) {
	if _, err := Select("t", []string{"COUNT(*)"}, nil); err == nil {
		t.Error("Select() should reject non-identifier columns")
	}
}

func TestCount(t *testing.T) {
	got, err := Count("glpi_plugin_monitoring_shinken_states",
		Columns{}.Add("hostname", "web1").Add("service", ""))
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	want := "SELECT COUNT(*) FROM `glpi_plugin_monitoring_shinken_states` WHERE `hostname`='web1' AND `service`=''"
	if got != want {
		t.Errorf("Count() = %q, want %q", got, want)
	}
}

func TestNullFilters(t *testing.T) {
	var unset *time.Time
	tests := []struct {
		name   string
		render func() (string, error)
		want   string
	}{
		{
			name: "select",
			render: func() (string, error) {
				return Select("t", []string{"a"}, Columns{}.Add("service", nil))
			},
			want: "SELECT `a` FROM `t` WHERE `service` IS NULL",
		},
		{
			name: "count with nil time",
			render: func() (string, error) {
				return Count("t", Columns{}.Add("hostname", "web1").Add("end_time", unset))
			},
			want: "SELECT COUNT(*) FROM `t` WHERE `hostname`='web1' AND `end_time` IS NULL",
		},
		{
			name: "update keeps NULL assignments",
			render: func() (string, error) {
				return Update("t", Columns{}.Add("end_time", nil), Columns{}.Add("items_id", nil))
			},
			want: "UPDATE `t` SET `end_time`=NULL WHERE `items_id` IS NULL",
		},
		{
			name: "string NULL is a value",
			render: func() (string, error) {
				return Count("t", Columns{}.Add("service", "NULL"))
			},
			want: "SELECT COUNT(*) FROM `t` WHERE `service`='NULL'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.render()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
