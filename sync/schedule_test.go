// go test github.com/zzin/campsync/sync -v
package sync

import (
	"testing"
	"time"
)

func date(value string) *time.Time {
	t, err := time.Parse(ScheduleDateFormat, value)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestFormatAdSchedule(t *testing.T) {
	cases := []struct {
		name     string
		start    *time.Time
		end      *time.Time
		expected string
	}{
		{"no dates", nil, nil, "unbounded"},
		{"both dates", date("2025-01-01"), date("2025-03-31"), "2025-01-01 ~ 2025-03-31"},
		{"start only", date("2025-01-01"), nil, "2025-01-01 ~ unbounded"},
		{"end only", nil, date("2025-03-31"), "~ 2025-03-31"},
		{"single day", date("2025-06-15"), date("2025-06-15"), "2025-06-15 ~ 2025-06-15"},
	}
	for _, c := range cases {
		result := FormatAdSchedule(c.start, c.end)
		if result != c.expected {
			t.Errorf("%s: expected %q but have %q", c.name, c.expected, result)
		}
	}
}

func TestFormatAdScheduleIsDeterministic(t *testing.T) {
	first := FormatAdSchedule(date("2025-01-01"), date("2025-03-31"))
	second := FormatAdSchedule(date("2025-01-01"), date("2025-03-31"))
	if first != second {
		t.Errorf("expected identical schedules but have %q and %q", first, second)
	}
}
