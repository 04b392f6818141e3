package analytics

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDateRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		rng     DateRange
		wantErr bool
	}{
		{"valid", DateRange{"2025-06-01", "2025-06-07"}, false},
		{"single day", DateRange{"2025-06-01", "2025-06-01"}, false},
		{"reversed", DateRange{"2025-06-07", "2025-06-01"}, true},
		{"bad from", DateRange{"06/01/2025", "2025-06-07"}, true},
		{"bad to", DateRange{"2025-06-01", "yesterday"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rng.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%+v) = %v, wantErr %v",
					tt.rng, err, tt.wantErr)
			}
		})
	}
}

func TestDateRangeValidateReversedError(t *testing.T) {
	err := DateRange{"2025-06-07", "2025-06-01"}.Validate()
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("Validate() = %v, want ErrInvalidDateRange", err)
	}
}

func TestDateRangeContains(t *testing.T) {
	rng := DateRange{"2025-06-01", "2025-06-07"}
	for date, want := range map[string]bool{
		"2025-05-31": false,
		"2025-06-01": true,
		"2025-06-04": true,
		"2025-06-07": true,
		"2025-06-08": false,
	} {
		if got := rng.Contains(date); got != want {
			t.Errorf("Contains(%q) = %v, want %v", date, got, want)
		}
	}
}

func TestDateRangeEachDay(t *testing.T) {
	var got []string
	DateRange{"2025-06-29", "2025-07-02"}.EachDay(
		func(date string) { got = append(got, date) },
	)
	want := []string{
		"2025-06-29", "2025-06-30", "2025-07-01", "2025-07-02",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EachDay mismatch (-want +got):\n%s", diff)
	}
}

func TestDateRangePriorPeriod(t *testing.T) {
	tests := []struct {
		name string
		rng  DateRange
		want DateRange
	}{
		{
			"week",
			DateRange{"2025-06-08", "2025-06-14"},
			DateRange{"2025-06-01", "2025-06-07"},
		},
		{
			"single day",
			DateRange{"2025-06-01", "2025-06-01"},
			DateRange{"2025-05-31", "2025-05-31"},
		},
		{
			"month boundary",
			DateRange{"2025-07-01", "2025-07-30"},
			DateRange{"2025-06-01", "2025-06-30"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rng.PriorPeriod()
			if err != nil {
				t.Fatalf("PriorPeriod() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PriorPeriod() = %+v, want %+v",
					got, tt.want)
			}
		})
	}
}

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in     string
		want   Granularity
		wantOK bool
	}{
		{"", GranularityDay, true},
		{"hour", GranularityHour, true},
		{"day", GranularityDay, true},
		{"week", GranularityWeek, true},
		{"month", "", false},
		{"Day", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseGranularity(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseGranularity(%q) = %q, %v; want %q, %v",
				tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-06-02", "2025-06-02"}, // Monday maps to itself
		{"2025-06-04", "2025-06-02"},
		{"2025-06-08", "2025-06-02"}, // Sunday belongs to Monday's week
		{"2025-06-09", "2025-06-09"},
	}
	for _, tt := range tests {
		if got := weekStart(tt.date); got != tt.want {
			t.Errorf("weekStart(%q) = %q, want %q",
				tt.date, got, tt.want)
		}
	}
}
