package database

import (
	"sort"
	"testing"
	"time"
)

func TestFormatTime_OrdersLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		base.Add(time.Microsecond),
		base.Add(-time.Hour),
		base,
		base.Add(500 * time.Millisecond),
		base.In(time.FixedZone("CET", 3600)).Add(time.Second),
	}

	formatted := make([]string, len(times))
	for i, tm := range times {
		formatted[i] = FormatTime(tm)
	}
	sort.Strings(formatted)

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i, tm := range times {
		if formatted[i] != FormatTime(tm) {
			t.Errorf("position %d: %s, want %s", i, formatted[i], FormatTime(tm))
		}
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 30, 15, 123456000, time.UTC)

	got, err := ParseTime(FormatTime(want))
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("ParseTime() = %v, want %v", got, want)
	}

	got, err = ParseTime("2026-03-01T13:30:15.123456+01:00")
	if err != nil {
		t.Fatalf("ParseTime(RFC3339) error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("ParseTime(RFC3339) = %v, want %v", got, want)
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(garbage) should fail")
	}
}
