package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseCSVTimeLayouts(t *testing.T) {
	want := time.Date(2020, 2, 13, 18, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2020-02-13 18:00:00",
		"2020-02-13T18:00:00",
		" 2020-02-13 18:00:00.000 ",
		"2020-02-13 18:00",
	} {
		got, ok := ParseCSVTime(s)
		if !ok {
			t.Fatalf("%q: expected ok", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: got %v want %v", s, got, want)
		}
	}
}

func TestParseCSVTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "   ", "not a date", "2020-13-45 99:99:99"} {
		if _, ok := ParseCSVTime(s); ok {
			t.Fatalf("%q: expected failure", s)
		}
	}
}

func TestClockLabel(t *testing.T) {
	if got := ClockLabel(time.Date(2020, 2, 13, 8, 5, 59, 0, time.UTC)); got != "08:05" {
		t.Fatalf("unexpected label %q", got)
	}
}
