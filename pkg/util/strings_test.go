package util

import "testing"

func TestParseFloatDefault(t *testing.T) {
	cases := map[string]float64{
		"12.5":  12.5,
		" 3 ":   3,
		"":      0,
		"abc":   0,
		"NaN":   0,
		"1e2":   100,
		"-4.25": -4.25,
	}
	for in, want := range cases {
		if got := ParseFloatDefault(in, 0); got != want {
			t.Fatalf("%q: got %v want %v", in, got, want)
		}
	}
}

func TestPadUnpadID(t *testing.T) {
	if got := PadID("7"); got != "007" {
		t.Fatalf("pad: %q", got)
	}
	if got := PadID("012"); got != "012" {
		t.Fatalf("pad keeps width: %q", got)
	}
	if got := PadID("abc"); got != "abc" {
		t.Fatalf("pad non numeric: %q", got)
	}
	if got := UnpadID("007"); got != "7" {
		t.Fatalf("unpad: %q", got)
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" 1, 2,,3 ")
	if len(got) != 3 || got[0] != "1" || got[1] != "2" || got[2] != "3" {
		t.Fatalf("unexpected %v", got)
	}
	if SplitCSV("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
