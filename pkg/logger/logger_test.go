package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestJSONFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	l.Debug("hidden")
	child := l.With(String("session", "s-1"), Bool("replay", false))
	child.Warn("participant skipped",
		String("participant", "7"),
		Int("rows", 3),
		Float("distance", 0.5),
		Duration("took", 1500*time.Millisecond),
		Strings("kinds", []string{"glucose", "eda"}),
		Error(errors.New("no file")),
		Error(nil),
	)

	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %d", len(lines))
	}
	m := lines[0]
	if m["level"] != "warn" || m["message"] != "participant skipped" {
		t.Fatalf("unexpected entry %v", m)
	}
	if m["session"] != "s-1" || m["replay"] != false || m["participant"] != "7" {
		t.Fatalf("missing context fields: %v", m)
	}
	if m["rows"] != float64(3) || m["took"] != float64(1500) || m["error"] != "no file" {
		t.Fatalf("unexpected typed fields: %v", m)
	}
	if kinds, ok := m["kinds"].([]interface{}); !ok || len(kinds) != 2 {
		t.Fatalf("expected kinds array, got %v", m["kinds"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("expected caller field: %v", m)
	}
}

func TestInvalidLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatal("expected invalid level error")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop().With(String("k", "v"))
	l.Error("dropped", Any("payload", map[string]int{"a": 1}))
}
