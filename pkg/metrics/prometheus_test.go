package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordError("data_unavailable")
	r.RecordError("data_unavailable")
	r.RecordRowsDropped("data_p1/HR_001.csv", 3)
	r.RecordStale()
	r.RecordCandidates(12)
	r.RecordLatency("rank", 20*time.Millisecond)

	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("data_unavailable")); got != 2 {
		t.Fatalf("expected 2 errors, got %v", got)
	}
	if got := testutil.ToFloat64(r.rowsDropped.WithLabelValues("data_p1/HR_001.csv")); got != 3 {
		t.Fatalf("expected 3 dropped rows, got %v", got)
	}
	if got := testutil.ToFloat64(r.stale); got != 1 {
		t.Fatalf("expected 1 stale result, got %v", got)
	}

	n, err := testutil.GatherAndCount(reg, "mealsignal_candidates", "mealsignal_stage_duration_seconds")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}
