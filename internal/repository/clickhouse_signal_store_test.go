package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"MealSignal/internal/domain/models"
)

func TestChunkSamplesSkipsInvalid(t *testing.T) {
	ts := time.Date(2020, 2, 13, 8, 0, 0, 0, time.UTC)
	var in []models.StoredSample
	for i := 0; i < 5; i++ {
		in = append(in, models.StoredSample{
			ParticipantID: "1",
			Kind:          models.SignalHeartRate,
			SignalSample:  models.SignalSample{Timestamp: ts.Add(time.Duration(i) * time.Second), Value: float64(i)},
		})
	}
	in = append(in,
		models.StoredSample{Kind: models.SignalEDA, SignalSample: models.SignalSample{Timestamp: ts}},
		models.StoredSample{ParticipantID: "1", Kind: "steps", SignalSample: models.SignalSample{Timestamp: ts}},
		models.StoredSample{ParticipantID: "1", Kind: models.SignalEDA},
	)

	chunks := chunkSamples(in, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[2]) != 1 || chunks[2][0].Value != 4 {
		t.Fatalf("unexpected chunking %+v", chunks)
	}
	if got := chunkSamples(nil, 2); len(got) != 0 {
		t.Fatalf("expected no chunks, got %d", len(got))
	}
}

func TestSignalSchemaDDL(t *testing.T) {
	stmts := signalSchemaDDL("mealsignal")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE DATABASE IF NOT EXISTS mealsignal") {
		t.Fatalf("unexpected db ddl %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "mealsignal.biosignals") || !strings.Contains(stmts[1], "ORDER BY (participant_id, kind, ts)") {
		t.Fatalf("unexpected table ddl %q", stmts[1])
	}
}

type fakeRows struct {
	ts   []time.Time
	vals []float64
	i    int
	err  error
}

func (r *fakeRows) Next() bool { return r.i < len(r.ts) }

func (r *fakeRows) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*time.Time) = r.ts[r.i]
	*dest[1].(*float64) = r.vals[r.i]
	r.i++
	return nil
}

func TestCollectSamplesEmptyIsNotAnError(t *testing.T) {
	out, err := collectSamples(&fakeRows{})
	if err != nil {
		t.Fatalf("empty result must not fail, got %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("expected an empty series, got %v", out)
	}
}

func TestCollectSamplesConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	rows := &fakeRows{
		ts:   []time.Time{time.Date(2020, 2, 13, 15, 0, 0, 0, loc)},
		vals: []float64{101},
	}
	out, err := collectSamples(rows)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(out) != 1 || out[0].Value != 101 || out[0].Timestamp.Location() != time.UTC || out[0].Timestamp.Hour() != 8 {
		t.Fatalf("unexpected samples %+v", out)
	}

	if _, err := collectSamples(&fakeRows{ts: []time.Time{time.Now()}, vals: []float64{1}, err: errors.New("bad column")}); err == nil {
		t.Fatalf("expected scan error")
	}
}
