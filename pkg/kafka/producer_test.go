package kafka

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProducerPublishEncodesValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{}
	p := &Producer{writer: w, comp: "snappy", metrics: newProducerMetrics(reg)}

	type event struct {
		Type string `json:"type"`
	}
	err := p.PublishBatch(context.Background(), "mealsignal.events", []Message{
		{Key: []byte("1"), Value: event{Type: "recommendation.served"}},
		{Key: []byte("2"), Value: "raw"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Value) != `{"type":"recommendation.served"}` || string(w.msgs[1].Value) != "raw" {
		t.Fatalf("unexpected payloads %q %q", w.msgs[0].Value, w.msgs[1].Value)
	}
	if w.msgs[0].Topic != "mealsignal.events" {
		t.Fatalf("topic not set")
	}

	got := testutil.ToFloat64(p.metrics.msgs.WithLabelValues("mealsignal.events", "snappy", "ok"))
	if got != 2 {
		t.Fatalf("expected 2 ok messages recorded, got %v", got)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
