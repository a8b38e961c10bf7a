package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	pkgkafka "MealSignal/pkg/kafka"
	"MealSignal/pkg/util"
)

// SampleProcessor accepts one validated sample; the ingest pipeline implements it.
// Process waits for the write, Enqueue acknowledges it later.
type SampleProcessor interface {
	Process(ctx context.Context, s models.StoredSample) error
	Enqueue(ctx context.Context, s models.StoredSample, ack func(error)) error
}

// SignalIngestHandler consumes biosignal readings from Kafka.
type SignalIngestHandler struct {
	topic   string
	proc    SampleProcessor
	metrics domrepo.Metrics
}

func NewSignalIngestHandler(topic string, proc SampleProcessor, metrics domrepo.Metrics) *SignalIngestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	return &SignalIngestHandler{topic: topic, proc: proc, metrics: metrics}
}

func (h *SignalIngestHandler) Topic() string { return h.topic }

// Handle decodes one reading and waits until it is stored.
func (h *SignalIngestHandler) Handle(ctx context.Context, b []byte) error {
	sample, err := h.decode(b)
	if err != nil {
		return err
	}
	return h.proc.Process(ctx, sample)
}

// HandleAsync decodes one reading and returns once it is buffered; ack
// reports the batch write.
func (h *SignalIngestHandler) HandleAsync(ctx context.Context, b []byte, ack func(error)) error {
	sample, err := h.decode(b)
	if err != nil {
		return err
	}
	return h.proc.Enqueue(ctx, sample, ack)
}

// incoming message schema: {participant_id, kind, ts, value}
func (h *SignalIngestHandler) decode(b []byte) (models.StoredSample, error) {
	var m models.BiosignalMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return models.StoredSample{}, pkgkafka.Permanent(fmt.Errorf("decode biosignal: %w", err))
	}
	kind, ok := domrepo.ParseSignalKind(strings.ToLower(string(m.Kind)))
	if !ok {
		h.metrics.RecordError("ingest_kind")
		return models.StoredSample{}, pkgkafka.Permanent(fmt.Errorf("unknown signal kind %q", m.Kind))
	}
	pid := util.UnpadID(strings.TrimSpace(m.ParticipantID))
	if pid == "" || m.Timestamp.IsZero() {
		h.metrics.RecordError("ingest_validate")
		return models.StoredSample{}, pkgkafka.Permanent(fmt.Errorf("participant id and timestamp are required"))
	}

	h.metrics.RecordLatency("ingest_e2e", time.Since(m.Timestamp))

	return models.StoredSample{
		ParticipantID: pid,
		Kind:          kind,
		SignalSample:  models.SignalSample{Timestamp: m.Timestamp.UTC(), Value: m.Value},
	}, nil
}

var _ pkgkafka.AckHandler = (*SignalIngestHandler)(nil)
