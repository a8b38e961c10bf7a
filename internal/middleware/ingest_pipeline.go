package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"MealSignal/internal/domain/models"
	domrepo "MealSignal/internal/domain/repository"
	applogger "MealSignal/pkg/logger"
)

// ErrPipelineStopped is returned by Process once Stop has been called.
var ErrPipelineStopped = errors.New("ingest pipeline stopped")

type pending struct {
	sample models.StoredSample
	ack    func(error)
}

// IngestPipeline sits between the Kafka consumer and the signal store. It
// validates samples, groups them into batches and writes a batch when it is
// full or when the batch timeout fires. Enqueue returns as soon as a sample
// is buffered and acknowledges it once its batch is written, so the consumer
// keeps feeding the batch and commits an offset only for persisted data.
type IngestPipeline struct {
	store        domrepo.SignalStore
	metrics      domrepo.Metrics
	l            *applogger.Logger
	batchSize    int
	batchTimeout time.Duration

	in     chan pending
	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool

	// gate keeps Enqueue from sending once Stop has begun draining.
	gate   sync.RWMutex
	closed bool
}

type PipelineOption func(*IngestPipeline)

// WithBatchSize sets the number of samples written per insert.
func WithBatchSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithBatchTimeout sets how long a partial batch may wait.
func WithBatchTimeout(d time.Duration) PipelineOption {
	return func(p *IngestPipeline) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *IngestPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewIngestPipeline creates a new pipeline. Call Start before Process.
func NewIngestPipeline(store domrepo.SignalStore, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &IngestPipeline{
		store:        store,
		metrics:      metrics,
		l:            applogger.Nop(),
		batchSize:    500,
		batchTimeout: 2 * time.Second,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.in = make(chan pending, p.batchSize)
	return p
}

// Start launches the batching loop.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.loop(context.WithoutCancel(ctx))
}

// Stop flushes what is buffered and waits for the loop to exit.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.gate.Lock()
	p.closed = true
	p.gate.Unlock()

	close(p.stopCh)
	<-p.doneCh
}

// Enqueue validates one sample and buffers it. On a nil return ack is called
// exactly once, from the batching loop, with the result of the write; it
// must not block.
func (p *IngestPipeline) Enqueue(ctx context.Context, s models.StoredSample, ack func(error)) error {
	if err := validateSample(s); err != nil {
		p.metrics.RecordError("ingest_validate")
		return err
	}

	p.gate.RLock()
	defer p.gate.RUnlock()
	if p.closed {
		return ErrPipelineStopped
	}
	select {
	case p.in <- pending{sample: s, ack: ack}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process enqueues one sample and blocks until it is stored or ctx ends.
func (p *IngestPipeline) Process(ctx context.Context, s models.StoredSample) error {
	done := make(chan error, 1)
	if err := p.Enqueue(ctx, s, func(err error) { done <- err }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *IngestPipeline) loop(ctx context.Context) {
	defer close(p.doneCh)

	batch := make([]pending, 0, p.batchSize)
	timer := time.NewTimer(p.batchTimeout)
	defer timer.Stop()

	flush := func(reason string) {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, batch, reason)
		batch = batch[:0]
	}

	for {
		select {
		case item := <-p.in:
			if len(batch) == 0 {
				timer.Reset(p.batchTimeout)
			}
			batch = append(batch, item)
			if len(batch) >= p.batchSize {
				flush("size")
			}
		case <-timer.C:
			flush("timeout")
		case <-p.stopCh:
			for {
				select {
				case item := <-p.in:
					batch = append(batch, item)
				default:
					flush("stop")
					return
				}
			}
		}
	}
}

func (p *IngestPipeline) flush(ctx context.Context, batch []pending, reason string) {
	start := time.Now()
	samples := make([]models.StoredSample, len(batch))
	for i, item := range batch {
		samples[i] = item.sample
	}

	err := p.store.StoreBatch(ctx, samples)
	if err != nil {
		p.metrics.RecordError("ingest_store")
		p.l.Error("ingest batch failed",
			applogger.Int("rows", len(samples)),
			applogger.String("reason", reason),
			applogger.Error(err),
		)
		err = fmt.Errorf("store batch: %w", err)
	} else {
		p.metrics.RecordLatency("ingest_flush", time.Since(start))
		p.l.Debug("ingest batch stored",
			applogger.Int("rows", len(samples)),
			applogger.String("reason", reason),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	for _, item := range batch {
		item.ack(err)
	}
}

func validateSample(s models.StoredSample) error {
	if s.ParticipantID == "" {
		return fmt.Errorf("participant id empty")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown signal kind %q", s.Kind)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return fmt.Errorf("value not finite")
	}
	return nil
}
