package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "MealSignal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// AckHandler is a MessageHandler that finishes messages later. When
// HandleAsync returns nil it must call ack exactly once with the final
// outcome; the offset is committed only after that. When it returns an
// error ack is never called and the message goes through Handle instead.
// ack does not block.
type AckHandler interface {
	MessageHandler
	HandleAsync(ctx context.Context, data []byte, ack func(error)) error
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages from one reader per topic out to a worker pool.
// Messages of one partition are handed to the handler one at a time so
// per-partition order is preserved; offsets are committed after success or
// after the message went to the DLQ. An AckHandler releases the partition as
// soon as it accepts a message and settles the offset later.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *applogger.Logger
	readers   map[string]messageReader
	handlers  map[string]MessageHandler
	msgChan   chan *message
	dlq       messageWriter
	hook      ConsumerHook
	metrics   *consumerMetrics
	newReader func(topic string) messageReader

	cancel    context.CancelFunc
	readersWg sync.WaitGroup
	workersWg sync.WaitGroup
	acksWg    sync.WaitGroup
	stopOnce  sync.Once

	partMu    sync.Mutex
	partLocks map[string]map[int]*sync.Mutex

	commitMu  sync.Mutex
	committed map[partitionKey]int64
}

type partitionKey struct {
	topic     string
	partition int
}

type message struct {
	topic string
	km    kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    10e3,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	l := cfg.Logger
	if l == nil {
		l = applogger.Nop()
	}

	c := &Consumer{
		cfg:       cfg,
		log:       l,
		readers:   make(map[string]messageReader),
		handlers:  make(map[string]MessageHandler),
		msgChan:   make(chan *message, cfg.BufferSize),
		partLocks: make(map[string]map[int]*sync.Mutex),
		committed: make(map[partitionKey]int64),
		hook:      NoopHook{},
		metrics:   newConsumerMetrics(cfg.Registerer),
	}
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		}
	}

	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one reader goroutine per registered topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		c.readers[topic] = c.newReader(topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.workersWg.Add(1)
		go c.messageWorker(ctx)
	}

	for topic, reader := range c.readers {
		c.readersWg.Add(1)
		go c.consumeMessages(ctx, topic, reader)
	}

	c.log.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Int("topics", len(c.readers)),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop stops reading, drains buffered messages through the workers, waits
// for outstanding acks and closes readers. It returns early with an error when ctx expires.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()

		// Readers must be gone before msgChan is closed.
		stopErr = waitGroup(ctx, &c.readersWg)
		if stopErr == nil {
			close(c.msgChan)
			stopErr = waitGroup(ctx, &c.workersWg)
		}
		if stopErr == nil {
			stopErr = waitGroup(ctx, &c.acksWg)
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka reader close", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.log.Warn("kafka dlq close", applogger.Error(err))
			}
		}

		if stopErr == nil {
			c.log.Info("kafka consumer stopped")
		}
	})

	return stopErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) consumeMessages(ctx context.Context, topic string, reader messageReader) {
	defer c.readersWg.Done()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}

		// Blocking send is the backpressure: a full buffer pauses fetching.
		select {
		case c.msgChan <- &message{topic: topic, km: km}:
			c.metrics.queueDepth(topic, len(c.msgChan), cap(c.msgChan))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) messageWorker(ctx context.Context) {
	defer c.workersWg.Done()

	for msg := range c.msgChan {
		handler, ok := c.handlers[msg.topic]
		if !ok {
			continue
		}
		c.process(ctx, handler, msg)
	}
}

func (c *Consumer) process(ctx context.Context, handler MessageHandler, msg *message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("kafka handler panic",
				applogger.String("topic", msg.topic),
				applogger.Any("panic", r),
			)
		}
	}()

	pl := c.partitionLock(msg.topic, msg.km.Partition)
	pl.Lock()
	defer pl.Unlock()

	// Handling uses a context detached from shutdown so an accepted
	// message is finished, not abandoned halfway through a retry.
	hctx := context.WithoutCancel(ctx)

	if ah, ok := handler.(AckHandler); ok && c.handleAsync(hctx, ah, msg, start) {
		return
	}
	attempts, err := c.handle(hctx, handler, msg, 0)
	c.settle(hctx, msg, err, attempts, start)
}

// handleAsync hands msg to h and reports whether h accepted it. The offset is
// settled from the ack; a failed ack falls back to the retry loop.
func (c *Consumer) handleAsync(ctx context.Context, h AckHandler, msg *message, start time.Time) bool {
	hctx, hmsg, hdata, err := c.hook.BeforeHandle(ctx, msg.topic, msg.km, msg.km.Value)
	if err != nil {
		return false
	}

	c.acksWg.Add(1)
	err = h.HandleAsync(hctx, hdata, func(aerr error) {
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, aerr)
		go func() {
			defer c.acksWg.Done()
			attempts := 1
			if aerr != nil && !errors.Is(aerr, ErrPermanent) {
				c.hook.OnError(hctx, msg.topic, hmsg, hdata, aerr)
				attempts, aerr = c.handle(ctx, h, msg, attempts)
			}
			c.settle(ctx, msg, aerr, attempts, start)
		}()
	})
	if err != nil {
		c.acksWg.Done()
		return false
	}
	return true
}

// handle runs the synchronous retry loop. attempts counts tries already made.
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg *message, attempts int) (int, error) {
	for {
		attempts++
		hctx, hmsg, hdata, err := c.hook.BeforeHandle(ctx, msg.topic, msg.km, msg.km.Value)
		if err != nil {
			return attempts, err
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, msg.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax || errors.Is(err, ErrPermanent) {
			return attempts, err
		}
		c.hook.OnError(hctx, msg.topic, hmsg, hdata, err)
		time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts))
	}
}

// settle commits msg after success, or after a failure that reached the DLQ.
func (c *Consumer) settle(ctx context.Context, msg *message, err error, attempts int, start time.Time) {
	sentToDLQ := false
	if err != nil {
		c.hook.OnError(ctx, msg.topic, msg.km, msg.km.Value, err)
		c.log.Error("kafka message failed",
			applogger.String("topic", msg.topic),
			applogger.Int("partition", msg.km.Partition),
			applogger.Int64("offset", msg.km.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		sentToDLQ = c.toDLQ(ctx, msg)
	}

	if err == nil || sentToDLQ {
		c.commit(msg)
	}
	c.metrics.handled(msg.topic, err, time.Since(start))
}

// commit never moves a partition's committed offset backwards; acks of one
// batch settle concurrently.
func (c *Consumer) commit(msg *message) {
	reader := c.readers[msg.topic]
	if reader == nil {
		return
	}
	key := partitionKey{topic: msg.topic, partition: msg.km.Partition}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	if last, ok := c.committed[key]; ok && msg.km.Offset <= last {
		return
	}
	if err := c.commitWithRetry(reader, msg.km, 3); err == nil {
		c.committed[key] = msg.km.Offset
	}
}

func (c *Consumer) toDLQ(ctx context.Context, msg *message) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     msg.km.Key,
		Value:   msg.km.Value,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(msg.topic)}},
	})
	if err != nil {
		c.log.Error("kafka dlq write failed", applogger.String("dlq", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader messageReader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka commit failed", applogger.String("topic", km.Topic), applogger.Int("attempts", max), applogger.Error(err))
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	c.partMu.Lock()
	defer c.partMu.Unlock()

	m, ok := c.partLocks[topic]
	if !ok {
		m = make(map[int]*sync.Mutex)
		c.partLocks[topic] = m
	}
	l, ok := m[partition]
	if !ok {
		l = &sync.Mutex{}
		m[partition] = l
	}
	return l
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

type consumerMetrics struct {
	depth    *prometheus.GaugeVec
	fullness *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	if reg == nil {
		return nil
	}
	m := &consumerMetrics{
		depth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "mealsignal_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"},
			[]string{"topic"},
		),
		fullness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "mealsignal_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"},
			[]string{"topic"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "mealsignal_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "mealsignal_kafka_consumer_messages_total", Help: "Handled messages by result"},
			[]string{"topic", "result"},
		),
	}
	reg.MustRegister(m.depth, m.fullness, m.latency, m.results)
	return m
}

func (m *consumerMetrics) queueDepth(topic string, n, capacity int) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues(topic).Set(float64(n))
	if capacity > 0 {
		m.fullness.WithLabelValues(topic).Set(float64(n) / float64(capacity))
	}
}

func (m *consumerMetrics) handled(topic string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.results.WithLabelValues(topic, result).Inc()
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
