package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront-checkout/internal/metrics"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrProducerClosed = errors.New("kafka producer closed")

const writeTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from a single
// goroutine, so Publish never waits on the broker.
type Producer struct {
	w       messageWriter
	topic   string
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger, m *metrics.Metrics) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}
	return newProducer(w, topic, buf, log, m)
}

func newProducer(w messageWriter, topic string, buf int, log *zap.Logger, m *metrics.Metrics) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		topic:   topic,
		log:     log.With(zap.String("topic", topic)),
		metrics: m,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
	}
}

// Start runs the writer loop. Cancelling ctx has the same effect as Close:
// queued messages are flushed before the writer is closed.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-p.done:
		}
	}()
	go p.loop()
}

func (p *Producer) loop() {
	defer close(p.done)
	for m := range p.inbox {
		p.write(m)
	}
	if err := p.w.Close(); err != nil {
		p.log.Warn("kafka writer close", zap.Error(err))
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.metrics.KafkaPublish.WithLabelValues(p.topic, "error").Inc()
		p.log.Error("kafka write failed", zap.ByteString("key", m.Key), zap.Error(err))
		return
	}
	p.metrics.KafkaPublish.WithLabelValues(p.topic, "ok").Inc()
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	m := kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting messages; the loop flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the queue is drained and the writer closed.
func (p *Producer) WaitClosed() { <-p.done }
