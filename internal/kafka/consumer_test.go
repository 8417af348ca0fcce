package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu      sync.Mutex
	queue   []kafka.Message
	commits []int64
	closed  bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("ok")},
		{Offset: 2, Value: []byte("bad")},
		{Offset: 3, Value: []byte("ok")},
	}}
	c := newConsumer(r, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	var seen sync.WaitGroup
	seen.Add(3)
	h := func(_ context.Context, m kafka.Message) error {
		defer seen.Done()
		if string(m.Value) == "bad" {
			return errors.New("poison")
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() { errc <- c.Start(ctx, h) }()

	seen.Wait()
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commits) != 2 {
		t.Fatalf("commits = %v, want offsets 1 and 3", r.commits)
	}
	for _, off := range r.commits {
		if off == 2 {
			t.Fatalf("failed message committed: %v", r.commits)
		}
	}
	if !r.closed {
		t.Fatal("reader not closed")
	}
}

func TestHeader(t *testing.T) {
	m := kafka.Message{Headers: []kafka.Header{{Key: "x-event-type", Value: []byte("order_created")}}}
	if got := Header(m, "x-event-type"); got != "order_created" {
		t.Fatalf("Header = %q", got)
	}
	if got := Header(m, "missing"); got != "" {
		t.Fatalf("Header(missing) = %q", got)
	}
}
