package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"playground-transcript-feed/internal/models"
)

type fakeReader struct {
	mu     sync.Mutex
	queue  []any // kafka.Message or error
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	if err, ok := next.(error); ok {
		return kafka.Message{}, err
	}
	return next.(kafka.Message), nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type recordingDispatcher struct {
	events []models.IngestEvent
	err    error
}

func (d *recordingDispatcher) Handle(_ context.Context, source string, ev models.IngestEvent) error {
	if source != IngestSource {
		return errors.New("unexpected source " + source)
	}
	d.events = append(d.events, ev)
	return d.err
}

func TestConsumer_DispatchesEvents(t *testing.T) {
	reader := &fakeReader{queue: []any{
		kafka.Message{Value: []byte(`{"eventType":"chat.message","roomId":"r","chat":{"message":"hi"}}`)},
		kafka.Message{Value: []byte(`not json`)},
		errors.New("broker hiccup"),
		kafka.Message{Value: []byte(`{"eventType":"room.roster","roomId":"r"}`)},
	}}
	d := &recordingDispatcher{}
	c := newConsumer(reader, d, "ingest")
	c.backoff = time.Millisecond

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(d.events) != 2 {
		t.Fatalf("expected 2 dispatched events, got %d", len(d.events))
	}
	if d.events[0].EventType != models.EventChat || d.events[0].Chat.Message != "hi" {
		t.Errorf("unexpected first event: %+v", d.events[0])
	}
	if d.events[1].EventType != models.EventRoster {
		t.Errorf("unexpected second event: %+v", d.events[1])
	}
}

func TestConsumer_RejectedEventsAreSkipped(t *testing.T) {
	reader := &fakeReader{queue: []any{
		kafka.Message{Value: []byte(`{"eventType":"room.roster","roomId":"a"}`)},
		kafka.Message{Value: []byte(`{"eventType":"room.roster","roomId":"b"}`)},
	}}
	d := &recordingDispatcher{err: errors.New("rejected")}
	c := newConsumer(reader, d, "ingest")

	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.events) != 2 {
		t.Errorf("expected both events to reach the dispatcher, got %d", len(d.events))
	}
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	reader := &fakeReader{queue: []any{errors.New("down")}}
	c := newConsumer(reader, &recordingDispatcher{}, "ingest")
	c.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop on cancel")
	}

	if err := c.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
	if !reader.closed {
		t.Error("expected reader to be closed")
	}
}
