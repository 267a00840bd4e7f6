package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(16)
	for i := 0; i < 10; i++ {
		if err := q.TryPublish(Event{Topic: "t", Payload: i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	q.Close()

	var got []int
	q.Run(context.Background(), func(e Event) {
		got = append(got, e.Payload.(int))
	})

	if len(got) != 10 {
		t.Fatalf("expected 10 events, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d out of order: got %d", i, v)
		}
	}
}

func TestQueueTryPublishFull(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPublish(Event{Topic: "t"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := q.TryPublish(Event{Topic: "t"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueueClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // idempotent
	if err := q.TryPublish(Event{Topic: "t"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if err := q.Publish(context.Background(), Event{Topic: "t"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestQueueBlockingReceive(t *testing.T) {
	q := NewQueue(4)
	received := make(chan Event, 1)

	go q.Run(context.Background(), func(e Event) {
		received <- e
	})

	// The consumer is parked on the channel; publish wakes it.
	time.Sleep(10 * time.Millisecond)
	if err := q.TryPublish(Event{Topic: "wake", Payload: 42}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case e := <-received:
		if e.Topic != "wake" {
			t.Fatalf("unexpected topic %q", e.Topic)
		}
		if e.EnqueuedAt.IsZero() {
			t.Fatal("enqueue time should be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not wake up")
	}
	q.Close()
}

func TestQueueCloseDuringConcurrentPublish(t *testing.T) {
	q := NewQueue(8)

	done := make(chan struct{})
	go q.Run(context.Background(), func(Event) {})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if err := q.TryPublish(Event{Topic: "t"}); errors.Is(err, ErrQueueClosed) {
					return
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	q.Close()
	close(done)
	wg.Wait()

	if err := q.TryPublish(Event{Topic: "t"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after close, got %v", err)
	}
}

func TestQueueMultipleConsumersDeliverEachEventOnce(t *testing.T) {
	q := NewQueue(128)
	const events = 100

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Run(context.Background(), func(e Event) {
				mu.Lock()
				seen[e.Payload.(int)]++
				mu.Unlock()
			})
		}()
	}

	for i := 0; i < events; i++ {
		if err := q.Publish(context.Background(), Event{Topic: "t", Payload: i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	q.Close()
	wg.Wait()

	if len(seen) != events {
		t.Fatalf("expected %d distinct events, got %d", events, len(seen))
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("event %d delivered %d times", k, n)
		}
	}
}
