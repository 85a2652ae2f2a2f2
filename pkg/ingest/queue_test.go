package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTryEnqueueFull(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue([]byte(`{"a":1}`), 0, nil); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.TryEnqueue([]byte(`{"a":2}`), 0, nil); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestEnqueueContextCancel(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue([]byte("x"), 0, nil); err != nil {
		t.Fatalf("fill: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, []byte("y"), 0, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestRunWorkerReportsResult(t *testing.T) {
	q := NewQueue(4)
	stop := make(chan struct{})
	defer close(stop)
	want := errors.New("dispatch failed")
	go q.RunWorker(stop, func(j *Job) error {
		if string(j.Payload) == "bad" {
			return want
		}
		return nil
	})

	okCh := make(chan error, 1)
	if err := q.TryEnqueue([]byte("good"), 0, okCh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := <-okCh; err != nil {
		t.Fatalf("got %v, want nil", err)
	}

	badCh := make(chan error, 1)
	if err := q.TryEnqueue([]byte("bad"), 0, badCh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := <-badCh; !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestPayloadCopied(t *testing.T) {
	q := NewQueue(1)
	src := []byte("original")
	if err := q.TryEnqueue(src, 0, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// mutate the caller's buffer; the queued copy must be unaffected
	copy(src, "XXXXXXXX")
	it := <-q.Out()
	defer it.Done()
	if string(it.Job.Payload) != "original" {
		t.Fatalf("payload aliased caller buffer: %q", it.Job.Payload)
	}
}

func TestCloseAndDrainUnblocksProducers(t *testing.T) {
	q := NewQueue(2)
	resCh := make(chan error, 1)
	if err := q.TryEnqueue([]byte("x"), 0, resCh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.CloseAndDrain()
	select {
	case err := <-resCh:
		if err == nil {
			t.Fatalf("expected error for drained job")
		}
	case <-time.After(time.Second):
		t.Fatalf("producer not unblocked by drain")
	}
}
