package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Job is one queued webhook delivery: the raw activity JSON plus an
// optional result channel the producer waits on for the dispatch
// outcome. Payload may be backed by a pooled ByteBuffer; consumers must
// call Item.Done() when finished.
type Job struct {
	// Payload holds the raw activity JSON.
	Payload []byte
	// TS is the enqueue timestamp (nanoseconds).
	TS int64
	// EnqSeq is a monotonic enqueue sequence assigned when the job is
	// accepted into the queue.
	EnqSeq uint64
	// Result, when non-nil, receives the dispatch outcome exactly once.
	Result chan error
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("ingest queue full")

// Item wraps a Job and owns a pooled ByteBuffer if one was used.
// Consumers MUST call Done() exactly once after processing the item to
// return pooled resources.
type Item struct {
	Job *Job

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases internal pooled resources (buffer + job) back to the pool.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			// avoid retaining huge buffers in the pool
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		// clear slice header to avoid retention
		if it.Job != nil {
			it.Job.Payload = nil
			it.Job.Result = nil
			jobPool.Put(it.Job)
			it.Job = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue between the webhook handler and the
// dispatch workers. It is safe for concurrent producers.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var jobPool = sync.Pool{New: func() any { return &Job{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer controls the largest buffer size that will be returned
// to the pooled ByteBuffer. Buffers larger than this are dropped to
// avoid unbounded resident memory.
var maxPooledBuffer = 256 * 1024 // 256 KiB

var enqSeq uint64

// NewQueue creates a new bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns a read-only channel that consumers can range over to
// receive queued items.
func (q *Queue) Out() <-chan *Item { return q.ch }

func buildItem(payload []byte, ts int64, result chan error) *Item {
	job := jobPool.Get().(*Job)
	job.TS = ts
	job.Result = result
	job.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], payload...)
		job.Payload = bb.B[:len(payload)]
	} else {
		job.Payload = nil
	}
	it := itemPool.Get().(*Item)
	*it = Item{Job: job, buf: bb}
	return it
}

func releaseItem(it *Item) {
	if it.buf != nil {
		bytebufferpool.Put(it.buf)
	}
	it.Job.Payload = nil
	it.Job.Result = nil
	jobPool.Put(it.Job)
	it.Job = nil
	itemPool.Put(it)
}

// TryEnqueue copies payload into a pooled buffer and enqueues a job
// without blocking. If the queue is full ErrQueueFull is returned and
// the caller should reject the delivery upstream.
func (q *Queue) TryEnqueue(payload []byte, ts int64, result chan error) error {
	it := buildItem(payload, ts, result)
	select {
	case q.ch <- it:
		return nil
	default:
		releaseItem(it)
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or the context is done.
func (q *Queue) Enqueue(ctx context.Context, payload []byte, ts int64, result chan error) error {
	it := buildItem(payload, ts, result)
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		releaseItem(it)
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue channel and drains remaining items,
// ensuring their resources are released and waiting producers are
// unblocked with an error.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		if it.Job != nil && it.Job.Result != nil {
			it.Job.Result <- errors.New("ingest queue closed")
		}
		it.Done()
	}
}

// RunWorker runs a worker loop that invokes handler for each dequeued
// job and reports the outcome to the job's result channel. It
// guarantees Item.Done() is called even if handler returns an error.
// The worker exits when stop is closed or when the queue is closed.
func (q *Queue) RunWorker(stop <-chan struct{}, handler func(*Job) error) {
	for {
		select {
		case it, ok := <-q.ch:
			if !ok {
				return
			}
			func(it *Item) {
				defer it.Done()
				err := handler(it.Job)
				if it.Job.Result != nil {
					it.Job.Result <- err
				}
			}(it)
		case <-stop:
			return
		}
	}
}

// Len returns the current number of items in the queue.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity of the queue.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of jobs rejected due to a full queue or
// context cancellations during enqueue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
