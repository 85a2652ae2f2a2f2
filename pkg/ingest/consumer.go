package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"chatmux/pkg/classify"
	"chatmux/pkg/dispatch"
	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/telemetry"
)

// Consumer runs the worker pool that decodes, classifies and dispatches
// queued activities.
type Consumer struct {
	queue      *Queue
	classifier *classify.Classifier
	dispatcher *dispatch.Dispatcher
	workers    int

	wg   sync.WaitGroup
	stop chan struct{}
}

// NewConsumer builds a Consumer. Worker count defaults to 4.
func NewConsumer(q *Queue, cl *classify.Classifier, d *dispatch.Dispatcher, workers int) *Consumer {
	if workers <= 0 {
		workers = 4
	}
	return &Consumer{queue: q, classifier: cl, dispatcher: d, workers: workers, stop: make(chan struct{})}
}

// Start launches the worker goroutines.
func (c *Consumer) Start(ctx context.Context) {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.queue.RunWorker(c.stop, func(j *Job) error {
				return c.process(ctx, j)
			})
		}()
	}
	logger.Info("ingest_workers_started", "workers", c.workers, "queue_capacity", c.queue.Cap())
}

// Stop signals the workers and waits for them to exit.
func (c *Consumer) Stop() {
	close(c.stop)
	c.wg.Wait()
}

// process handles one queued delivery. Decode failures are ignored like
// any other malformed activity; dispatch errors propagate back to the
// producer through the job's result channel.
func (c *Consumer) process(ctx context.Context, j *Job) error {
	var a models.Activity
	if err := json.Unmarshal(j.Payload, &a); err != nil {
		logger.Warn("activity_decode_failed", "error", err)
		return nil
	}
	cls := c.classifier.Classify(&a)
	telemetry.Classifications.WithLabelValues(string(cls.Kind)).Inc()
	logger.Debug("activity_classified",
		"kind", string(cls.Kind), "anchor", cls.Anchor, "activity", a.ID, "conversation", a.Conversation.ID)
	if err := c.dispatcher.Dispatch(ctx, cls); err != nil {
		telemetry.DispatchErrors.Inc()
		logger.Error("dispatch_failed", "kind", string(cls.Kind), "anchor", cls.Anchor, "error", err)
		return fmt.Errorf("dispatch %s: %w", a.ID, err)
	}
	return nil
}
