package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatmux/pkg/classify"
	"chatmux/pkg/dispatch"
	"chatmux/pkg/emit"
	"chatmux/pkg/models"
	"chatmux/pkg/registry"
	"chatmux/pkg/store"
	"chatmux/pkg/subscription"
)

type memEmitter struct {
	mu     sync.Mutex
	events []emit.Event
}

func (m *memEmitter) Emit(_ context.Context, ev emit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestConsumerEndToEnd(t *testing.T) {
	kv, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer kv.Close()

	ix := subscription.NewIndex(kv)
	reg := registry.NewStoreRegistry(kv)
	if err := reg.Put(models.Subscriber{ID: "s1", Capability: models.CapabilitySender}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := ix.Register(subscription.Key{Namespace: subscription.NamespaceEvents, Anchor: "7", Subscriber: "s1"}, "evtP"); err != nil {
		t.Fatalf("register: %v", err)
	}

	em := &memEmitter{}
	q := NewQueue(16)
	c := NewConsumer(q, classify.New("28:12345", nil), dispatch.New(ix, reg, em), 2)
	c.Start(context.Background())
	defer c.Stop()

	body := []byte(`{"type":"messageReaction","id":"8","replyToId":"7","reactionsAdded":[{"type":"like"}]}`)
	resCh := make(chan error, 1)
	if err := q.TryEnqueue(body, time.Now().UnixNano(), resCh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := <-resCh; err != nil {
		t.Fatalf("dispatch result: %v", err)
	}
	if em.count() != 1 {
		t.Fatalf("got %d events, want 1", em.count())
	}

	// malformed body is dropped, not an error
	resCh2 := make(chan error, 1)
	if err := q.TryEnqueue([]byte("not json"), 0, resCh2); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := <-resCh2; err != nil {
		t.Fatalf("malformed body should not error: %v", err)
	}
	if em.count() != 1 {
		t.Fatalf("malformed body emitted events")
	}
}
