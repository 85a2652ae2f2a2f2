package janitor

import (
	"context"
	"testing"

	"chatmux/pkg/config"
	"chatmux/pkg/models"
	"chatmux/pkg/registry"
	"chatmux/pkg/store"
	"chatmux/pkg/subscription"
)

func newFixture(t *testing.T) (*subscription.Index, *registry.StoreRegistry) {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return subscription.NewIndex(kv), registry.NewStoreRegistry(kv)
}

func register(t *testing.T, ix *subscription.Index, ns subscription.Namespace, anchor, sub string) {
	t.Helper()
	if err := ix.Register(subscription.Key{Namespace: ns, Anchor: anchor, Subscriber: sub}, "evt"); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func TestRunOnceRemovesStaleKeepsLive(t *testing.T) {
	ix, reg := newFixture(t)
	if err := reg.Put(models.Subscriber{ID: "live", Capability: models.CapabilitySender}); err != nil {
		t.Fatalf("put: %v", err)
	}
	register(t, ix, subscription.NamespaceEvents, "7", "live")
	register(t, ix, subscription.NamespaceEvents, "7", "stale")
	register(t, ix, subscription.NamespaceReplies, "19:room", "stale")

	if err := RunOnce(config.JanitorConfig{}, ix, reg); err != nil {
		t.Fatalf("run once: %v", err)
	}

	subs, err := ix.Lookup(subscription.NamespaceEvents, "7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(subs) != 1 || subs[0] != "live" {
		t.Fatalf("events subscribers = %v, want [live]", subs)
	}
	subs, err = ix.Lookup(subscription.NamespaceReplies, "19:room")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("replies subscribers = %v, want none", subs)
	}
}

// Thread handles keep replies subscriptions alive but do not vouch for
// events subscriptions.
func TestRunOnceCapabilityScoped(t *testing.T) {
	ix, reg := newFixture(t)
	if err := reg.Put(models.Subscriber{ID: "t1", Capability: models.CapabilityThread}); err != nil {
		t.Fatalf("put: %v", err)
	}
	register(t, ix, subscription.NamespaceReplies, "19:room", "t1")
	register(t, ix, subscription.NamespaceEvents, "7", "t1")

	if err := RunOnce(config.JanitorConfig{}, ix, reg); err != nil {
		t.Fatalf("run once: %v", err)
	}

	subs, _ := ix.Lookup(subscription.NamespaceReplies, "19:room")
	if len(subs) != 1 {
		t.Fatalf("replies subscribers = %v, want [t1]", subs)
	}
	subs, _ = ix.Lookup(subscription.NamespaceEvents, "7")
	if len(subs) != 0 {
		t.Fatalf("events subscribers = %v, want none", subs)
	}
}

func TestRunOnceDryRun(t *testing.T) {
	ix, reg := newFixture(t)
	register(t, ix, subscription.NamespaceEvents, "7", "stale")

	if err := RunOnce(config.JanitorConfig{DryRun: true}, ix, reg); err != nil {
		t.Fatalf("run once: %v", err)
	}
	subs, err := ix.Lookup(subscription.NamespaceEvents, "7")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("dry run must not remove entries, got %v", subs)
	}
}

func TestStartDisabled(t *testing.T) {
	ix, reg := newFixture(t)
	cancel, err := Start(context.Background(), config.JanitorConfig{Enabled: false}, ix, reg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
}

func TestStartInvalidCron(t *testing.T) {
	ix, reg := newFixture(t)
	_, err := Start(context.Background(), config.JanitorConfig{Enabled: true, Cron: "not a cron"}, ix, reg)
	if err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}
