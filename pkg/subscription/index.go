// Package subscription implements the prefix-keyed subscription index:
// many-to-many registration of subscriber handles against correlation
// anchors, plus the write-once anchor to parent-event mapping.
package subscription

import (
	"errors"
	"fmt"

	"chatmux/pkg/logger"
	"chatmux/pkg/store"
)

// marker value for registration keys; presence is what matters.
const marker = "1"

// parentKeyPrefix namespaces the anchor to parent-event map in the
// handle-local scope.
const parentKeyPrefix = "parent:"

// Index is the read/write layer over the KV store. Registrations live in
// the shared scope under encoded composite keys; the parent-event map
// lives in the local scope keyed by anchor.
type Index struct {
	kv store.KV
}

// NewIndex returns an Index over the given store.
func NewIndex(kv store.KV) *Index {
	return &Index{kv: kv}
}

// Register idempotently marks (namespace, anchor, subscriber) present and
// records anchor -> eventID once. A later registration with a different
// event id never overwrites the recorded parent: downstream events keep
// attaching to the original logical parent.
func (ix *Index) Register(key Key, eventID string) error {
	if key.Anchor == "" || key.Subscriber == "" {
		return fmt.Errorf("subscription key incomplete: %+v", key)
	}
	if err := ix.kv.Set(store.ScopeShared, key.Encode(), marker); err != nil {
		return fmt.Errorf("register %s: %w", key.Encode(), err)
	}
	if eventID != "" {
		if err := ix.recordParent(key.Anchor, eventID); err != nil {
			return err
		}
	}
	logger.Debug("subscription_registered",
		"namespace", string(key.Namespace), "anchor", key.Anchor, "subscriber", key.Subscriber)
	return nil
}

// recordParent writes anchor -> eventID unless a mapping already exists.
func (ix *Index) recordParent(anchor, eventID string) error {
	k := parentKeyPrefix + anchor
	if _, err := ix.kv.Get(store.ScopeLocal, k); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("read parent event for %s: %w", anchor, err)
	}
	if err := ix.kv.Set(store.ScopeLocal, k, eventID); err != nil {
		return fmt.Errorf("record parent event for %s: %w", anchor, err)
	}
	return nil
}

// Lookup returns the subscriber ids registered under (namespace, anchor),
// deduplicated, in stored key order.
func (ix *Index) Lookup(ns Namespace, anchor string) ([]string, error) {
	entries, err := ix.kv.ListPrefix(store.ScopeShared, Prefix(ns, anchor))
	if err != nil {
		return nil, fmt.Errorf("lookup %s/%s: %w", ns, anchor, err)
	}
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		k, derr := DecodeKey(e.Key)
		if derr != nil {
			logger.Warn("subscription_key_malformed", "key", e.Key)
			continue
		}
		if _, dup := seen[k.Subscriber]; dup {
			continue
		}
		seen[k.Subscriber] = struct{}{}
		out = append(out, k.Subscriber)
	}
	return out, nil
}

// ParentEvent returns the originating event id recorded for anchor.
// Absence is not an error: it means no live registration was ever
// recorded and callers must silently drop the activity.
func (ix *Index) ParentEvent(anchor string) (string, bool, error) {
	v, err := ix.kv.Get(store.ScopeLocal, parentKeyPrefix+anchor)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve parent event for %s: %w", anchor, err)
	}
	return v, true, nil
}

// Remove deletes one registration. The parent-event mapping is left in
// place: it stays correct for any other subscriber under the anchor and
// becomes unreachable garbage otherwise.
func (ix *Index) Remove(key Key) error {
	return ix.kv.Delete(store.ScopeShared, key.Encode())
}

// ListNamespace returns every registration under a namespace. Used by
// the janitor sweep and the inspect tool.
func (ix *Index) ListNamespace(ns Namespace) ([]Key, error) {
	entries, err := ix.kv.ListPrefix(store.ScopeShared, string(ns)+sep)
	if err != nil {
		return nil, err
	}
	out := make([]Key, 0, len(entries))
	for _, e := range entries {
		k, derr := DecodeKey(e.Key)
		if derr != nil {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}
