// Package registry is the authoritative record of live subscriber
// handles. The subscription index may reference handles that were since
// removed here; dispatch filters against this registry on every
// delivery.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"chatmux/pkg/logger"
	"chatmux/pkg/models"
	"chatmux/pkg/store"
)

// Registry enumerates currently-registered subscriber handles by
// capability.
type Registry interface {
	ListByCapability(cap models.Capability) ([]models.Subscriber, error)
}

// keyFor builds the local-scope storage key for a handle.
func keyFor(cap models.Capability, id string) string {
	return "registry:" + string(cap) + ":" + id
}

// StoreRegistry is the KV-backed Registry implementation.
type StoreRegistry struct {
	kv store.KV
}

var _ Registry = (*StoreRegistry)(nil)

// NewStoreRegistry returns a registry over the given store.
func NewStoreRegistry(kv store.KV) *StoreRegistry {
	return &StoreRegistry{kv: kv}
}

// Put registers (or replaces) a subscriber handle.
func (r *StoreRegistry) Put(sub models.Subscriber) error {
	if sub.ID == "" || sub.Capability == "" {
		return fmt.Errorf("subscriber incomplete: %+v", sub)
	}
	b, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscriber %s: %w", sub.ID, err)
	}
	if err := r.kv.Set(store.ScopeLocal, keyFor(sub.Capability, sub.ID), string(b)); err != nil {
		return err
	}
	logger.Info("subscriber_registered", "id", sub.ID, "capability", string(sub.Capability))
	return nil
}

// Remove deletes a subscriber handle. Stale subscription index entries
// referencing it are dropped by the dispatch-time liveness filter.
func (r *StoreRegistry) Remove(cap models.Capability, id string) error {
	if err := r.kv.Delete(store.ScopeLocal, keyFor(cap, id)); err != nil {
		return err
	}
	logger.Info("subscriber_removed", "id", id, "capability", string(cap))
	return nil
}

// Get returns one subscriber handle, or store.ErrNotFound.
func (r *StoreRegistry) Get(cap models.Capability, id string) (models.Subscriber, error) {
	v, err := r.kv.Get(store.ScopeLocal, keyFor(cap, id))
	if err != nil {
		return models.Subscriber{}, err
	}
	var sub models.Subscriber
	if err := json.Unmarshal([]byte(v), &sub); err != nil {
		return models.Subscriber{}, fmt.Errorf("invalid stored subscriber %s: %w", id, err)
	}
	return sub, nil
}

// Exists reports whether the handle is currently registered.
func (r *StoreRegistry) Exists(cap models.Capability, id string) (bool, error) {
	if _, err := r.Get(cap, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByCapability returns all live handles of the given capability in
// id order.
func (r *StoreRegistry) ListByCapability(cap models.Capability) ([]models.Subscriber, error) {
	entries, err := r.kv.ListPrefix(store.ScopeLocal, "registry:"+string(cap)+":")
	if err != nil {
		return nil, err
	}
	out := make([]models.Subscriber, 0, len(entries))
	for _, e := range entries {
		var sub models.Subscriber
		if err := json.Unmarshal([]byte(e.Value), &sub); err != nil {
			logger.Warn("subscriber_record_malformed", "key", e.Key)
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}
