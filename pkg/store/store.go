package store

import "errors"

// Scope partitions the key space. The shared scope holds prefix-listable
// correlation keys; the local scope holds per-handle bookkeeping keyed
// simply.
type Scope string

const (
	ScopeShared Scope = "shared"
	ScopeLocal  Scope = "local"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("store: key not found")

// Entry is one (key, value) pair returned by prefix listing. Key is the
// caller's key without the scope prefix.
type Entry struct {
	Key   string
	Value string
}

// KV is the scoped key-value store consumed by the subscription index
// and the subscriber registry. ListPrefix returns entries in ascending
// key order.
type KV interface {
	Set(scope Scope, key, value string) error
	Get(scope Scope, key string) (string, error)
	ListPrefix(scope Scope, prefix string) ([]Entry, error)
	Delete(scope Scope, key string) error
	Close() error
}
