package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"chatmux/pkg/logger"
)

// Pebble is the KV implementation backed by a local Pebble database.
// Keys are stored as "<scope>:<key>" so both scopes share one keyspace
// while remaining independently prefix-listable.
type Pebble struct {
	db *pebble.DB
}

var _ KV = (*Pebble)(nil)

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Pebble, error) {
	logger.Info("opening_pebble_db", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("pebble_opened", "path", path)
	return &Pebble{db: db}, nil
}

// Close closes the underlying database.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return err
	}
	p.db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and usable.
func (p *Pebble) Ready() bool {
	return p != nil && p.db != nil
}

func fullKey(scope Scope, key string) []byte {
	return []byte(string(scope) + ":" + key)
}

// Set writes the value under the scoped key with a synced write.
func (p *Pebble) Set(scope Scope, key, value string) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	k := fullKey(scope, key)
	if err := p.db.Set(k, []byte(value), pebble.Sync); err != nil {
		logger.Error("store_set_failed", "scope", string(scope), "key", key, "error", err)
		return err
	}
	return nil
}

// Get returns the value stored under the scoped key, or ErrNotFound.
func (p *Pebble) Get(scope Scope, key string) (string, error) {
	if p.db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := p.db.Get(fullKey(scope, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	out := string(v)
	if err := closer.Close(); err != nil {
		return "", err
	}
	return out, nil
}

// ListPrefix returns all entries whose key starts with prefix, in
// ascending key order. Returned keys have the scope prefix stripped.
func (p *Pebble) ListPrefix(scope Scope, prefix string) ([]Entry, error) {
	if p.db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	full := fullKey(scope, prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Entry
	for iter.SeekGE(full); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), full) {
			break
		}
		key := string(iter.Key())[len(string(scope))+1:]
		out = append(out, Entry{Key: key, Value: string(iter.Value())})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the scoped key. Deleting an absent key is not an error.
func (p *Pebble) Delete(scope Scope, key string) error {
	if p.db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return p.db.Delete(fullKey(scope, key), pebble.Sync)
}
