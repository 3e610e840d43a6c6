// Package kv is a small key-value store with hierarchical keys, used for
// the classification history. Keys are string segments joined with ':'.
//
// Badger backs on-disk stores; Memory serves tests and ephemeral runs.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments.
const Separator = ':'

// Key is a hierarchical path, e.g. Key{"history", "000123", "id"}.
// Segments must not contain Separator.
type Key []string

func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

func (k Key) encode() []byte {
	return []byte(k.String())
}

// prefix returns the scan prefix for k. A non-empty key gets a trailing
// separator so "a:b" does not match "a:bc".
func (k Key) prefix() []byte {
	if len(k) == 0 {
		return nil
	}
	return append(k.encode(), Separator)
}

func decodeKey(b []byte) Key {
	return Key(strings.Split(string(b), string(Separator)))
}

// Entry is a stored pair.
type Entry struct {
	Key   Key
	Value []byte
}

// ListOptions controls a scan.
type ListOptions struct {
	// Reverse scans from the largest key down.
	Reverse bool
	// Limit stops after this many entries. Zero means no limit.
	Limit int
}

// Store is a key-value store.
type Store interface {
	// Get returns ErrNotFound for missing keys.
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key Key) error
	// List yields entries under prefix in lexicographic key order.
	List(ctx context.Context, prefix Key, opts ListOptions) iter.Seq2[Entry, error]
	Close() error
}
