package storage

import "context"

// KeyValue is the durable local storage the ledger persists into. A value
// is an opaque document rewritten wholesale on every Set.
type KeyValue interface {
	// Get returns the value under key. ok is false when nothing was stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the value under key.
	Set(ctx context.Context, key string, value []byte) error
}
