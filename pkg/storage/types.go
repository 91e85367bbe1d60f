package storage

import "context"

// KV is the durable key-value store backing the resolution cache.
// A missing key is not an error: Get reports it through ok.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
