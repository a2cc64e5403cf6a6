// Package localcache is the local mirror that editor sessions write their
// snapshots to. It is an optimization: callers log and swallow its errors.
package localcache

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by stores that cannot accept writes.
var ErrUnavailable = errors.New("local cache unavailable")

// Store is a string key/value cache.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
