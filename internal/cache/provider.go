// Package cache provides the key/value provider behind the two caches this
// service keeps: the delivery-dedupe guard for failure events and the
// knowledge-search response cache.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Provider is the operation set the service actually issues: reads and
// TTL-bounded writes for the knowledge cache, plus an atomic first-writer
// write for the dedupe guard.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Close() error
}

// NoopProvider stores nothing. With it every dedupe check misses and every
// knowledge search goes to the live index, which is the correct degraded
// behavior when no cache is configured.
type NoopProvider struct{}

// Get always returns ErrCacheMiss.
func (NoopProvider) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

// Set discards the value and returns nil.
func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

// SetNX discards the value and reports the write as won.
func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

// Close is a no-op.
func (NoopProvider) Close() error { return nil }
