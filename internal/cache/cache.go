// Package cache provides a pluggable in-memory cache for computed
// dashboard payloads, keyed by caller identity.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Noop is a Cache that stores nothing; used when caching is disabled
type Noop[T any] struct{}

// Get always misses
func (Noop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

// Set discards the value
func (Noop[T]) Set(string, T) {}

// Delete is a no-op
func (Noop[T]) Delete(string) {}

// Size is always zero
func (Noop[T]) Size() int { return 0 }
