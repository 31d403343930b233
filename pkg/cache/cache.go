// Package cache provides caching for expensive render operations.
//
// OpenSCAD raytraces every frame from scratch, so re-rendering an unchanged
// model is by far the most expensive no-op in a build. The cache stores
// rendered frame bytes keyed by a hash of everything that influences the
// output: source content, define values, camera/view overrides and the
// working resolution.
//
// Backends:
//   - FileCache: on-disk cache for single-machine CLI usage (the default)
//   - RedisCache: shared cache for teams running builds against the same models
//   - NullCache: disables caching entirely
//
// # Usage
//
//	c, _ := cache.NewFileCache(dir)
//	defer c.Close()
//
//	keyer := cache.NewDefaultKeyer()
//	key := keyer.FrameKey(srcHash, cache.FrameKeyOpts{Defines: defs, Size: "1200,900"})
//	if data, hit, _ := c.Get(ctx, key); hit {
//	    // reuse rendered frame
//	}
package cache

import (
	"context"
	"time"
)

// TTL values for cached entries.
const (
	// TTLFrame is how long rendered frames are kept. Frames are keyed by a
	// content hash, so stale entries are only ever garbage, never wrong.
	TTLFrame = 30 * 24 * time.Hour
)

// Cache stores binary blobs with optional expiration.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// FrameKeyOpts captures everything that influences a rendered frame.
type FrameKeyOpts struct {
	Defines string // Formatted define arguments, joined
	Camera  string // Camera override, if any
	View    string // View options override, if any
	Size    string // Working render resolution, e.g. "1200,900"
}

// Keyer generates cache keys for the different cached artifact kinds.
// Key generation is separated from storage so that shared backends can
// namespace keys (see ScopedKeyer).
type Keyer interface {
	// FrameKey generates a key for a rendered frame. sourceHash is the
	// content hash of the .scad source being rendered.
	FrameKey(sourceHash string, opts FrameKeyOpts) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// FrameKey generates a key for a rendered frame.
func (k *DefaultKeyer) FrameKey(sourceHash string, opts FrameKeyOpts) string {
	return hashKey("frame", sourceHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
