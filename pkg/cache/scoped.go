package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This matters for shared Redis caches, where several model repositories
// may use the same instance and must not collide.
//
// Example usage:
//
//	// Repository-specific keys on a shared cache
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "myrepo:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// FrameKey generates a prefixed key for a rendered frame.
func (k *ScopedKeyer) FrameKey(sourceHash string, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(sourceHash, opts)
}

// Ensure ScopedKeyer implements Keyer.
var _ Keyer = (*ScopedKeyer)(nil)
