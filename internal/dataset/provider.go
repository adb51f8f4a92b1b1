package dataset

import "context"

// Provider hands out the current normalized table.
type Provider interface {
	Table(ctx context.Context) (*Table, error)
}

// CachedSource binds one Source to a Cache. It is the Provider every server uses.
type CachedSource struct {
	Cache  *Cache
	Source Source
}

func (p CachedSource) Table(ctx context.Context) (*Table, error) {
	return p.Cache.Load(ctx, p.Source)
}

// Reload forgets the source's fingerprint and loads again. The table is only
// re-derived when the content actually changed.
func (p CachedSource) Reload(ctx context.Context) (*Table, error) {
	p.Cache.Invalidate(p.Source.Name())
	return p.Cache.Load(ctx, p.Source)
}
