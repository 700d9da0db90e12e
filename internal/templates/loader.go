package templates

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader resolves templates by name and caches every successful load for its
// own lifetime. Misses are not cached and the cache is never invalidated; a
// fresh Loader starts with an empty cache.
type Loader struct {
	resolver Resolver
	logger   zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Unit
	group singleflight.Group
}

// NewLoader creates a Loader backed by resolver.
func NewLoader(resolver Resolver, logger zerolog.Logger) *Loader {
	return &Loader{
		resolver: resolver,
		logger:   logger,
		cache:    make(map[string]*Unit),
	}
}

// Load returns the template called name, or nil when it cannot be found.
// Resolver failures are logged and reported as not found.
func (l *Loader) Load(ctx context.Context, name string) *Unit {
	if name == "" || l.resolver == nil {
		return nil
	}

	l.mu.RLock()
	unit, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return unit
	}

	v, err, _ := l.group.Do(name, func() (any, error) {
		l.mu.RLock()
		cached, ok := l.cache[name]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}

		ref := ParseName(name)
		unit, err := l.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		if unit == nil {
			return (*Unit)(nil), nil
		}
		if unit.Name == "" {
			named := *unit
			named.Name = ref.Path()
			unit = &named
		}

		l.mu.Lock()
		l.cache[name] = unit
		l.mu.Unlock()
		return unit, nil
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("template", name).Msg("template could not be resolved")
		return nil
	}

	unit, _ = v.(*Unit)
	if unit == nil {
		l.logger.Debug().Str("template", name).Msg("template not found")
	}
	return unit
}

// Cached reports how many templates are held in the cache.
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
