// Package registry provides the project candidate list: a static list from
// configuration, or a remote registry behind an explicit TTL cache.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/meetlink/internal/domain/model"
	"github.com/okian/meetlink/pkg/logger"
)

// Cache timing defaults.
const (
	// DefaultTTL is how long a fetched project list is served without refresh.
	DefaultTTL = 5 * time.Minute
	// DefaultRetryAfter is how long a stale list is served after a failed
	// refresh before the source is tried again.
	DefaultRetryAfter = 30 * time.Second
)

// ErrNoProjects is returned when the first fetch fails and nothing is cached.
var ErrNoProjects = errors.New("project registry unavailable")

// Source lists projects.
type Source interface {
	Projects(ctx context.Context) ([]model.ProjectCandidate, error)
}

// Static serves a fixed project list.
type Static struct {
	projects []model.ProjectCandidate
}

// NewStatic copies projects into a Static source.
func NewStatic(projects []model.ProjectCandidate) *Static {
	return &Static{projects: clone(projects)}
}

// Projects returns a copy of the configured list.
func (s *Static) Projects(context.Context) ([]model.ProjectCandidate, error) {
	return clone(s.projects), nil
}

// Cached wraps a Source. It refreshes after the TTL and coalesces
// concurrent refreshes. When a refresh fails it keeps serving the last good
// list and waits the retry-after period before asking the source again.
type Cached struct {
	src        Source
	ttl        time.Duration
	retryAfter time.Duration
	now        func() time.Time
	group      singleflight.Group
	logger     logger.Logger

	mu       sync.RWMutex
	projects []model.ProjectCandidate
	fetched  time.Time
	retryAt  time.Time
	fresh    bool
}

// NewCached creates a cache in front of src.
func NewCached(src Source, opts ...Option) *Cached {
	c := &Cached{
		src:    src,
		ttl:        DefaultTTL,
		retryAfter: DefaultRetryAfter,
		now:        time.Now,
		logger:     logger.Get().Named("registry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Projects returns the cached list, refreshing it when expired or
// invalidated.
func (c *Cached) Projects(ctx context.Context) ([]model.ProjectCandidate, error) {
	c.mu.RLock()
	if c.servable(c.now()) {
		out := clone(c.projects)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("projects", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	projects, _ := v.([]model.ProjectCandidate)
	return clone(projects), nil
}

// servable must be called with c.mu held.
func (c *Cached) servable(now time.Time) bool {
	if c.fresh && now.Sub(c.fetched) < c.ttl {
		return true
	}
	return c.projects != nil && now.Before(c.retryAt)
}

func (c *Cached) refresh(ctx context.Context) ([]model.ProjectCandidate, error) {
	projects, err := c.src.Projects(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if err != nil {
		if c.projects == nil {
			return nil, errors.Join(ErrNoProjects, err)
		}
		c.retryAt = now.Add(c.retryAfter)
		c.logger.Warn(ctx, "project refresh failed, serving stale list",
			logger.Int("projects", len(c.projects)),
			logger.Duration("age", now.Sub(c.fetched)),
			logger.Duration("retryAfter", c.retryAfter),
			logger.Error(err),
		)
		return c.projects, nil
	}
	c.projects = clone(projects)
	c.fetched = now
	c.retryAt = time.Time{}
	c.fresh = true
	return c.projects, nil
}

// Invalidate forces a refresh on the next call. The list is cached as a
// whole, so any key, known or not, invalidates all of it; key only names
// the project that prompted the refresh in the log.
func (c *Cached) Invalidate(key string) {
	c.logger.Debug(context.Background(), "project invalidated", logger.String("key", key))
	c.InvalidateAll()
}

// InvalidateAll forces a refresh on the next call, skipping any pending
// retry-after wait.
func (c *Cached) InvalidateAll() {
	c.mu.Lock()
	c.fresh = false
	c.retryAt = time.Time{}
	c.mu.Unlock()
}

func clone(in []model.ProjectCandidate) []model.ProjectCandidate {
	if in == nil {
		return nil
	}
	out := make([]model.ProjectCandidate, len(in))
	for i, p := range in {
		p.Keywords = append([]string(nil), p.Keywords...)
		out[i] = p
	}
	return out
}
