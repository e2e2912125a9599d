package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/v-yash/jarvis/internal/domain/model"
	"github.com/v-yash/jarvis/internal/domain/port/outbound"
	"github.com/v-yash/jarvis/pkg/apierror"
	"github.com/v-yash/jarvis/pkg/metrics"
)

// NameLister is the part of the cluster the search cache reads from.
type NameLister interface {
	ListPods(ctx context.Context, namespace string, opts outbound.ListOptions) ([]model.PodSummary, error)
	ListDeploymentNames(ctx context.Context, namespace string, opts outbound.ListOptions) ([]string, error)
}

// NameSearcher answers autocomplete and "did you mean" lookups.
type NameSearcher interface {
	Search(ctx context.Context, kind model.ResourceType, pattern, namespace string) []string
	Names(ctx context.Context, kind model.ResourceType, namespace string) []string
}

type SearchCacheConfig struct {
	Namespaces      []string
	RefreshInterval time.Duration
	PodLimit        int
	DeploymentLimit int
}

type cacheKey struct {
	namespace string
	kind      model.ResourceType
}

// cacheEntry is immutable once published; refreshes replace it wholesale.
type cacheEntry struct {
	names     []string
	lower     []string
	index     map[string]int
	refreshed time.Time
}

func newCacheEntry(names []string, now time.Time) *cacheEntry {
	e := &cacheEntry{
		names:     names,
		lower:     make([]string, len(names)),
		index:     make(map[string]int, len(names)),
		refreshed: now,
	}
	for i, n := range names {
		l := strings.ToLower(n)
		e.lower[i] = l
		if _, dup := e.index[l]; !dup {
			e.index[l] = i
		}
	}
	return e
}

// SearchCache keeps pod and deployment names for the tracked namespaces and
// refreshes them on a fixed interval. Searches outside the tracked namespaces
// go to the cluster directly.
type SearchCache struct {
	lister   NameLister
	logger   *slog.Logger
	interval time.Duration
	tracked  map[string]bool
	order    []string
	limits   map[model.ResourceType]int
	now      func() time.Time

	mu          sync.Mutex
	entries     map[cacheKey]*cacheEntry
	lastRefresh time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

var _ NameSearcher = (*SearchCache)(nil)

func NewSearchCache(lister NameLister, cfg SearchCacheConfig, logger *slog.Logger) *SearchCache {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Second
	}
	if cfg.PodLimit <= 0 {
		cfg.PodLimit = 20
	}
	if cfg.DeploymentLimit <= 0 {
		cfg.DeploymentLimit = 10
	}
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = []string{"default"}
	}
	tracked := make(map[string]bool, len(cfg.Namespaces))
	order := make([]string, 0, len(cfg.Namespaces))
	for _, ns := range cfg.Namespaces {
		if !tracked[ns] {
			tracked[ns] = true
			order = append(order, ns)
		}
	}
	return &SearchCache{
		lister:   lister,
		logger:   logger,
		interval: cfg.RefreshInterval,
		tracked:  tracked,
		order:    order,
		limits: map[model.ResourceType]int{
			model.ResourcePod:        cfg.PodLimit,
			model.ResourceDeployment: cfg.DeploymentLimit,
		},
		now:     time.Now,
		entries: make(map[cacheKey]*cacheEntry),
	}
}

// Start performs an initial refresh and launches the refresh loop. Failures
// during the initial refresh are logged; searches fall back to whatever is cached.
func (c *SearchCache) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("search cache already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.Refresh(loopCtx)
	go c.loop(loopCtx)
	return nil
}

// Stop ends the refresh loop and waits for it to exit.
func (c *SearchCache) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *SearchCache) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// Refresh reloads every tracked namespace. An entry whose reload fails keeps
// its previous contents.
func (c *SearchCache) Refresh(ctx context.Context) {
	ok := true
	for _, ns := range c.order {
		for _, kind := range []model.ResourceType{model.ResourcePod, model.ResourceDeployment} {
			names, err := c.list(ctx, kind, ns)
			if err != nil {
				ok = false
				metrics.CacheRefreshTotal.WithLabelValues(ns, string(kind), "error").Inc()
				c.logger.Warn("search cache refresh failed, keeping previous entry",
					"namespace", ns, "kind", kind, "error", apierror.CacheRefresh(ns, err))
				continue
			}
			entry := newCacheEntry(names, c.now())
			c.mu.Lock()
			c.entries[cacheKey{namespace: ns, kind: kind}] = entry
			c.mu.Unlock()
			metrics.CacheRefreshTotal.WithLabelValues(ns, string(kind), "ok").Inc()
			metrics.CacheNames.WithLabelValues(ns, string(kind)).Set(float64(len(names)))
		}
	}
	if ok {
		c.mu.Lock()
		c.lastRefresh = c.now()
		c.mu.Unlock()
	}
}

// LastRefresh is the time of the last refresh in which every list succeeded.
func (c *SearchCache) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Healthy reports an error when no complete refresh happened within maxAge.
func (c *SearchCache) Healthy(maxAge time.Duration) error {
	last := c.LastRefresh()
	if last.IsZero() {
		return errors.New("search cache has not completed a refresh")
	}
	if age := c.now().Sub(last); age > maxAge {
		return fmt.Errorf("search cache is stale: last refresh %s ago", age.Round(time.Second))
	}
	return nil
}

// Search matches pattern against resource names in namespace. The first tier
// with any match wins: exact (case-insensitive), then prefix, then substring.
func (c *SearchCache) Search(ctx context.Context, kind model.ResourceType, pattern, namespace string) []string {
	limit, ok := c.limits[kind]
	if !ok {
		return nil
	}
	entry := c.lookup(ctx, kind, namespace)
	if entry == nil {
		return []string{}
	}
	result, tier := match(entry, strings.ToLower(strings.TrimSpace(pattern)), limit)
	metrics.SearchTotal.WithLabelValues(tier).Inc()
	return result
}

// Names returns every known name of kind in namespace.
func (c *SearchCache) Names(ctx context.Context, kind model.ResourceType, namespace string) []string {
	if _, ok := c.limits[kind]; !ok {
		return nil
	}
	entry := c.lookup(ctx, kind, namespace)
	if entry == nil {
		return []string{}
	}
	return append([]string(nil), entry.names...)
}

// lookup returns the cached entry for tracked namespaces and a fresh one from
// the cluster otherwise. It returns nil when nothing can be served.
func (c *SearchCache) lookup(ctx context.Context, kind model.ResourceType, namespace string) *cacheEntry {
	if c.tracked[namespace] {
		c.mu.Lock()
		entry := c.entries[cacheKey{namespace: namespace, kind: kind}]
		c.mu.Unlock()
		return entry
	}
	names, err := c.list(ctx, kind, namespace)
	if err != nil {
		c.logger.Warn("live name lookup failed", "namespace", namespace, "kind", kind, "error", err)
		metrics.SearchTotal.WithLabelValues("live_error").Inc()
		return nil
	}
	return newCacheEntry(names, c.now())
}

func (c *SearchCache) list(ctx context.Context, kind model.ResourceType, namespace string) ([]string, error) {
	switch kind {
	case model.ResourcePod:
		pods, err := c.lister.ListPods(ctx, namespace, outbound.ListOptions{})
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(pods))
		for _, p := range pods {
			names = append(names, p.Name)
		}
		return names, nil
	case model.ResourceDeployment:
		return c.lister.ListDeploymentNames(ctx, namespace, outbound.ListOptions{})
	default:
		return nil, fmt.Errorf("unsupported kind %q", kind)
	}
}

func match(e *cacheEntry, pattern string, limit int) ([]string, string) {
	if i, ok := e.index[pattern]; ok {
		return []string{e.names[i]}, "exact"
	}
	if out := collect(e, limit, func(l string) bool { return strings.HasPrefix(l, pattern) }); len(out) > 0 {
		return out, "prefix"
	}
	if out := collect(e, limit, func(l string) bool { return strings.Contains(l, pattern) }); len(out) > 0 {
		return out, "substring"
	}
	return []string{}, "none"
}

func collect(e *cacheEntry, limit int, keep func(string) bool) []string {
	var out []string
	for i, l := range e.lower {
		if keep(l) {
			out = append(out, e.names[i])
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
