// Package cache provides named in-process cache regions with bounded size and TTL.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Moadams/ProjectTracker/internal/obs"
)

// Region names a cache partition. The set is closed.
type Region string

const (
	Projects             Region = "projects"
	AllProjects          Region = "allProjects"
	OverdueProjects      Region = "overdueProjects"
	ProjectsWithoutTasks Region = "projectsWithoutTasks"
	Developers           Region = "developers"
	AllDevelopers        Region = "allDevelopers"
	TopDevelopers        Region = "topDevelopers"
	Tasks                Region = "tasks"
	AllTasks             Region = "allTasks"
	ProjectTasks         Region = "projectTasks"
	DeveloperTasks       Region = "developerTasks"
	OverdueTasks         Region = "overdueTasks"
	TaskCounts           Region = "taskCounts"
)

// AllRegions lists every known region.
var AllRegions = []Region{
	Projects, AllProjects, OverdueProjects, ProjectsWithoutTasks,
	Developers, AllDevelopers, TopDevelopers,
	Tasks, AllTasks, ProjectTasks, DeveloperTasks, OverdueTasks, TaskCounts,
}

const (
	DefaultMaxEntries = 1000
	DefaultTTL        = 10 * time.Minute
)

// Policy is the eviction policy of one region.
type Policy struct {
	MaxEntries int
	TTL        time.Duration
}

type region struct {
	name Region
	lru  *expirable.LRU[string, any]
	// gen changes on every invalidation; loads started under an older
	// generation are not written back.
	gen atomic.Uint64
}

// Regions holds one LRU per region. A nil *Regions behaves as an always-miss cache.
type Regions struct {
	regions map[Region]*region
}

// Option configures Regions.
type Option func(defaults *Policy, overrides map[Region]Policy)

// WithDefaults sets the policy applied to regions without an override.
func WithDefaults(maxEntries int, ttl time.Duration) Option {
	return func(d *Policy, _ map[Region]Policy) {
		if maxEntries > 0 {
			d.MaxEntries = maxEntries
		}
		if ttl > 0 {
			d.TTL = ttl
		}
	}
}

// WithPolicy overrides the policy of a single region.
func WithPolicy(name Region, p Policy) Option {
	return func(_ *Policy, o map[Region]Policy) {
		o[name] = p
	}
}

// New builds every region.
func New(opts ...Option) *Regions {
	defaults := Policy{MaxEntries: DefaultMaxEntries, TTL: DefaultTTL}
	overrides := make(map[Region]Policy)
	for _, opt := range opts {
		opt(&defaults, overrides)
	}

	r := &Regions{regions: make(map[Region]*region, len(AllRegions))}
	for _, name := range AllRegions {
		p := defaults
		if o, ok := overrides[name]; ok {
			if o.MaxEntries > 0 {
				p.MaxEntries = o.MaxEntries
			}
			if o.TTL > 0 {
				p.TTL = o.TTL
			}
		}
		r.regions[name] = &region{name: name, lru: expirable.NewLRU[string, any](p.MaxEntries, nil, p.TTL)}
	}
	return r
}

func (r *Regions) get(name Region) *region {
	reg, ok := r.regions[name]
	if !ok {
		panic(fmt.Sprintf("cache: unknown region %q", name))
	}
	return reg
}

// Put stores v under key.
func (r *Regions) Put(name Region, key string, v any) {
	if r == nil {
		return
	}
	r.get(name).lru.Add(key, v)
}

// Evict drops a single key.
func (r *Regions) Evict(name Region, key string) {
	if r == nil {
		return
	}
	reg := r.get(name)
	reg.gen.Add(1)
	if reg.lru.Remove(key) {
		obs.ObserveCache(string(name), "evict")
	}
}

// EvictAll empties a region.
func (r *Regions) EvictAll(name Region) {
	if r == nil {
		return
	}
	reg := r.get(name)
	reg.gen.Add(1)
	reg.lru.Purge()
	obs.ObserveCache(string(name), "purge")
}

// Len reports the live entry count of a region.
func (r *Regions) Len(name Region) int {
	if r == nil {
		return 0
	}
	return r.get(name).lru.Len()
}

// Invalidation names what a mutation makes stale: one key, or the whole region.
type Invalidation struct {
	Region Region
	Key    string
	All    bool
}

// Key invalidates a single entry.
func Key(name Region, key string) Invalidation { return Invalidation{Region: name, Key: key} }

// All invalidates a whole region.
func All(name Region) Invalidation { return Invalidation{Region: name, All: true} }

// Invalidate applies every invalidation in order.
func (r *Regions) Invalidate(invs ...Invalidation) {
	for _, inv := range invs {
		if inv.All {
			r.EvictAll(inv.Region)
			continue
		}
		r.Evict(inv.Region, inv.Key)
	}
}

// Get returns the cached value for key when present and of type T.
func Get[T any](r *Regions, name Region, key string) (T, bool) {
	var zero T
	if r == nil {
		return zero, false
	}
	v, ok := r.get(name).lru.Get(key)
	if !ok {
		obs.ObserveCache(string(name), "miss")
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		obs.ObserveCache(string(name), "miss")
		return zero, false
	}
	obs.ObserveCache(string(name), "hit")
	return t, true
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached. A result whose load overlapped an invalidation of
// the region is returned but not stored.
func GetOrLoad[T any](ctx context.Context, r *Regions, name Region, key string, load func(context.Context) (T, error)) (T, error) {
	if r == nil {
		return load(ctx)
	}
	if v, ok := Get[T](r, name, key); ok {
		return v, nil
	}
	reg := r.get(name)
	gen := reg.gen.Load()
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if reg.gen.Load() == gen {
		reg.lru.Add(key, v)
	}
	return v, nil
}
