package breaker

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Group is a registry of breakers keyed by dependency name. Members share the
// group's options and default settings; Configure installs per-name overrides
// before first use. Safe for concurrent use.
type Group struct {
	defaults Settings
	opts     []Option

	mu        sync.RWMutex
	breakers  map[string]*Breaker
	overrides map[string]Settings
	listeners []Listener
}

// NewGroup creates a Group whose members are built from defaults unless a
// per-name override is configured.
func NewGroup(defaults Settings, opts ...Option) (*Group, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("breaker group defaults: %w", err)
	}
	return &Group{
		defaults:  defaults,
		opts:      opts,
		breakers:  make(map[string]*Breaker),
		overrides: make(map[string]Settings),
	}, nil
}

// Configure installs settings used when the breaker for name is first
// created. A breaker that already exists keeps its settings for its lifetime;
// configuring it again is an error.
func (g *Group) Configure(name string, cfg Settings) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("breaker %q: %w", name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.breakers[name]; ok {
		return fmt.Errorf("breaker %q already exists", name)
	}
	g.overrides[name] = cfg
	return nil
}

// Get returns the breaker for name, creating it on first use.
func (g *Group) Get(name string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[name]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check: another goroutine may have created it between the locks.
	if b, ok := g.breakers[name]; ok {
		return b
	}

	cfg, ok := g.overrides[name]
	if !ok {
		cfg = g.defaults
	}
	b = newBreaker(name, cfg, g.opts)
	for _, l := range g.listeners {
		b.Subscribe(l)
	}
	g.breakers[name] = b
	return b
}

// Do executes op through the breaker for name.
func (g *Group) Do(ctx context.Context, name string, op Func) error {
	return g.Get(name).Do(ctx, op)
}

// Remove drops the breaker for name from the group. A later Get creates a
// fresh instance. Callers already holding the old breaker keep using it.
func (g *Group) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.breakers, name)
	delete(g.overrides, name)
}

// Reset forces the named breaker back to closed. It reports false when no
// such breaker exists.
func (g *Group) Reset(name string) bool {
	g.mu.RLock()
	b, ok := g.breakers[name]
	g.mu.RUnlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}

// Subscribe registers a listener on every current and future member.
func (g *Group) Subscribe(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.listeners = append(g.listeners, l)
	for _, b := range g.breakers {
		b.Subscribe(l)
	}
}

// Names returns the member names in sorted order.
func (g *Group) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots returns a point-in-time view of every member, sorted by name.
func (g *Group) Snapshots() []Snapshot {
	g.mu.RLock()
	members := make([]*Breaker, 0, len(g.breakers))
	for _, b := range g.breakers {
		members = append(members, b)
	}
	g.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(members))
	for _, b := range members {
		snaps = append(snaps, b.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Name < snaps[j].Name
	})
	return snaps
}
