package usagecache

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/codexswitch/internal/core"
)

const (
	DefaultTTL        = 15 * time.Minute
	DefaultFetchDelay = 2000 * time.Millisecond
)

// Fetcher produces a fresh Summary for one profile. Credential and request
// problems should be reported inside the Summary; an error means no result
// could be produced and nothing is cached.
type Fetcher interface {
	FetchSummary(ctx context.Context, profile core.Profile) (core.Summary, error)
}

type RefreshOptions struct {
	Force        bool
	PruneMissing bool
}

// SummaryView is a cached entry plus its age at read time.
type SummaryView struct {
	core.CachedEntry
	Age   time.Duration
	Stale bool
}

type Options struct {
	TTL        time.Duration
	FetchDelay time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

type batch struct {
	order        []string
	profiles     map[string]core.Profile
	force        bool
	pruneMissing bool
	done         chan struct{}
}

func newBatch() *batch {
	return &batch{
		profiles: make(map[string]core.Profile),
		done:     make(chan struct{}),
	}
}

// merge adds profiles by name; a later profile with the same name replaces
// the earlier one but keeps its position.
func (b *batch) merge(profiles []core.Profile, opts RefreshOptions) {
	for _, p := range profiles {
		if _, ok := b.profiles[p.Name]; !ok {
			b.order = append(b.order, p.Name)
		}
		b.profiles[p.Name] = p
	}
	b.force = b.force || opts.Force
	b.pruneMissing = b.pruneMissing || opts.PruneMissing
}

// Coordinator owns the usage cache. At most one refresh batch runs at a time
// and at most one more waits behind it; requests arriving while a batch runs
// are folded into that waiting batch.
type Coordinator struct {
	store   *Store
	fetcher Fetcher
	ttl     time.Duration
	delay   time.Duration
	now     func() time.Time
	sleep   func(time.Duration)

	mu      sync.Mutex
	cache   *CacheFile
	running *batch
	pending *batch

	listenersMu  sync.Mutex
	listeners    map[uint64]func()
	nextListener uint64
}

func NewCoordinator(store *Store, fetcher Fetcher, opts Options) *Coordinator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.FetchDelay < 0 {
		opts.FetchDelay = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Coordinator{
		store:     store,
		fetcher:   fetcher,
		ttl:       opts.TTL,
		delay:     opts.FetchDelay,
		now:       opts.Now,
		sleep:     opts.Sleep,
		cache:     store.Load(),
		listeners: make(map[uint64]func()),
	}
}

func (c *Coordinator) TTL() time.Duration { return c.ttl }

func (c *Coordinator) GetSummary(name string) (SummaryView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(name, c.now())
}

// GetAllSummaries returns the cached view of every listed profile that has
// one. Profiles without a cached entry are absent from the map.
func (c *Coordinator) GetAllSummaries(profiles []core.Profile) map[string]SummaryView {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make(map[string]SummaryView, len(profiles))
	for _, p := range profiles {
		if view, ok := c.viewLocked(p.Name, now); ok {
			out[p.Name] = view
		}
	}
	return out
}

func (c *Coordinator) viewLocked(name string, now time.Time) (SummaryView, bool) {
	entry, ok := c.cache.Entries[name]
	if !ok {
		return SummaryView{}, false
	}
	age := now.Sub(entry.FetchedAt)
	if age < 0 {
		age = 0
	}
	return SummaryView{CachedEntry: entry, Age: age, Stale: age >= c.ttl}, true
}

// RefreshAccounts fetches every listed profile whose entry is missing or
// stale (all of them when opts.Force is set). It returns once those profiles
// have been attempted, or with ctx.Err() if the caller gives up waiting; the
// refresh itself keeps running either way.
func (c *Coordinator) RefreshAccounts(ctx context.Context, profiles []core.Profile, opts RefreshOptions) error {
	c.mu.Lock()
	pruned := false
	if opts.PruneMissing {
		pruned = c.pruneLocked(profiles)
	}

	var start *batch
	var done <-chan struct{}
	if c.running == nil {
		start = newBatch()
		start.merge(profiles, opts)
		c.running = start
		done = start.done
	} else {
		if c.pending == nil {
			c.pending = newBatch()
		}
		c.pending.merge(profiles, opts)
		done = c.pending.done
	}
	c.mu.Unlock()

	if pruned {
		c.notify()
	}
	if start != nil {
		go c.run(start)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) pruneLocked(keep []core.Profile) bool {
	names := lo.SliceToMap(keep, func(p core.Profile) (string, struct{}) {
		return p.Name, struct{}{}
	})
	stale := lo.Filter(lo.Keys(c.cache.Entries), func(name string, _ int) bool {
		_, ok := names[name]
		return !ok
	})
	if len(stale) == 0 {
		return false
	}
	for _, name := range stale {
		delete(c.cache.Entries, name)
	}
	c.store.Save(c.cache)
	log.Printf("usagecache: pruned %d cached profile(s)", len(stale))
	return true
}

func (c *Coordinator) run(b *batch) {
	for b != nil {
		c.runBatch(b)

		c.mu.Lock()
		close(b.done)
		b = c.pending
		c.pending = nil
		c.running = b
		c.mu.Unlock()
	}
}

func (c *Coordinator) runBatch(b *batch) {
	log.Printf("usagecache: refresh batch of %d profile(s) (force=%t, prune=%t)", len(b.order), b.force, b.pruneMissing)
	fetched := 0
	for _, name := range b.order {
		if !b.force && c.isFresh(name) {
			continue
		}
		if fetched > 0 && c.delay > 0 {
			c.sleep(c.delay)
		}
		fetched++

		summary, err := c.fetchOne(b.profiles[name])
		if err != nil {
			log.Printf("usagecache: refreshing %q: %v", name, err)
			continue
		}

		c.mu.Lock()
		c.cache.Entries[name] = core.CachedEntry{
			ProfileName: name,
			Summary:     summary,
			FetchedAt:   c.now(),
		}
		c.store.Save(c.cache)
		c.mu.Unlock()
		c.notify()
	}
}

func (c *Coordinator) fetchOne(profile core.Profile) (summary core.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return c.fetcher.FetchSummary(context.Background(), profile)
}

func (c *Coordinator) isFresh(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache.Entries[name]
	return ok && c.now().Sub(entry.FetchedAt) < c.ttl
}

// InvalidateCache drops every cached entry, in memory and on disk.
func (c *Coordinator) InvalidateCache() {
	c.mu.Lock()
	c.cache.Entries = make(map[string]core.CachedEntry)
	c.store.Save(c.cache)
	c.mu.Unlock()
	c.notify()
}

func (c *Coordinator) RemoveAccount(name string) {
	c.mu.Lock()
	_, ok := c.cache.Entries[name]
	if ok {
		delete(c.cache.Entries, name)
		c.store.Save(c.cache)
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
}

// RenameAccount moves a cached entry to a new key without refetching.
func (c *Coordinator) RenameAccount(oldName, newName string) {
	if oldName == newName {
		return
	}
	c.mu.Lock()
	entry, ok := c.cache.Entries[oldName]
	if ok {
		delete(c.cache.Entries, oldName)
		entry.ProfileName = newName
		c.cache.Entries[newName] = entry
		c.store.Save(c.cache)
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
}

// OnUpdate registers fn to run after every cache mutation. The returned
// function removes it again.
func (c *Coordinator) OnUpdate(fn func()) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Coordinator) notify() {
	c.listenersMu.Lock()
	ids := lo.Keys(c.listeners)
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		callListener(fn)
	}
}

func callListener(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("usagecache: update listener panicked: %v", r)
		}
	}()
	fn()
}
