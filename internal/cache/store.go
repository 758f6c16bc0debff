// Package cache is a keyed read cache with request coalescing and optimistic,
// rollback-safe mutations. One Store is shared by everything in the process.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"alcyxob/fittrack/internal/metrics"
)

const DefaultDedupeInterval = 2 * time.Second

// Fetcher loads the value of one key from the remote store.
type Fetcher func(ctx context.Context) (any, error)

type Reason string

const (
	ReasonFetched     Reason = "fetched"
	ReasonSet         Reason = "set"
	ReasonOptimistic  Reason = "optimistic"
	ReasonRolledBack  Reason = "rolledBack"
	ReasonRevalidated Reason = "revalidated"
	ReasonInvalidated Reason = "invalidated"
)

// Event is delivered to subscribers whenever a cached value changes.
// Value is nil for invalidations and for rollbacks that removed the key.
type Event struct {
	Key    Key
	Value  any
	Reason Reason
}

type entry struct {
	value     any
	fetchedAt time.Time
	fetcher   Fetcher
}

type Store struct {
	mu         sync.Mutex
	entries    map[Key]*entry
	mutating   map[Family]int
	generation map[Family]uint64

	group  singleflight.Group
	dedupe time.Duration
	now    func() time.Time

	queuesMu sync.Mutex
	queues   map[Family]*familyQueue

	subsMu  sync.Mutex
	subs    map[uint64]func(Event)
	nextSub uint64

	metrics *metrics.Manager
}

type Option func(*Store)

func WithDedupeInterval(d time.Duration) Option {
	return func(s *Store) { s.dedupe = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(s *Store) { s.metrics = m }
}

func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[Key]*entry),
		mutating:   make(map[Family]int),
		generation: make(map[Family]uint64),
		queues:     make(map[Family]*familyQueue),
		subs:       make(map[uint64]func(Event)),
		dedupe:     DefaultDedupeInterval,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value of key, calling fetch when there is none or it is older
// than the dedupe interval. Concurrent misses on one key share a single fetch.
// While a mutation of the key's family is in flight the cached value is served as is.
func (s *Store) Get(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && (s.mutating[key.Family()] > 0 || s.now().Sub(e.fetchedAt) < s.dedupe) {
		s.mu.Unlock()
		s.observe(hits, key)
		return e.value, nil
	}
	s.mu.Unlock()
	s.observe(misses, key)

	ch := s.group.DoChan(key.String(), func() (any, error) {
		s.mu.Lock()
		gen := s.generation[key.Family()]
		s.mu.Unlock()

		s.observe(fetches, key)
		// shared by every waiter, so one caller giving up must not cancel the rest
		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		stale := s.mutating[key.Family()] > 0 || s.generation[key.Family()] != gen
		if !stale {
			s.entries[key] = &entry{value: v, fetchedAt: s.now(), fetcher: fetch}
		}
		s.mu.Unlock()
		if !stale {
			s.notify(Event{Key: key, Value: v, Reason: ReasonFetched})
		}
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetch is Get with a typed value.
func Fetch[T any](ctx context.Context, s *Store, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := s.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: value of %s is %T, not %T", key, v, zero)
	}
	return t, nil
}

// Peek returns the cached value without fetching.
func (s *Store) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set stores a value as freshly fetched, keeping the key's fetcher if it has one.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	e := &entry{value: value, fetchedAt: s.now()}
	if old, ok := s.entries[key]; ok {
		e.fetcher = old.fetcher
	}
	s.entries[key] = e
	s.generation[key.Family()]++
	s.mu.Unlock()
	s.notify(Event{Key: key, Value: value, Reason: ReasonSet})
}

// Keys lists the cached keys matching pred.
func (s *Store) Keys(pred KeyPredicate) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []Key
	for k := range s.entries {
		if pred(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Invalidate drops every entry matching pred so the next read fetches again.
func (s *Store) Invalidate(pred KeyPredicate) {
	s.mu.Lock()
	var dropped []Key
	for k := range s.entries {
		if pred(k) {
			delete(s.entries, k)
			s.generation[k.Family()]++
			dropped = append(dropped, k)
		}
	}
	s.mu.Unlock()
	for _, k := range dropped {
		s.notify(Event{Key: k, Reason: ReasonInvalidated})
	}
}

// Subscribe registers fn for every change event. Events are delivered synchronously
// by the goroutine that made the change. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.subsMu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Store) revalidate(ctx context.Context, keys []Key) {
	for _, key := range keys {
		s.mu.Lock()
		e, ok := s.entries[key]
		s.mu.Unlock()
		if !ok || e.fetcher == nil {
			s.Invalidate(ExactMatch(key))
			continue
		}

		s.observe(revalidations, key)
		v, err := e.fetcher(ctx)
		if err != nil {
			log.Warnf("cache: revalidate %s: %s", key, err)
			s.Invalidate(ExactMatch(key))
			continue
		}

		s.mu.Lock()
		s.entries[key] = &entry{value: v, fetchedAt: s.now(), fetcher: e.fetcher}
		s.generation[key.Family()]++
		s.mu.Unlock()
		s.notify(Event{Key: key, Value: v, Reason: ReasonRevalidated})
	}
}

type counterPick func(*metrics.Manager) *prometheus.CounterVec

var (
	hits          counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheHits }
	misses        counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheMisses }
	fetches       counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheFetches }
	optimistic    counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheOptimistic }
	rollbacks     counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheRollbacks }
	revalidations counterPick = func(m *metrics.Manager) *prometheus.CounterVec { return m.CounterCacheRevalidated }
)

func (s *Store) observe(pick counterPick, key Key) {
	if s.metrics == nil {
		return
	}
	pick(s.metrics).WithLabelValues(key.Kind).Inc()
}
