package cache

import (
	"context"
	"errors"
)

// Updater derives the new value of a cached entry. It must not modify current in place;
// the returned value replaces it. Returning false leaves the entry untouched.
type Updater func(key Key, current any) (any, bool)

// Mutation describes one write against the remote store and its effect on cached entries
// of a single family.
type Mutation struct {
	Family Family
	// Match narrows the affected keys inside Family; nil means the whole family.
	Match  KeyPredicate
	Update Updater
	Write  func(ctx context.Context) error
}

type MutateOptions struct {
	// Optimistic applies Update before Write and reverts it if Write fails.
	Optimistic bool
	// Revalidate re-fetches the affected keys after a successful Write.
	Revalidate bool
}

// Mutate runs m after every earlier mutation of the same family has finished.
// On a failed write every affected entry is restored to its state before the
// mutation and the write error is returned unchanged.
func (s *Store) Mutate(ctx context.Context, m Mutation, opts MutateOptions) error {
	if m.Write == nil {
		return errors.New("cache: mutation without a write")
	}

	release, err := s.acquire(ctx, m.Family)
	if err != nil {
		return err
	}
	defer release()

	match := both(FamilyMatch(m.Family), m.Match)
	op := s.NewOptimistic(match, m.Update)
	op.Snapshot()
	if opts.Optimistic && m.Update != nil {
		op.Apply()
	}

	if err := m.Write(ctx); err != nil {
		op.CommitOrRevert(err)
		return err
	}
	op.CommitOrRevert(nil)

	switch {
	case opts.Revalidate:
		s.revalidate(ctx, op.Keys())
	case !opts.Optimistic && m.Update != nil:
		op.Apply()
	}
	return nil
}

// acquire waits for the family's earlier mutations, in call order.
func (s *Store) acquire(ctx context.Context, f Family) (func(), error) {
	s.queuesMu.Lock()
	q, ok := s.queues[f]
	if !ok {
		q = &familyQueue{}
		s.queues[f] = q
	}
	prev := q.tail
	mine := make(chan struct{})
	q.tail = mine
	q.waiting++
	s.queuesMu.Unlock()

	done := func() {
		close(mine)
		s.queuesMu.Lock()
		q.waiting--
		if q.waiting == 0 {
			delete(s.queues, f)
		}
		s.queuesMu.Unlock()
	}

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			// keep the chain intact for whoever queued behind us
			go func() {
				<-prev
				done()
			}()
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	s.mutating[f]++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.mutating[f]--
		if s.mutating[f] == 0 {
			delete(s.mutating, f)
		}
		s.mu.Unlock()
		done()
	}, nil
}

type familyQueue struct {
	tail    chan struct{}
	waiting int
}

// Optimistic is the three phase command behind Mutate: Snapshot, Apply, CommitOrRevert.
// It can be driven by hand when the write is not a single call.
type Optimistic struct {
	store    *Store
	match    KeyPredicate
	update   Updater
	snapshot map[Key]entry
	applied  bool
}

func (s *Store) NewOptimistic(match KeyPredicate, update Updater) *Optimistic {
	return &Optimistic{store: s, match: match, update: update}
}

// Snapshot records every matching entry as it is now.
func (o *Optimistic) Snapshot() {
	s := o.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o.snapshot = make(map[Key]entry)
	for k, e := range s.entries {
		if o.match(k) {
			o.snapshot[k] = *e
		}
	}
}

// Keys are the entries covered by the snapshot.
func (o *Optimistic) Keys() []Key {
	keys := make([]Key, 0, len(o.snapshot))
	for k := range o.snapshot {
		keys = append(keys, k)
	}
	return keys
}

// Apply runs the updater over the snapshotted entries and notifies subscribers.
func (o *Optimistic) Apply() {
	if o.snapshot == nil {
		o.Snapshot()
	}
	s := o.store
	var events []Event

	s.mu.Lock()
	for k := range o.snapshot {
		e, ok := s.entries[k]
		if !ok {
			continue
		}
		next, changed := o.update(k, e.value)
		if !changed {
			continue
		}
		s.entries[k] = &entry{value: next, fetchedAt: e.fetchedAt, fetcher: e.fetcher}
		s.generation[k.Family()]++
		events = append(events, Event{Key: k, Value: next, Reason: ReasonOptimistic})
	}
	o.applied = true
	s.mu.Unlock()

	for _, ev := range events {
		s.observe(optimistic, ev.Key)
		s.notify(ev)
	}
}

// CommitOrRevert keeps the applied values when err is nil, otherwise restores the
// snapshot exactly, removing keys that did not exist when it was taken.
func (o *Optimistic) CommitOrRevert(err error) {
	if err == nil || !o.applied {
		return
	}
	s := o.store
	var events []Event

	s.mu.Lock()
	for k := range s.entries {
		if _, ok := o.snapshot[k]; !ok && o.match(k) {
			delete(s.entries, k)
			events = append(events, Event{Key: k, Reason: ReasonRolledBack})
		}
	}
	for k, snap := range o.snapshot {
		restored := snap
		s.entries[k] = &restored
		s.generation[k.Family()]++
		events = append(events, Event{Key: k, Value: restored.value, Reason: ReasonRolledBack})
	}
	o.applied = false
	s.mu.Unlock()

	for _, ev := range events {
		s.observe(rollbacks, ev.Key)
		s.notify(ev)
	}
}
