// Package memstore is an in-process store driver for development and tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

func init() {
	store.Register("memory", func(_ context.Context, opts store.Options) (*store.Repositories, error) {
		return New(opts.Clock, opts.Audit.MaxEntries, opts.Audit.Retention).Repositories(), nil
	})
}

type document struct {
	tournament tournament.Tournament
	teams      []tournament.Team
	players    []tournament.Player
	state      *ledger.State
}

// Store keeps every document in memory. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]*document
	indexes   map[store.Index]map[string]struct{}
	events    map[string][]event.Event
	maxEvents int
	retention time.Duration
	clock     clock.Clock
}

// New returns an empty Store. maxEvents and retention cap each
// tournament's audit trail; zero disables the cap.
func New(clk clock.Clock, maxEvents int, retention time.Duration) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		docs:      make(map[string]*document),
		indexes:   make(map[store.Index]map[string]struct{}),
		events:    make(map[string][]event.Event),
		maxEvents: maxEvents,
		retention: retention,
		clock:     clk,
	}
}

// Repositories exposes s through the store interfaces.
func (s *Store) Repositories() *store.Repositories {
	return &store.Repositories{
		Tournaments: (*tournamentRepo)(s),
		Rosters:     (*rosterRepo)(s),
		States:      (*stateRepo)(s),
		Indexes:     (*indexRepo)(s),
		Events:      (*eventStore)(s),
		Ping:        func(context.Context) error { return nil },
	}
}

type tournamentRepo Store

func (r *tournamentRepo) Create(_ context.Context, t *tournament.Tournament, teams []tournament.Team, players []tournament.Player, state *ledger.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[t.Slug]; ok {
		return store.ErrExists
	}
	st := state.Clone()
	st.Version = 1
	state.Version = 1
	r.docs[t.Slug] = &document{
		tournament: *t,
		teams:      slices.Clone(teams),
		players:    slices.Clone(players),
		state:      st,
	}
	return nil
}

func (r *tournamentRepo) Get(_ context.Context, slug string) (*tournament.Tournament, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := d.tournament
	return &t, nil
}

func (r *tournamentRepo) Update(_ context.Context, t *tournament.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[t.Slug]
	if !ok {
		return store.ErrNotFound
	}
	d.tournament = *t
	return nil
}

func (r *tournamentRepo) Delete(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[slug]; !ok {
		return store.ErrNotFound
	}
	delete(r.docs, slug)
	delete(r.events, slug)
	for _, set := range r.indexes {
		delete(set, slug)
	}
	return nil
}

type rosterRepo Store

func (r *rosterRepo) Teams(_ context.Context, slug string) ([]tournament.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(d.teams), nil
}

func (r *rosterRepo) Players(_ context.Context, slug string) ([]tournament.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return slices.Clone(d.players), nil
}

type stateRepo Store

func (r *stateRepo) Load(_ context.Context, slug string) (*ledger.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.state.Clone(), nil
}

func (r *stateRepo) Save(_ context.Context, slug string, s *ledger.State, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[slug]
	if !ok {
		return store.ErrNotFound
	}
	if d.state.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	d.state = s.Clone()
	return nil
}

type indexRepo Store

func (r *indexRepo) Add(_ context.Context, index store.Index, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.indexes[index]
	if !ok {
		set = make(map[string]struct{})
		r.indexes[index] = set
	}
	set[slug] = struct{}{}
	return nil
}

func (r *indexRepo) Remove(_ context.Context, index store.Index, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes[index], slug)
	return nil
}

func (r *indexRepo) List(_ context.Context, index store.Index) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.indexes[index]))
	for slug := range r.indexes[index] {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out, nil
}

type eventStore Store

func (e *eventStore) Append(_ context.Context, events ...event.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	for _, ev := range events {
		// Deleted tournaments take their trail with them.
		if _, ok := e.docs[ev.AggregateID]; !ok {
			continue
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = now
		}
		list := append(e.events[ev.AggregateID], ev)
		if e.maxEvents > 0 && len(list) > e.maxEvents {
			list = slices.Clone(list[len(list)-e.maxEvents:])
		}
		e.events[ev.AggregateID] = list
	}
	return nil
}

func (e *eventStore) Load(_ context.Context, aggregateID string, limit int) ([]event.Event, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	list := e.events[aggregateID]
	cutoff := time.Time{}
	if e.retention > 0 {
		cutoff = e.clock.Now().Add(-e.retention)
	}
	out := make([]event.Event, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].CreatedAt.Before(cutoff) {
			break
		}
		out = append(out, list[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
