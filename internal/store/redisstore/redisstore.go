// Package redisstore implements the store interfaces on Redis. Each
// tournament is a handful of keys under tournament:{slug}; the auction
// document is a hash whose version field guards writes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/config"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

func init() {
	store.Register("redis", open)
}

func open(ctx context.Context, opts store.Options) (*store.Repositories, error) {
	rdb, err := Connect(ctx, opts.Redis)
	if err != nil {
		return nil, err
	}
	s := New(rdb, opts.Clock, opts.Audit.MaxEntries, opts.Audit.Retention)
	repos := s.Repositories()
	repos.Closer = rdb
	return repos, nil
}

// Connect creates a Redis client and verifies connectivity.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// createLua writes a tournament's documents only if its config key is free.
const createLua = `
if redis.call('EXISTS', KEYS[1]) == 1 then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SET', KEYS[3], ARGV[3])
redis.call('HSET', KEYS[4], 'version', 1, 'body', ARGV[4])
return 1
`

// saveStateLua replaces the state body when the stored version matches.
// It returns -1 when the document is missing and 0 on a version mismatch.
const saveStateLua = `
local v = redis.call('HGET', KEYS[1], 'version')
if not v then
    return -1
end
if tonumber(v) ~= tonumber(ARGV[1]) then
    return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[2], 'body', ARGV[3])
return 1
`

// Store holds the Redis client and scripts shared by the repositories.
type Store struct {
	rdb        *redis.Client
	create     *redis.Script
	saveState  *redis.Script
	clock      clock.Clock
	maxEntries int
	retention  time.Duration
}

// New returns a Store using rdb.
func New(rdb *redis.Client, clk clock.Clock, maxEntries int, retention time.Duration) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		rdb:        rdb,
		create:     redis.NewScript(createLua),
		saveState:  redis.NewScript(saveStateLua),
		clock:      clk,
		maxEntries: maxEntries,
		retention:  retention,
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
		Ping:        func(ctx context.Context) error { return s.rdb.Ping(ctx).Err() },
	}
}

func key(slug, kind string) string {
	return "tournament:" + slug + ":" + kind
}

func indexKey(index store.Index) string {
	return "tournaments:" + string(index)
}

func (s *Store) getJSON(ctx context.Context, k string, dst any) error {
	raw, err := s.rdb.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", k, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("redis: decode %s: %w", k, err)
	}
	return nil
}

type tournamentRepo Store

func (r *tournamentRepo) Create(ctx context.Context, t *tournament.Tournament, teams []tournament.Team, players []tournament.Player, state *ledger.State) error {
	if teams == nil {
		teams = []tournament.Team{}
	}
	if players == nil {
		players = []tournament.Player{}
	}
	state.Version = 1

	bodies := make([]any, 0, 4)
	for _, v := range []any{t, teams, players, state} {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: encode tournament %s: %w", t.Slug, err)
		}
		bodies = append(bodies, b)
	}

	keys := []string{key(t.Slug, "config"), key(t.Slug, "teams"), key(t.Slug, "players"), key(t.Slug, "state")}
	created, err := r.create.Run(ctx, r.rdb, keys, bodies...).Int()
	if err != nil {
		return fmt.Errorf("redis: create tournament %s: %w", t.Slug, err)
	}
	if created == 0 {
		return store.ErrExists
	}
	return nil
}

func (r *tournamentRepo) Get(ctx context.Context, slug string) (*tournament.Tournament, error) {
	var t tournament.Tournament
	if err := (*Store)(r).getJSON(ctx, key(slug, "config"), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tournamentRepo) Update(ctx context.Context, t *tournament.Tournament) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("redis: encode tournament %s: %w", t.Slug, err)
	}
	ok, err := r.rdb.SetXX(ctx, key(t.Slug, "config"), body, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("redis: update tournament %s: %w", t.Slug, err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

func (r *tournamentRepo) Delete(ctx context.Context, slug string) error {
	var removed *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		removed = p.Del(ctx, key(slug, "config"))
		p.Del(ctx, key(slug, "teams"), key(slug, "players"), key(slug, "state"), key(slug, "audit"))
		p.SRem(ctx, indexKey(store.IndexAll), slug)
		p.SRem(ctx, indexKey(store.IndexPublished), slug)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete tournament %s: %w", slug, err)
	}
	if removed.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rosterRepo Store

func (r *rosterRepo) Teams(ctx context.Context, slug string) ([]tournament.Team, error) {
	var teams []tournament.Team
	if err := (*Store)(r).getJSON(ctx, key(slug, "teams"), &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *rosterRepo) Players(ctx context.Context, slug string) ([]tournament.Player, error) {
	var players []tournament.Player
	if err := (*Store)(r).getJSON(ctx, key(slug, "players"), &players); err != nil {
		return nil, err
	}
	return players, nil
}

type stateRepo Store

func (r *stateRepo) Load(ctx context.Context, slug string) (*ledger.State, error) {
	fields, err := r.rdb.HMGet(ctx, key(slug, "state"), "version", "body").Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load state %s: %w", slug, err)
	}
	version, vok := fields[0].(string)
	body, bok := fields[1].(string)
	if !vok || !bok {
		return nil, store.ErrNotFound
	}

	var s ledger.State
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return nil, fmt.Errorf("redis: decode state %s: %w", slug, err)
	}
	s.Normalize()
	if _, err := fmt.Sscan(version, &s.Version); err != nil {
		return nil, fmt.Errorf("redis: parse state version %q: %w", version, err)
	}
	return &s, nil
}

func (r *stateRepo) Save(ctx context.Context, slug string, s *ledger.State, expectedVersion int64) error {
	next := *s
	next.Version = expectedVersion + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("redis: encode state %s: %w", slug, err)
	}
	res, err := r.saveState.Run(ctx, r.rdb, []string{key(slug, "state")}, expectedVersion, next.Version, body).Int()
	if err != nil {
		return fmt.Errorf("redis: save state %s: %w", slug, err)
	}
	switch res {
	case -1:
		return store.ErrNotFound
	case 0:
		return store.ErrVersionConflict
	}
	s.Version = next.Version
	return nil
}

type indexRepo Store

func (r *indexRepo) Add(ctx context.Context, index store.Index, slug string) error {
	if err := r.rdb.SAdd(ctx, indexKey(index), slug).Err(); err != nil {
		return fmt.Errorf("redis: add %s to %s: %w", slug, index, err)
	}
	return nil
}

func (r *indexRepo) Remove(ctx context.Context, index store.Index, slug string) error {
	if err := r.rdb.SRem(ctx, indexKey(index), slug).Err(); err != nil {
		return fmt.Errorf("redis: remove %s from %s: %w", slug, index, err)
	}
	return nil
}

func (r *indexRepo) List(ctx context.Context, index store.Index) ([]string, error) {
	slugs, err := r.rdb.SMembers(ctx, indexKey(index)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list %s: %w", index, err)
	}
	sort.Strings(slugs)
	return slugs, nil
}

type eventStore Store

// Append pushes events onto the capped audit list. It does not check that the
// tournament exists, so a write racing Delete can leave an orphan list; the
// retention TTL set here removes it.
func (e *eventStore) Append(ctx context.Context, events ...event.Event) error {
	now := e.clock.Now()
	_, err := e.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, ev := range events {
			if ev.ID == "" {
				ev.ID = uuid.NewString()
			}
			if ev.CreatedAt.IsZero() {
				ev.CreatedAt = now
			}
			body, err := json.Marshal(ev)
			if err != nil {
				return fmt.Errorf("redis: encode event: %w", err)
			}
			k := key(ev.AggregateID, "audit")
			p.LPush(ctx, k, body)
			if e.maxEntries > 0 {
				p.LTrim(ctx, k, 0, int64(e.maxEntries-1))
			}
			if e.retention > 0 {
				p.Expire(ctx, k, e.retention)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: append events: %w", err)
	}
	return nil
}

func (e *eventStore) Load(ctx context.Context, aggregateID string, limit int) ([]event.Event, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raw, err := e.rdb.LRange(ctx, key(aggregateID, "audit"), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load events %s: %w", aggregateID, err)
	}

	var cutoff time.Time
	if e.retention > 0 {
		cutoff = e.clock.Now().Add(-e.retention)
	}
	out := make([]event.Event, 0, len(raw))
	for _, item := range raw {
		var ev event.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("redis: decode event: %w", err)
		}
		if ev.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
