package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/store/memstore"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repos *store.Repositories, slug string) {
	t.Helper()
	tr := &tournament.Tournament{Slug: slug, Name: "Cup", Status: tournament.StatusDraft}
	teams := []tournament.Team{{ID: "a", Budget: 1000}}
	players := []tournament.Player{{ID: "p1"}}
	if err := repos.Tournaments.Create(context.Background(), tr, teams, players, ledger.New(t0)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestTournaments(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New(clock.NewMock(t0), 0, 0).Repositories()
	seed(t, repos, "cup")

	err := repos.Tournaments.Create(ctx, &tournament.Tournament{Slug: "cup"}, nil, nil, ledger.New(t0))
	if !errors.Is(err, store.ErrExists) {
		t.Errorf("duplicate Create() error = %v, want ErrExists", err)
	}

	got, err := repos.Tournaments.Get(ctx, "cup")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.Published = true
	if err := repos.Tournaments.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ := repos.Tournaments.Get(ctx, "cup")
	if !again.Published {
		t.Error("Update() not persisted")
	}

	teams, _ := repos.Rosters.Teams(ctx, "cup")
	players, _ := repos.Rosters.Players(ctx, "cup")
	if len(teams) != 1 || len(players) != 1 {
		t.Errorf("got %d teams, %d players", len(teams), len(players))
	}

	_ = repos.Indexes.Add(ctx, store.IndexAll, "cup")
	if err := repos.Tournaments.Delete(ctx, "cup"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repos.Tournaments.Get(ctx, "cup"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if all, _ := repos.Indexes.List(ctx, store.IndexAll); len(all) != 0 {
		t.Errorf("index still lists %v after delete", all)
	}
}

func TestStates_OptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New(clock.NewMock(t0), 0, 0).Repositories()
	seed(t, repos, "cup")

	first, _ := repos.States.Load(ctx, "cup")
	second, _ := repos.States.Load(ctx, "cup")
	if first.Version != 1 {
		t.Fatalf("initial version = %d, want 1", first.Version)
	}

	first.Start("p1", t0)
	if err := repos.States.Save(ctx, "cup", first, 1); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first.Version != 2 {
		t.Errorf("version after save = %d, want 2", first.Version)
	}

	second.Pause("", nil)
	if err := repos.States.Save(ctx, "cup", second, 1); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("stale Save() error = %v, want ErrVersionConflict", err)
	}

	stored, _ := repos.States.Load(ctx, "cup")
	if stored.Status != ledger.StatusLive {
		t.Errorf("stored status = %s, want LIVE", stored.Status)
	}
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New(nil, 0, 0).Repositories()

	for _, slug := range []string{"b-cup", "a-cup", "b-cup"} {
		_ = repos.Indexes.Add(ctx, store.IndexPublished, slug)
	}
	got, _ := repos.Indexes.List(ctx, store.IndexPublished)
	if len(got) != 2 || got[0] != "a-cup" {
		t.Errorf("List() = %v, want [a-cup b-cup]", got)
	}
	_ = repos.Indexes.Remove(ctx, store.IndexPublished, "a-cup")
	got, _ = repos.Indexes.List(ctx, store.IndexPublished)
	if len(got) != 1 {
		t.Errorf("List() after Remove = %v", got)
	}
}

func TestEvents_CappedAndRetained(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock(t0)
	repos := memstore.New(clk, 3, time.Hour).Repositories()
	seed(t, repos, "cup")

	for i := 0; i < 5; i++ {
		_ = repos.Events.Append(ctx, event.Event{AggregateID: "cup", Type: event.AuctionStarted, Version: int64(i)})
		clk.Advance(time.Minute)
	}

	got, err := repos.Events.Load(ctx, "cup", 0)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Load() returned %d events, want 3", len(got))
	}
	if got[0].Version != 4 || got[0].ID == "" {
		t.Errorf("newest event = %+v, want version 4 with an id", got[0])
	}

	if limited, _ := repos.Events.Load(ctx, "cup", 1); len(limited) != 1 {
		t.Errorf("Load(limit=1) returned %d events", len(limited))
	}

	clk.Advance(2 * time.Hour)
	if expired, _ := repos.Events.Load(ctx, "cup", 0); len(expired) != 0 {
		t.Errorf("Load() after retention returned %d events, want 0", len(expired))
	}
}

func TestEvents_DroppedForUnknownTournament(t *testing.T) {
	ctx := context.Background()
	repos := memstore.New(clock.NewMock(t0), 0, 0).Repositories()
	seed(t, repos, "cup")

	if err := repos.Tournaments.Delete(ctx, "cup"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// A late write from the audit recorder must not resurrect the trail.
	if err := repos.Events.Append(ctx, event.Event{AggregateID: "cup", Type: event.AuctionSold}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got, _ := repos.Events.Load(ctx, "cup", 0); len(got) != 0 {
		t.Errorf("Load() after delete returned %d events, want 0", len(got))
	}

	seed(t, repos, "cup")
	if got, _ := repos.Events.Load(ctx, "cup", 0); len(got) != 0 {
		t.Errorf("recreated tournament inherited %d events", len(got))
	}
}
