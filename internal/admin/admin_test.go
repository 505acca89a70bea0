package admin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jensholdgaard/player-auction/internal/admin"
	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/lifecycle"
	"github.com/jensholdgaard/player-auction/internal/ratelimit"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/store/memstore"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

var t0 = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

type mockRecorder struct {
	mu    sync.Mutex
	types []event.Type
}

func (m *mockRecorder) Record(_ context.Context, ev event.Event, _ any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, ev.Type)
}

type harness struct {
	svc      *admin.Service
	repos    *store.Repositories
	recorder *mockRecorder
	clock    *clock.Mock
}

func newHarness(t *testing.T, creations int) *harness {
	t.Helper()
	clk := clock.NewMock(t0)
	repos := memstore.New(clk, 0, 0).Repositories()
	sessions := auth.NewSessions([]byte("0123456789abcdef0123456789abcdef"), time.Hour, clk)
	rec := &mockRecorder{}
	svc := admin.NewService(
		repos,
		lifecycle.NewGate(0, clk),
		auth.NewAuthorizer(sessions, nil, nil),
		ratelimit.NewMemory(creations, time.Hour, clk),
		rec,
		admin.Options{DefaultTTL: 90 * 24 * time.Hour, PBKDF2Iterations: 10000},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		noop.NewTracerProvider(),
		clk,
	)
	return &harness{svc: svc, repos: repos, recorder: rec, clock: clk}
}

func validInput(slug string) admin.CreateInput {
	return admin.CreateInput{
		Slug: slug,
		Name: "Winter League",
		Settings: tournament.Settings{
			TeamSize:   8,
			BasePrices: map[tournament.Category]int64{tournament.CategoryBase: 1000},
		},
		Teams:   []tournament.Team{{ID: "a", Name: "Alpha", Budget: 50000}},
		Players: []tournament.Player{{ID: "p1", Name: "One", Role: tournament.RoleBatsman, Category: tournament.CategoryBase}},
		PIN:     "4821",
	}
}

func TestService_Create(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	created, err := h.svc.Create(ctx, validInput("winter"), "10.0.0.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.RecoveryToken == "" || created.SessionToken == "" {
		t.Errorf("created = %+v", created)
	}
	if created.Tournament.PINHash != "" || created.Tournament.RecoveryTokenHash != "" {
		t.Error("response leaks credential hashes")
	}
	if created.Tournament.Status != tournament.StatusDraft {
		t.Errorf("status = %s, want draft", created.Tournament.Status)
	}
	if !created.Tournament.ExpiresAt.Equal(t0.Add(90 * 24 * time.Hour)) {
		t.Errorf("expiresAt = %v", created.Tournament.ExpiresAt)
	}

	stored, _ := h.repos.Tournaments.Get(ctx, "winter")
	if !auth.VerifyPIN("4821", stored.PINHash) || !auth.VerifyRecoveryToken(created.RecoveryToken, stored.RecoveryTokenHash) {
		t.Error("stored credentials do not match")
	}
	if all, _ := h.repos.Indexes.List(ctx, store.IndexAll); len(all) != 1 || all[0] != "winter" {
		t.Errorf("all index = %v", all)
	}
	if pub, _ := h.repos.Indexes.List(ctx, store.IndexPublished); len(pub) != 0 {
		t.Errorf("published index = %v", pub)
	}
	if s, err := h.repos.States.Load(ctx, "winter"); err != nil || s.Version != 1 {
		t.Errorf("initial state = %+v, %v", s, err)
	}
	if len(h.recorder.types) != 1 || h.recorder.types[0] != event.TournamentCreated {
		t.Errorf("recorded = %v", h.recorder.types)
	}

	_, err = h.svc.Create(ctx, validInput("winter"), "10.0.0.1")
	if !errors.Is(err, admin.ErrTournamentExists) || apperr.KindOf(err) != apperr.KindConflict {
		t.Errorf("duplicate error = %v, want Conflict", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	past := t0.Add(-time.Hour)
	tests := []struct {
		name   string
		mutate func(*admin.CreateInput)
	}{
		{name: "bad slug", mutate: func(in *admin.CreateInput) { in.Slug = "Not A Slug" }},
		{name: "short pin", mutate: func(in *admin.CreateInput) { in.PIN = "12" }},
		{name: "no base price", mutate: func(in *admin.CreateInput) { in.Settings.BasePrices = nil }},
		{name: "past expiry", mutate: func(in *admin.CreateInput) { in.ExpiresAt = &past }},
		{name: "unknown status", mutate: func(in *admin.CreateInput) { in.Status = "running" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10)
			in := validInput("winter")
			tt.mutate(&in)
			_, err := h.svc.Create(context.Background(), in, "10.0.0.1")
			if apperr.KindOf(err) != apperr.KindBadRequest {
				t.Errorf("error = %v, want BadRequest", err)
			}
		})
	}
}

func TestService_CreateRateLimited(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	for _, slug := range []string{"one-cup", "two-cup"} {
		if _, err := h.svc.Create(ctx, validInput(slug), "10.0.0.1"); err != nil {
			t.Fatalf("Create %s: %v", slug, err)
		}
	}
	_, err := h.svc.Create(ctx, validInput("three-cup"), "10.0.0.1")
	if !errors.Is(err, admin.ErrTooManyCreations) || apperr.KindOf(err) != apperr.KindRateLimited {
		t.Errorf("error = %v, want RateLimited", err)
	}
	if _, err := h.svc.Create(ctx, validInput("three-cup"), "10.0.0.2"); err != nil {
		t.Errorf("other client: %v", err)
	}
}

func TestService_PublishAndList(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	if _, err := h.svc.Create(ctx, validInput("winter"), "ip"); err != nil {
		t.Fatal(err)
	}
	pin := auth.Credentials{PIN: "4821"}

	if _, err := h.svc.SetPublished(ctx, "winter", auth.Credentials{}, true); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("anonymous publish error = %v", err)
	}

	got, err := h.svc.SetPublished(ctx, "winter", pin, true)
	if err != nil || !got.Published {
		t.Fatalf("publish = %+v, %v", got, err)
	}
	list, err := h.svc.ListPublished(ctx)
	if err != nil || len(list) != 1 || list[0].Slug != "winter" {
		t.Errorf("ListPublished = %v, %v", list, err)
	}

	if _, err := h.svc.SetPublished(ctx, "winter", pin, false); err != nil {
		t.Fatal(err)
	}
	if list, _ := h.svc.ListPublished(ctx); len(list) != 0 {
		t.Errorf("after unpublish = %v", list)
	}
}

func TestService_ListSkipsExpired(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	in := validInput("winter")
	in.Published = true
	exp := t0.Add(24 * time.Hour)
	in.ExpiresAt = &exp
	if _, err := h.svc.Create(ctx, in, "ip"); err != nil {
		t.Fatal(err)
	}
	if list, _ := h.svc.ListPublished(ctx); len(list) != 1 {
		t.Fatalf("before expiry = %v", list)
	}
	h.clock.Advance(48 * time.Hour)
	if list, _ := h.svc.ListPublished(ctx); len(list) != 0 {
		t.Errorf("after expiry = %v", list)
	}
}

func TestService_SetStatus(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	if _, err := h.svc.Create(ctx, validInput("winter"), "ip"); err != nil {
		t.Fatal(err)
	}
	pin := auth.Credentials{PIN: "4821"}

	if _, err := h.svc.SetStatus(ctx, "winter", pin, "running"); apperr.KindOf(err) != apperr.KindBadRequest {
		t.Errorf("unknown status error = %v", err)
	}
	got, err := h.svc.SetStatus(ctx, "winter", pin, tournament.StatusArchived)
	if err != nil || got.Status != tournament.StatusArchived {
		t.Fatalf("SetStatus = %+v, %v", got, err)
	}

	// Archived tournaments are read-only.
	_, err = h.svc.SetStatus(ctx, "winter", pin, tournament.StatusActive)
	if !errors.Is(err, lifecycle.ErrReadOnly) {
		t.Errorf("update of archived tournament error = %v, want read-only", err)
	}
}

func TestService_Delete(t *testing.T) {
	tests := []struct {
		name     string
		status   tournament.Status
		confirm  bool
		wantKind apperr.Kind
		wantOK   bool
	}{
		{name: "draft confirmed", status: tournament.StatusDraft, confirm: true, wantOK: true},
		{name: "draft unconfirmed", status: tournament.StatusDraft, wantKind: apperr.KindBadRequest},
		{name: "active", status: tournament.StatusActive, confirm: true, wantKind: apperr.KindForbidden},
		{name: "completed", status: tournament.StatusCompleted, confirm: true, wantKind: apperr.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10)
			ctx := context.Background()
			in := validInput("winter")
			in.Status = tt.status
			in.Published = true
			if _, err := h.svc.Create(ctx, in, "ip"); err != nil {
				t.Fatal(err)
			}

			err := h.svc.Delete(ctx, "winter", auth.Credentials{PIN: "4821"}, tt.confirm)
			if !tt.wantOK {
				if apperr.KindOf(err) != tt.wantKind {
					t.Fatalf("error = %v, want kind %s", err, tt.wantKind)
				}
				if _, err := h.repos.Tournaments.Get(ctx, "winter"); err != nil {
					t.Error("rejected delete removed the tournament")
				}
				return
			}
			if err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := h.repos.Tournaments.Get(ctx, "winter"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get after delete error = %v", err)
			}
			for _, idx := range []store.Index{store.IndexAll, store.IndexPublished} {
				if slugs, _ := h.repos.Indexes.List(ctx, idx); len(slugs) != 0 {
					t.Errorf("%s index = %v after delete", idx, slugs)
				}
			}
		})
	}
}

func TestService_Audit(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	if _, err := h.svc.Create(ctx, validInput("winter"), "ip"); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		_ = h.repos.Events.Append(ctx, event.Event{AggregateID: "winter", Type: event.AuctionCleared, Version: int64(i)})
	}

	if _, err := h.svc.Audit(ctx, "winter", auth.Credentials{}, 10); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Errorf("anonymous audit error = %v", err)
	}
	events, err := h.svc.Audit(ctx, "winter", auth.Credentials{PIN: "4821"}, 2)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if len(events) != 2 || events[0].Version != 3 {
		t.Errorf("events = %+v, want newest two", events)
	}
	if _, err := h.svc.Audit(ctx, "ghost", auth.Credentials{PIN: "4821"}, 2); !errors.Is(err, tournament.ErrNotFound) {
		t.Errorf("unknown tournament error = %v", err)
	}
}
