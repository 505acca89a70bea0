package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/lifecycle"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/telemetry"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// ErrStateConflict is returned when another write to the auction document
// landed between this request's read and write.
var ErrStateConflict = apperr.Conflict("STATE_VERSION_CONFLICT", "auction state changed concurrently, reload and retry")

// Recorder accepts audit events without blocking.
type Recorder interface {
	Record(ctx context.Context, ev event.Event, data any)
}

// Snapshot is the read model returned by Get.
type Snapshot struct {
	Tournament tournament.Tournament `json:"tournament"`
	Lifecycle  lifecycle.State       `json:"lifecycle"`
	View       View                  `json:"view"`
	State      *ledger.State         `json:"state"`
}

// Result is returned by Dispatch.
type Result struct {
	Action    Name               `json:"action"`
	State     *ledger.State      `json:"state,omitempty"`
	Duplicate bool               `json:"duplicate,omitempty"`
	Player    *tournament.Player `json:"player,omitempty"`
	Method    auth.Method        `json:"method,omitempty"`
	Session   string             `json:"sessionToken,omitempty"`
	ExpiresAt *time.Time         `json:"sessionExpiresAt,omitempty"`
}

// Manager runs actions against stored tournaments.
type Manager struct {
	tournaments store.TournamentRepository
	rosters     store.RosterRepository
	states      store.StateRepository
	gate        *lifecycle.Gate
	authz       *auth.Authorizer
	machine     *Machine
	recorder    Recorder
	metrics     *telemetry.AuctionMetrics
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       clock.Clock
}

// NewManager creates a new auction Manager.
func NewManager(repos *store.Repositories, gate *lifecycle.Gate, authz *auth.Authorizer, machine *Machine, recorder Recorder, metrics *telemetry.AuctionMetrics, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Manager {
	return &Manager{
		tournaments: repos.Tournaments,
		rosters:     repos.Rosters,
		states:      repos.States,
		gate:        gate,
		authz:       authz,
		machine:     machine,
		recorder:    recorder,
		metrics:     metrics,
		logger:      logger,
		tracer:      tp.Tracer("github.com/jensholdgaard/player-auction/internal/auction"),
		clock:       clk,
	}
}

// Get returns the hydrated view and raw state. Unpublished tournaments
// require credentials.
func (m *Manager) Get(ctx context.Context, slug string, creds auth.Credentials) (*Snapshot, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Get",
		trace.WithAttributes(attribute.String("tournament", slug)),
	)
	defer span.End()

	t, err := m.loadTournament(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := m.gate.CheckRead(t); err != nil {
		return nil, err
	}
	if !t.Published {
		if _, err := m.authz.Authorize(ctx, t, creds); err != nil {
			return nil, err
		}
	}

	roster, err := m.loadRoster(ctx, slug)
	if err != nil {
		return nil, err
	}
	s, err := m.states.Load(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading auction state %s: %w", slug, err)
	}

	return &Snapshot{
		Tournament: t.Public(),
		Lifecycle:  m.gate.State(t),
		View:       BuildView(t, roster, s),
		State:      s,
	}, nil
}

// Dispatch authorizes and applies a to the tournament's auction document.
func (m *Manager) Dispatch(ctx context.Context, slug string, creds auth.Credentials, a Action) (*Result, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Dispatch",
		trace.WithAttributes(
			attribute.String("tournament", slug),
			attribute.String("action", string(a.Name())),
		),
	)
	defer span.End()

	res, err := m.dispatch(ctx, slug, creds, a)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = apperr.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res.Duplicate:
		outcome = "duplicate"
	}
	m.metrics.Action(ctx, string(a.Name()), outcome)
	return res, err
}

func (m *Manager) dispatch(ctx context.Context, slug string, creds auth.Credentials, a Action) (*Result, error) {
	t, err := m.loadTournament(ctx, slug)
	if err != nil {
		return nil, err
	}
	if a.Mutates() {
		err = m.gate.CheckWrite(t)
	} else {
		err = m.gate.CheckRead(t)
	}
	if err != nil {
		return nil, err
	}

	method, err := m.authz.Authorize(ctx, t, creds)
	if err != nil {
		return nil, err
	}
	if _, ok := a.(Verify); ok {
		res := &Result{Action: a.Name(), Method: method}
		if method != auth.MethodSession {
			token, exp := m.authz.Sessions().Issue(slug)
			res.Session, res.ExpiresAt = token, &exp
		}
		return res, nil
	}

	roster, err := m.loadRoster(ctx, slug)
	if err != nil {
		return nil, err
	}
	current, err := m.states.Load(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading auction state %s: %w", slug, err)
	}

	working := current.Clone()
	now := m.clock.Now()
	out, err := m.machine.Apply(Input{State: working, Tournament: t, Roster: roster, Now: now}, a)
	if err != nil {
		return nil, err
	}
	res := &Result{Action: a.Name(), Duplicate: out.Duplicate, Player: out.Picked, Method: method}
	if !out.Changed {
		res.State = current
		return res, nil
	}

	if err := ledger.CheckInvariants(working, t.Settings, roster); err != nil {
		m.logger.ErrorContext(ctx, "refusing to persist inconsistent auction state",
			slog.String("tournament", slug),
			slog.String("action", string(a.Name())),
			slog.Any("error", err),
		)
		return nil, apperr.Internal(err)
	}
	if err := m.states.Save(ctx, slug, working, current.Version); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			m.logger.WarnContext(ctx, "auction state version conflict",
				slog.String("tournament", slug),
				slog.String("action", string(a.Name())),
				slog.Int64("expected_version", current.Version),
			)
			return nil, ErrStateConflict
		}
		return nil, fmt.Errorf("saving auction state %s: %w", slug, err)
	}
	res.State = working

	if out.Event != "" {
		m.recorder.Record(ctx, event.Event{
			AggregateID: slug,
			Type:        out.Event,
			Version:     working.Version,
			Actor:       string(method),
			CreatedAt:   now,
		}, out.Data)
	}
	if sold, ok := out.Data.(event.SoldData); ok {
		m.metrics.BiddingDuration(ctx, sold.Seconds)
	}

	m.logger.InfoContext(ctx, "auction action applied",
		slog.String("tournament", slug),
		slog.String("action", string(a.Name())),
		slog.Int64("version", working.Version),
	)
	return res, nil
}

func (m *Manager) loadTournament(ctx context.Context, slug string) (*tournament.Tournament, error) {
	t, err := m.tournaments.Get(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, tournament.ErrNotFound.WithDetails(map[string]any{"slug": slug})
	}
	if err != nil {
		return nil, fmt.Errorf("loading tournament %s: %w", slug, err)
	}
	return t, nil
}

func (m *Manager) loadRoster(ctx context.Context, slug string) (*tournament.Roster, error) {
	teams, err := m.rosters.Teams(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading teams %s: %w", slug, err)
	}
	players, err := m.rosters.Players(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading players %s: %w", slug, err)
	}
	return tournament.NewRoster(teams, players), nil
}
