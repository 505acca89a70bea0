// Package admin manages tournaments as a whole: creation, publication,
// status changes, deletion and the audit trail.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/lifecycle"
	"github.com/jensholdgaard/player-auction/internal/ratelimit"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

var (
	ErrTournamentExists     = apperr.Conflict("TOURNAMENT_EXISTS", "a tournament with this slug already exists")
	ErrTooManyCreations     = apperr.RateLimited("TOO_MANY_CREATIONS", "too many tournaments created, try again later")
	ErrConfirmationRequired = apperr.BadRequest("CONFIRMATION_REQUIRED", "deletion requires confirm=true")
	ErrNotDeletable         = apperr.Forbidden("TOURNAMENT_NOT_DELETABLE", "only draft tournaments can be deleted")
)

// Recorder accepts audit events without blocking.
type Recorder interface {
	Record(ctx context.Context, ev event.Event, data any)
}

// Options are the tunables of a Service.
type Options struct {
	DefaultTTL       time.Duration
	PBKDF2Iterations int
}

// CreateInput is the body of a creation request.
type CreateInput struct {
	Slug      string              `json:"slug"`
	Name      string              `json:"name"`
	Status    tournament.Status   `json:"status,omitempty"`
	Published bool                `json:"published,omitempty"`
	Settings  tournament.Settings `json:"settings"`
	ExpiresAt *time.Time          `json:"expiresAt,omitempty"`
	Teams     []tournament.Team   `json:"teams"`
	Players   []tournament.Player `json:"players"`
	PIN       string              `json:"pin"`
}

// Created is returned once on creation; the recovery token is not stored.
type Created struct {
	Tournament       tournament.Tournament `json:"tournament"`
	RecoveryToken    string                `json:"recoveryToken"`
	SessionToken     string                `json:"sessionToken"`
	SessionExpiresAt time.Time             `json:"sessionExpiresAt"`
}

// Service performs tournament administration.
type Service struct {
	tournaments store.TournamentRepository
	indexes     store.IndexRepository
	events      event.Store
	gate        *lifecycle.Gate
	authz       *auth.Authorizer
	creations   ratelimit.Limiter
	recorder    Recorder
	opts        Options
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       clock.Clock
}

// NewService creates a Service. creations bounds tournament creation per
// client; nil disables the bound.
func NewService(repos *store.Repositories, gate *lifecycle.Gate, authz *auth.Authorizer, creations ratelimit.Limiter, recorder Recorder, opts Options, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Service {
	return &Service{
		tournaments: repos.Tournaments,
		indexes:     repos.Indexes,
		events:      repos.Events,
		gate:        gate,
		authz:       authz,
		creations:   creations,
		recorder:    recorder,
		opts:        opts,
		logger:      logger,
		tracer:      tp.Tracer("github.com/jensholdgaard/player-auction/internal/admin"),
		clock:       clk,
	}
}

// Create stores a new tournament with an empty auction ledger.
func (s *Service) Create(ctx context.Context, in CreateInput, clientIP string) (*Created, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Create",
		trace.WithAttributes(attribute.String("tournament", in.Slug)),
	)
	defer span.End()

	if s.creations != nil {
		ok, err := s.creations.Allow(ctx, "create|"+clientIP)
		if err != nil {
			return nil, fmt.Errorf("checking creation budget: %w", err)
		}
		if !ok {
			return nil, ErrTooManyCreations
		}
	}

	now := s.clock.Now()
	t := &tournament.Tournament{
		Slug:      in.Slug,
		Name:      in.Name,
		Status:    in.Status,
		Published: in.Published,
		Settings:  in.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Status == "" {
		t.Status = tournament.StatusDraft
	}
	if in.ExpiresAt != nil {
		t.ExpiresAt = in.ExpiresAt.UTC()
	} else if s.opts.DefaultTTL > 0 {
		t.ExpiresAt = now.Add(s.opts.DefaultTTL)
	}
	if err := tournament.Validate(t, in.Teams, in.Players); err != nil {
		return nil, apperr.BadRequest("VALIDATION_ERROR", "%s", err.Error())
	}
	if !t.ExpiresAt.IsZero() && !t.ExpiresAt.After(now) {
		return nil, apperr.BadRequest("VALIDATION_ERROR", "expiresAt must be in the future")
	}

	pinHash, err := auth.HashPIN(in.PIN, s.opts.PBKDF2Iterations)
	if err != nil {
		return nil, apperr.BadRequest("VALIDATION_ERROR", "%s", err.Error()).WithDetails(map[string]any{"field": "pin"})
	}
	recovery, recoveryHash, err := auth.NewRecoveryToken()
	if err != nil {
		return nil, err
	}
	t.PINHash = pinHash
	t.RecoveryTokenHash = recoveryHash

	if err := s.tournaments.Create(ctx, t, in.Teams, in.Players, ledger.New(now)); err != nil {
		if errors.Is(err, store.ErrExists) {
			return nil, ErrTournamentExists.WithDetails(map[string]any{"slug": t.Slug})
		}
		return nil, fmt.Errorf("creating tournament %s: %w", t.Slug, err)
	}
	if err := s.indexes.Add(ctx, store.IndexAll, t.Slug); err != nil {
		return nil, fmt.Errorf("indexing tournament %s: %w", t.Slug, err)
	}
	if t.Published {
		if err := s.indexes.Add(ctx, store.IndexPublished, t.Slug); err != nil {
			return nil, fmt.Errorf("publishing tournament %s: %w", t.Slug, err)
		}
	}

	s.recorder.Record(ctx, event.Event{AggregateID: t.Slug, Type: event.TournamentCreated, CreatedAt: now},
		event.TournamentData{Name: t.Name, Status: string(t.Status)})
	s.logger.InfoContext(ctx, "tournament created",
		slog.String("tournament", t.Slug),
		slog.Int("teams", len(in.Teams)),
		slog.Int("players", len(in.Players)),
	)

	token, exp := s.authz.Sessions().Issue(t.Slug)
	return &Created{
		Tournament:       t.Public(),
		RecoveryToken:    recovery,
		SessionToken:     token,
		SessionExpiresAt: exp,
	}, nil
}

// SetPublished publishes or unpublishes a tournament.
func (s *Service) SetPublished(ctx context.Context, slug string, creds auth.Credentials, published bool) (*tournament.Tournament, error) {
	ctx, span := s.tracer.Start(ctx, "Service.SetPublished",
		trace.WithAttributes(
			attribute.String("tournament", slug),
			attribute.Bool("published", published),
		),
	)
	defer span.End()

	t, err := s.authorizedWrite(ctx, slug, creds)
	if err != nil {
		return nil, err
	}

	t.Published = published
	t.UpdatedAt = s.clock.Now()
	if err := s.tournaments.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating tournament %s: %w", slug, err)
	}

	typ := event.TournamentPublished
	if published {
		err = s.indexes.Add(ctx, store.IndexPublished, slug)
	} else {
		typ = event.TournamentUnpublished
		err = s.indexes.Remove(ctx, store.IndexPublished, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("updating published index for %s: %w", slug, err)
	}

	s.recorder.Record(ctx, event.Event{AggregateID: slug, Type: typ, CreatedAt: t.UpdatedAt}, nil)
	pub := t.Public()
	return &pub, nil
}

// SetStatus moves a tournament to another administrative status.
func (s *Service) SetStatus(ctx context.Context, slug string, creds auth.Credentials, status tournament.Status) (*tournament.Tournament, error) {
	ctx, span := s.tracer.Start(ctx, "Service.SetStatus",
		trace.WithAttributes(
			attribute.String("tournament", slug),
			attribute.String("status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return nil, apperr.BadRequest("VALIDATION_ERROR", "unknown status %q", status).WithDetails(map[string]any{"field": "status"})
	}
	t, err := s.authorizedWrite(ctx, slug, creds)
	if err != nil {
		return nil, err
	}

	from := t.Status
	t.Status = status
	t.UpdatedAt = s.clock.Now()
	if err := s.tournaments.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating tournament %s: %w", slug, err)
	}

	typ := event.TournamentStatusChanged
	if status == tournament.StatusArchived {
		typ = event.TournamentArchived
	}
	s.recorder.Record(ctx, event.Event{AggregateID: slug, Type: typ, CreatedAt: t.UpdatedAt},
		event.TournamentData{Status: string(status), Reason: "was " + string(from)})
	pub := t.Public()
	return &pub, nil
}

// Delete removes a draft tournament and everything stored for it.
func (s *Service) Delete(ctx context.Context, slug string, creds auth.Credentials, confirm bool) error {
	ctx, span := s.tracer.Start(ctx, "Service.Delete",
		trace.WithAttributes(attribute.String("tournament", slug)),
	)
	defer span.End()

	t, err := s.authorizedWrite(ctx, slug, creds)
	if err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}
	if t.Status != tournament.StatusDraft {
		return ErrNotDeletable.WithDetails(map[string]any{"status": t.Status})
	}

	if err := s.tournaments.Delete(ctx, slug); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tournament.ErrNotFound
		}
		return fmt.Errorf("deleting tournament %s: %w", slug, err)
	}
	for _, idx := range []store.Index{store.IndexAll, store.IndexPublished} {
		if err := s.indexes.Remove(ctx, idx, slug); err != nil {
			s.logger.ErrorContext(ctx, "failed to unindex deleted tournament",
				slog.String("tournament", slug),
				slog.Any("error", err),
			)
		}
	}

	s.logger.InfoContext(ctx, "tournament deleted", slog.String("tournament", slug))
	return nil
}

// ListPublished returns the published tournaments that have not expired.
func (s *Service) ListPublished(ctx context.Context) ([]tournament.Tournament, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListPublished")
	defer span.End()

	slugs, err := s.indexes.List(ctx, store.IndexPublished)
	if err != nil {
		return nil, fmt.Errorf("listing published tournaments: %w", err)
	}

	out := make([]tournament.Tournament, 0, len(slugs))
	for _, slug := range slugs {
		t, err := s.tournaments.Get(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.WarnContext(ctx, "published index references missing tournament", slog.String("tournament", slug))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading tournament %s: %w", slug, err)
		}
		if s.gate.State(t) == lifecycle.Expired {
			continue
		}
		out = append(out, t.Public())
	}
	return out, nil
}

// Audit returns up to limit recent audit events, newest first.
func (s *Service) Audit(ctx context.Context, slug string, creds auth.Credentials, limit int) ([]event.Event, error) {
	ctx, span := s.tracer.Start(ctx, "Service.Audit",
		trace.WithAttributes(attribute.String("tournament", slug)),
	)
	defer span.End()

	t, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CheckRead(t); err != nil {
		return nil, err
	}
	if _, err := s.authz.Authorize(ctx, t, creds); err != nil {
		return nil, err
	}

	events, err := s.events.Load(ctx, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("loading audit trail %s: %w", slug, err)
	}
	return events, nil
}

func (s *Service) authorizedWrite(ctx context.Context, slug string, creds auth.Credentials) (*tournament.Tournament, error) {
	t, err := s.load(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CheckWrite(t); err != nil {
		return nil, err
	}
	if _, err := s.authz.Authorize(ctx, t, creds); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) load(ctx context.Context, slug string) (*tournament.Tournament, error) {
	t, err := s.tournaments.Get(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, tournament.ErrNotFound.WithDetails(map[string]any{"slug": slug})
	}
	if err != nil {
		return nil, fmt.Errorf("loading tournament %s: %w", slug, err)
	}
	return t, nil
}
