// Package retention removes tournaments whose expiry plus a grace period
// has passed, archiving them first when an archiver is configured.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Archiver persists a tournament before deletion.
type Archiver interface {
	Archive(ctx context.Context, slug string) (string, error)
}

// Sweeper periodically deletes expired tournaments.
type Sweeper struct {
	tournaments store.TournamentRepository
	indexes     store.IndexRepository
	archiver    Archiver
	grace       time.Duration
	interval    time.Duration
	logger      *slog.Logger
	tracer      trace.Tracer
	clock       clock.Clock
}

// NewSweeper creates a Sweeper. archiver may be nil.
func NewSweeper(repos *store.Repositories, archiver Archiver, grace, interval time.Duration, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Sweeper {
	return &Sweeper{
		tournaments: repos.Tournaments,
		indexes:     repos.Indexes,
		archiver:    archiver,
		grace:       grace,
		interval:    interval,
		logger:      logger,
		tracer:      tp.Tracer("github.com/jensholdgaard/player-auction/internal/retention"),
		clock:       clk,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if n, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "retention sweep failed", slog.Any("error", err))
		} else if n > 0 {
			s.logger.InfoContext(ctx, "retention sweep removed tournaments", slog.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep removes every tournament past expiresAt+grace and returns how many
// were removed. A tournament whose archive upload fails is kept for the
// next sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	slugs, err := s.indexes.List(ctx, store.IndexAll)
	if err != nil {
		return 0, fmt.Errorf("listing tournaments: %w", err)
	}

	now := s.clock.Now()
	removed := 0
	for _, slug := range slugs {
		if ctx.Err() != nil {
			break
		}
		t, err := s.tournaments.Get(ctx, slug)
		if errors.Is(err, store.ErrNotFound) {
			s.unindex(ctx, slug)
			continue
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "loading tournament for retention", slog.String("tournament", slug), slog.Any("error", err))
			continue
		}
		if !due(t, now, s.grace) {
			continue
		}
		if err := s.remove(ctx, t); err != nil {
			s.logger.ErrorContext(ctx, "removing expired tournament", slog.String("tournament", slug), slog.Any("error", err))
			continue
		}
		removed++
	}
	span.SetAttributes(attribute.Int("removed", removed))
	return removed, nil
}

func due(t *tournament.Tournament, now time.Time, grace time.Duration) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt.Add(grace))
}

func (s *Sweeper) remove(ctx context.Context, t *tournament.Tournament) error {
	key := ""
	if s.archiver != nil {
		var err error
		if key, err = s.archiver.Archive(ctx, t.Slug); err != nil {
			return fmt.Errorf("archiving: %w", err)
		}
	}

	if err := s.tournaments.Delete(ctx, t.Slug); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting: %w", err)
	}
	s.unindex(ctx, t.Slug)
	s.logger.InfoContext(ctx, "expired tournament removed",
		slog.String("tournament", t.Slug),
		slog.Time("expires_at", t.ExpiresAt),
		slog.String("archive_key", key),
	)
	return nil
}

func (s *Sweeper) unindex(ctx context.Context, slug string) {
	for _, idx := range []store.Index{store.IndexAll, store.IndexPublished} {
		if err := s.indexes.Remove(ctx, idx, slug); err != nil {
			s.logger.WarnContext(ctx, "failed to unindex tournament",
				slog.String("tournament", slug),
				slog.String("index", string(idx)),
				slog.Any("error", err),
			)
		}
	}
}
