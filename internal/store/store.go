package store

import (
	"context"
	"errors"

	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Errors shared by every driver.
var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrVersionConflict = errors.New("state version conflict")
)

// Index names a global set of tournament slugs.
type Index string

const (
	IndexAll       Index = "all"
	IndexPublished Index = "published"
)

// TournamentRepository persists tournament configuration documents.
type TournamentRepository interface {
	// Create stores a tournament with its teams, players and initial state.
	// It returns ErrExists if the slug is taken.
	Create(ctx context.Context, t *tournament.Tournament, teams []tournament.Team, players []tournament.Player, state *ledger.State) error
	Get(ctx context.Context, slug string) (*tournament.Tournament, error)
	Update(ctx context.Context, t *tournament.Tournament) error
	// Delete removes every document of the tournament, including its audit
	// trail.
	Delete(ctx context.Context, slug string) error
}

// RosterRepository reads a tournament's teams and players.
type RosterRepository interface {
	Teams(ctx context.Context, slug string) ([]tournament.Team, error)
	Players(ctx context.Context, slug string) ([]tournament.Player, error)
}

// StateRepository persists the auction document.
type StateRepository interface {
	Load(ctx context.Context, slug string) (*ledger.State, error)
	// Save writes s if the stored version equals expectedVersion, setting
	// s.Version to expectedVersion+1. A stale expectedVersion yields
	// ErrVersionConflict.
	Save(ctx context.Context, slug string, s *ledger.State, expectedVersion int64) error
}

// IndexRepository maintains the global tournament sets.
type IndexRepository interface {
	Add(ctx context.Context, index Index, slug string) error
	Remove(ctx context.Context, index Index, slug string) error
	List(ctx context.Context, index Index) ([]string, error)
}
