package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Document kinds stored per tournament.
const (
	kindConfig  = "config"
	kindTeams   = "teams"
	kindPlayers = "players"
	kindState   = "state"
)

const uniqueViolation = "23505"

// getDocument decodes the body of one document into dst.
func getDocument(ctx context.Context, q sqlx.QueryerContext, slug, kind string, dst any) (int64, error) {
	var row struct {
		Body    []byte `db:"body"`
		Version int64  `db:"version"`
	}
	err := sqlx.GetContext(ctx, q, &row,
		`SELECT body, version FROM documents WHERE tournament_id = $1 AND kind = $2`, slug, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("getting %s document: %w", kind, err)
	}
	if err := json.Unmarshal(row.Body, dst); err != nil {
		return 0, fmt.Errorf("decoding %s document: %w", kind, err)
	}
	return row.Version, nil
}

// TournamentRepo implements store.TournamentRepository with sqlx.
type TournamentRepo struct {
	db *sqlx.DB
}

// NewTournamentRepo returns a new TournamentRepo.
func NewTournamentRepo(db *sqlx.DB) *TournamentRepo {
	return &TournamentRepo{db: db}
}

func (r *TournamentRepo) Create(ctx context.Context, t *tournament.Tournament, teams []tournament.Team, players []tournament.Player, state *ledger.State) error {
	if teams == nil {
		teams = []tournament.Team{}
	}
	if players == nil {
		players = []tournament.Player{}
	}
	state.Version = 1

	docs := []struct {
		kind string
		body any
	}{
		{kindConfig, t},
		{kindTeams, teams},
		{kindPlayers, players},
		{kindState, state},
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range docs {
		body, err := json.Marshal(d.body)
		if err != nil {
			return fmt.Errorf("encoding %s document: %w", d.kind, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (tournament_id, kind, body, version) VALUES ($1, $2, $3, 1)`,
			t.Slug, d.kind, body)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrExists
		}
		if err != nil {
			return fmt.Errorf("inserting %s document: %w", d.kind, err)
		}
	}
	return tx.Commit()
}

func (r *TournamentRepo) Get(ctx context.Context, slug string) (*tournament.Tournament, error) {
	var t tournament.Tournament
	if _, err := getDocument(ctx, r.db, slug, kindConfig, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TournamentRepo) Update(ctx context.Context, t *tournament.Tournament) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding config document: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET body = $1, version = version + 1, updated_at = NOW()
		 WHERE tournament_id = $2 AND kind = $3`, body, t.Slug, kindConfig)
	if err != nil {
		return fmt.Errorf("updating tournament: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *TournamentRepo) Delete(ctx context.Context, slug string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE tournament_id = $1`, slug)
	if err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tournament_index WHERE tournament_id = $1`, slug); err != nil {
		return fmt.Errorf("deleting index entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE aggregate_id = $1`, slug); err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}
	return tx.Commit()
}

// RosterRepo implements store.RosterRepository with sqlx.
type RosterRepo struct {
	db *sqlx.DB
}

// NewRosterRepo returns a new RosterRepo.
func NewRosterRepo(db *sqlx.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

func (r *RosterRepo) Teams(ctx context.Context, slug string) ([]tournament.Team, error) {
	var teams []tournament.Team
	if _, err := getDocument(ctx, r.db, slug, kindTeams, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *RosterRepo) Players(ctx context.Context, slug string) ([]tournament.Player, error) {
	var players []tournament.Player
	if _, err := getDocument(ctx, r.db, slug, kindPlayers, &players); err != nil {
		return nil, err
	}
	return players, nil
}
