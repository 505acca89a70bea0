package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
)

// StateRepo implements store.StateRepository with sqlx. The document's
// version column is the optimistic concurrency token.
type StateRepo struct {
	db *sqlx.DB
}

// NewStateRepo returns a new StateRepo.
func NewStateRepo(db *sqlx.DB) *StateRepo {
	return &StateRepo{db: db}
}

func (r *StateRepo) Load(ctx context.Context, slug string) (*ledger.State, error) {
	var s ledger.State
	version, err := getDocument(ctx, r.db, slug, kindState, &s)
	if err != nil {
		return nil, err
	}
	s.Normalize()
	s.Version = version
	return &s, nil
}

func (r *StateRepo) Save(ctx context.Context, slug string, s *ledger.State, expectedVersion int64) error {
	next := *s
	next.Version = expectedVersion + 1
	body, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE documents SET body = $1, version = $2, updated_at = NOW()
		 WHERE tournament_id = $3 AND kind = $4 AND version = $5`,
		body, next.Version, slug, kindState, expectedVersion)
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM documents WHERE tournament_id = $1 AND kind = $2)`,
			slug, kindState); err != nil {
			return fmt.Errorf("checking state: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		return store.ErrVersionConflict
	}
	s.Version = next.Version
	return nil
}

// IndexRepo implements store.IndexRepository with sqlx.
type IndexRepo struct {
	db *sqlx.DB
}

// NewIndexRepo returns a new IndexRepo.
func NewIndexRepo(db *sqlx.DB) *IndexRepo {
	return &IndexRepo{db: db}
}

func (r *IndexRepo) Add(ctx context.Context, index store.Index, slug string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tournament_index (index_name, tournament_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, string(index), slug)
	if err != nil {
		return fmt.Errorf("adding %s to index %s: %w", slug, index, err)
	}
	return nil
}

func (r *IndexRepo) Remove(ctx context.Context, index store.Index, slug string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tournament_index WHERE index_name = $1 AND tournament_id = $2`, string(index), slug)
	if err != nil {
		return fmt.Errorf("removing %s from index %s: %w", slug, index, err)
	}
	return nil
}

func (r *IndexRepo) List(ctx context.Context, index store.Index) ([]string, error) {
	var slugs []string
	err := r.db.SelectContext(ctx, &slugs,
		`SELECT tournament_id FROM tournament_index WHERE index_name = $1 ORDER BY tournament_id`, string(index))
	if err != nil {
		return nil, fmt.Errorf("listing index %s: %w", index, err)
	}
	return slugs, nil
}
