// Package archive writes a final JSON snapshot of a tournament to object
// storage before the retention sweeper deletes it.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// ErrNotFound is returned when the tournament to archive does not exist.
var ErrNotFound = errors.New("archive: tournament not found")

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}

// Snapshot is the archived document.
type Snapshot struct {
	Tournament tournament.Tournament `json:"tournament"`
	Teams      []tournament.Team     `json:"teams"`
	Players    []tournament.Player   `json:"players"`
	State      *ledger.State         `json:"state"`
	Events     []event.Event         `json:"events"`
	ArchivedAt time.Time             `json:"archivedAt"`
}

// Archiver builds snapshots from the store and uploads them.
type Archiver struct {
	repos    *store.Repositories
	uploader Uploader
	prefix   string
	clock    clock.Clock
}

// NewArchiver returns an Archiver writing objects under prefix.
func NewArchiver(repos *store.Repositories, uploader Uploader, prefix string, clk clock.Clock) *Archiver {
	return &Archiver{repos: repos, uploader: uploader, prefix: prefix, clock: clk}
}

// Archive uploads the snapshot of slug and returns its object key.
func (a *Archiver) Archive(ctx context.Context, slug string) (string, error) {
	snap, err := a.snapshot(ctx, slug)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot %s: %w", slug, err)
	}

	key := path.Join(a.prefix, slug, a.clock.Now().UTC().Format("20060102T150405Z")+".json")
	if err := a.uploader.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("uploading snapshot %s: %w", slug, err)
	}
	return key, nil
}

func (a *Archiver) snapshot(ctx context.Context, slug string) (*Snapshot, error) {
	t, err := a.repos.Tournaments.Get(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading tournament %s: %w", slug, err)
	}
	teams, err := a.repos.Rosters.Teams(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading teams %s: %w", slug, err)
	}
	players, err := a.repos.Rosters.Players(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading players %s: %w", slug, err)
	}
	state, err := a.repos.States.Load(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("loading auction state %s: %w", slug, err)
	}
	events, err := a.repos.Events.Load(ctx, slug, 0)
	if err != nil {
		return nil, fmt.Errorf("loading audit trail %s: %w", slug, err)
	}
	return &Snapshot{
		Tournament: t.Public(),
		Teams:      teams,
		Players:    players,
		State:      state,
		Events:     events,
		ArchivedAt: a.clock.Now(),
	}, nil
}
