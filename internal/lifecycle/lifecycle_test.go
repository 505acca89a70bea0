package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/lifecycle"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestClassify(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name      string
		status    tournament.Status
		expiresAt time.Time
		want      lifecycle.State
	}{
		{"no expiry", tournament.StatusActive, time.Time{}, lifecycle.Active},
		{"far future", tournament.StatusActive, now.Add(30 * day), lifecycle.Active},
		{"just outside window", tournament.StatusLobby, now.Add(10*day + time.Second), lifecycle.Active},
		{"exactly at window", tournament.StatusLobby, now.Add(10 * day), lifecycle.ReadOnly},
		{"five days left", tournament.StatusActive, now.Add(5 * day), lifecycle.ReadOnly},
		{"expires now", tournament.StatusActive, now, lifecycle.ReadOnly},
		{"past expiry", tournament.StatusActive, now.Add(-time.Second), lifecycle.Expired},
		{"archived without expiry", tournament.StatusArchived, time.Time{}, lifecycle.ReadOnly},
		{"archived and expired", tournament.StatusArchived, now.Add(-day), lifecycle.Expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lifecycle.Classify(tt.status, tt.expiresAt, now, lifecycle.DefaultReadOnlyWindow)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGate(t *testing.T) {
	g := lifecycle.NewGate(0, clock.NewMock(now))

	tests := []struct {
		name      string
		expiresAt time.Time
		readErr   bool
		writeErr  error
	}{
		{name: "active", expiresAt: now.Add(60 * 24 * time.Hour)},
		// Five days out: reads succeed, mutations are forbidden.
		{name: "readonly", expiresAt: now.Add(5 * 24 * time.Hour), writeErr: lifecycle.ErrReadOnly},
		{name: "expired", expiresAt: now.Add(-time.Hour), readErr: true, writeErr: lifecycle.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &tournament.Tournament{Slug: "cup", Status: tournament.StatusActive, ExpiresAt: tt.expiresAt}

			err := g.CheckRead(tr)
			if (err != nil) != tt.readErr {
				t.Fatalf("CheckRead() error = %v, wantErr %v", err, tt.readErr)
			}
			if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
				t.Errorf("CheckRead() kind = %v, want not_found", apperr.KindOf(err))
			}

			err = g.CheckWrite(tr)
			if tt.writeErr == nil {
				if err != nil {
					t.Fatalf("CheckWrite() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.writeErr) {
				t.Errorf("CheckWrite() error = %v, want %v", err, tt.writeErr)
			}
		})
	}
}

func TestGate_ReadOnlyIsForbidden(t *testing.T) {
	g := lifecycle.NewGate(lifecycle.DefaultReadOnlyWindow, clock.NewMock(now))
	tr := &tournament.Tournament{Status: tournament.StatusActive, ExpiresAt: now.Add(5 * 24 * time.Hour)}

	err := g.CheckWrite(tr)
	if got := apperr.KindOf(err); got != apperr.KindForbidden {
		t.Errorf("KindOf(CheckWrite()) = %v, want forbidden", got)
	}
}
