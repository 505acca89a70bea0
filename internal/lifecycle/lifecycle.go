// Package lifecycle classifies tournaments by expiry and gates reads and
// writes accordingly.
package lifecycle

import (
	"time"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// DefaultReadOnlyWindow is how long before expiry a tournament stops
// accepting mutations.
const DefaultReadOnlyWindow = 10 * 24 * time.Hour

// State is the derived lifecycle classification of a tournament.
type State string

const (
	Active   State = "active"
	ReadOnly State = "readonly"
	Expired  State = "expired"
)

// Errors returned by the gate.
var (
	ErrExpired  = apperr.NotFound("TOURNAMENT_NOT_FOUND", "tournament not found")
	ErrReadOnly = apperr.Forbidden("TOURNAMENT_READ_ONLY", "tournament is read-only")
)

// Classify derives the lifecycle state from status, expiry and the current
// time. A zero expiresAt never expires. Archived tournaments are read-only
// until they expire.
func Classify(status tournament.Status, expiresAt, now time.Time, window time.Duration) State {
	if !expiresAt.IsZero() {
		if now.After(expiresAt) {
			return Expired
		}
		if expiresAt.Sub(now) <= window {
			return ReadOnly
		}
	}
	if status == tournament.StatusArchived {
		return ReadOnly
	}
	return Active
}

// Gate applies Classify with a configured window and clock.
type Gate struct {
	window time.Duration
	clock  clock.Clock
}

// NewGate returns a Gate. A non-positive window uses DefaultReadOnlyWindow.
func NewGate(window time.Duration, clk clock.Clock) *Gate {
	if window <= 0 {
		window = DefaultReadOnlyWindow
	}
	return &Gate{window: window, clock: clk}
}

// State classifies t at the current time.
func (g *Gate) State(t *tournament.Tournament) State {
	return Classify(t.Status, t.ExpiresAt, g.clock.Now(), g.window)
}

// CheckRead rejects expired tournaments as not found.
func (g *Gate) CheckRead(t *tournament.Tournament) error {
	if g.State(t) == Expired {
		return ErrExpired
	}
	return nil
}

// CheckWrite rejects expired tournaments as not found and read-only
// tournaments as forbidden.
func (g *Gate) CheckWrite(t *tournament.Tournament) error {
	switch g.State(t) {
	case Expired:
		return ErrExpired
	case ReadOnly:
		return ErrReadOnly.WithDetails(map[string]any{"expiresAt": t.ExpiresAt})
	}
	return nil
}
