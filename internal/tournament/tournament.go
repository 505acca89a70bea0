// Package tournament holds the static configuration of an auction: the
// tournament itself, its teams and its player pool.
package tournament

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jensholdgaard/player-auction/internal/apperr"
)

// ErrNotFound is returned for unknown tournaments.
var ErrNotFound = apperr.NotFound("TOURNAMENT_NOT_FOUND", "tournament not found")

// Status is the administrative lifecycle status of a tournament.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusLobby     Status = "lobby"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusLobby, StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Role is a player's playing role.
type Role string

const (
	RoleBatsman    Role = "Batsman"
	RoleBowler     Role = "Bowler"
	RoleAllRounder Role = "All-rounder"
	RoleWKBatsman  Role = "WK-Batsman"
)

// Roles lists every role in display order.
var Roles = []Role{RoleBatsman, RoleBowler, RoleAllRounder, RoleWKBatsman}

// Category determines a player's base price.
type Category string

const (
	CategoryAPlus       Category = "APLUS"
	CategoryBase        Category = "BASE"
	CategoryCaptain     Category = "CAPTAIN"
	CategoryViceCaptain Category = "VICE_CAPTAIN"
)

// Premium reports whether c is sold above the standard base price.
func (c Category) Premium() bool { return c == CategoryAPlus }

// Settings are the auction rules of a tournament.
type Settings struct {
	TeamSize     int                `json:"teamSize"`
	BasePrices   map[Category]int64 `json:"basePrices"`
	BidIncrement int64              `json:"bidIncrement"`
	Currency     string             `json:"currency"`
	JokerEnabled bool               `json:"jokerEnabled"`
}

// BasePrice returns the minimum legal bid for a player of category c.
// Categories without an explicit price fall back to the BASE price.
func (s Settings) BasePrice(c Category) int64 {
	if p, ok := s.BasePrices[c]; ok {
		return p
	}
	return s.BasePrices[CategoryBase]
}

// RosterSlots is the number of biddable slots per team; captain and
// vice-captain fill the other two.
func (s Settings) RosterSlots() int {
	return s.TeamSize - 2
}

// Tournament is the configuration document of one auction tenant.
type Tournament struct {
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Status            Status    `json:"status"`
	Published         bool      `json:"published"`
	Settings          Settings  `json:"settings"`
	ExpiresAt         time.Time `json:"expiresAt"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	PINHash           string    `json:"pinHash,omitempty"`
	RecoveryTokenHash string    `json:"recoveryTokenHash,omitempty"`
}

// Public returns a copy of t without credential material.
func (t Tournament) Public() Tournament {
	t.PINHash = ""
	t.RecoveryTokenHash = ""
	return t
}

// Team is a bidding franchise.
type Team struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Budget        int64  `json:"budget"`
	Color         string `json:"color,omitempty"`
	CaptainID     string `json:"captainId,omitempty"`
	ViceCaptainID string `json:"viceCaptainId,omitempty"`
	LogoURL       string `json:"logoUrl,omitempty"`
}

// Player is an entry in the auction pool.
type Player struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Role           Role       `json:"role"`
	Category       Category   `json:"category"`
	AvailableFrom  *time.Time `json:"availableFrom,omitempty"`
	AvailableUntil *time.Time `json:"availableUntil,omitempty"`
	ImageURL       string     `json:"imageUrl,omitempty"`
	ProfileURL     string     `json:"profileUrl,omitempty"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,62}[a-z0-9])$`)

// ValidSlug reports whether s can be used as a tournament identifier.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Validate checks the static configuration for internal consistency.
func Validate(t *Tournament, teams []Team, players []Player) error {
	if !ValidSlug(t.Slug) {
		return fmt.Errorf("invalid slug %q", t.Slug)
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !t.Status.Valid() {
		return fmt.Errorf("unknown status %q", t.Status)
	}
	if t.Settings.TeamSize < 3 {
		return fmt.Errorf("team size must be at least 3, got %d", t.Settings.TeamSize)
	}
	if t.Settings.BasePrices[CategoryBase] <= 0 {
		return fmt.Errorf("base price for %s must be positive", CategoryBase)
	}
	for c, p := range t.Settings.BasePrices {
		if p < 0 {
			return fmt.Errorf("base price for %s must not be negative", c)
		}
	}

	playerIDs := make(map[string]struct{}, len(players))
	for _, p := range players {
		if p.ID == "" {
			return fmt.Errorf("player id is required")
		}
		if _, dup := playerIDs[p.ID]; dup {
			return fmt.Errorf("duplicate player id %q", p.ID)
		}
		playerIDs[p.ID] = struct{}{}
	}

	teamIDs := make(map[string]struct{}, len(teams))
	for _, tm := range teams {
		if tm.ID == "" {
			return fmt.Errorf("team id is required")
		}
		if _, dup := teamIDs[tm.ID]; dup {
			return fmt.Errorf("duplicate team id %q", tm.ID)
		}
		teamIDs[tm.ID] = struct{}{}
		if tm.Budget <= 0 {
			return fmt.Errorf("team %q budget must be positive", tm.ID)
		}
		for _, ref := range []string{tm.CaptainID, tm.ViceCaptainID} {
			if ref == "" {
				continue
			}
			if _, ok := playerIDs[ref]; !ok {
				return fmt.Errorf("team %q references unknown player %q", tm.ID, ref)
			}
		}
	}
	return nil
}
