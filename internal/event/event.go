package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	AuctionStarted      Type = "auction.started"
	AuctionSold         Type = "auction.sold"
	AuctionUnsold       Type = "auction.unsold"
	AuctionPaused       Type = "auction.paused"
	AuctionResumed      Type = "auction.resumed"
	AuctionCleared      Type = "auction.cleared"
	AuctionReset        Type = "auction.reset"
	AuctionJokerClaimed Type = "auction.joker_claimed"
	AuctionCorrected    Type = "auction.corrected"

	TournamentCreated       Type = "tournament.created"
	TournamentPublished     Type = "tournament.published"
	TournamentUnpublished   Type = "tournament.unpublished"
	TournamentStatusChanged Type = "tournament.status_changed"
	TournamentArchived      Type = "tournament.archived"
)

// Event represents a single audit entry for a tournament.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int64           `json:"version" db:"version"`
	Actor       string          `json:"actor,omitempty" db:"actor"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// StartedData is the payload for AuctionStarted events.
type StartedData struct {
	PlayerID string `json:"player_id"`
}

// SoldData is the payload for AuctionSold events.
type SoldData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Price    int64  `json:"price"`
	Joker    bool   `json:"joker,omitempty"`
	Seconds  int64  `json:"bidding_seconds,omitempty"`
}

// UnsoldData is the payload for AuctionUnsold events.
type UnsoldData struct {
	PlayerID string `json:"player_id"`
}

// PausedData is the payload for AuctionPaused events.
type PausedData struct {
	Message string     `json:"message"`
	Until   *time.Time `json:"until,omitempty"`
}

// JokerData is the payload for AuctionJokerClaimed events.
type JokerData struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
}

// CorrectedData is the payload for AuctionCorrected events.
type CorrectedData struct {
	PlayerID   string `json:"player_id"`
	FromTeamID string `json:"from_team_id"`
	ToTeamID   string `json:"to_team_id"`
	Price      int64  `json:"price"`
}

// TournamentData is the payload for tournament administration events.
type TournamentData struct {
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}
