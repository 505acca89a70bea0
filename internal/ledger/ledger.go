// Package ledger holds the per-tournament auction document: rosters, spend,
// sold prices, joker usage and pause state.
//
// The mutation methods keep the ledger's invariants only when their
// documented preconditions hold; callers validate first. CheckInvariants
// verifies a document independently of how it was produced.
package ledger

import (
	"slices"
	"time"

	"github.com/jensholdgaard/player-auction/internal/apperr"
)

// Status is the auction's position in the bidding cycle.
type Status string

const (
	StatusIdle   Status = "IDLE"
	StatusLive   Status = "LIVE"
	StatusSold   Status = "SOLD"
	StatusPaused Status = "PAUSED"
)

// DefaultPauseMessage is shown when PAUSE carries no message.
const DefaultPauseMessage = "Auction paused"

// Errors returned by ledger mutations.
var (
	ErrPlayerNotSold = apperr.BadRequest("PLAYER_NOT_SOLD", "player has not been sold")
	ErrNotInRoster   = apperr.BadRequest("PLAYER_NOT_IN_ROSTER", "player is not on the source team's roster")
	ErrSameTeam      = apperr.BadRequest("SAME_TEAM", "source and destination team are the same")
	ErrAlreadySold   = apperr.BadRequest("PLAYER_ALREADY_SOLD", "player has already been sold")
	ErrJokerUsed     = apperr.BadRequest("JOKER_ALREADY_USED", "team has already used its joker")
)

// State is the mutable auction document of one tournament.
type State struct {
	Status                Status              `json:"status"`
	CurrentPlayerID       string              `json:"currentPlayerId,omitempty"`
	SoldToTeamID          string              `json:"soldToTeamId,omitempty"`
	Rosters               map[string][]string `json:"rosters"`
	SoldPlayers           []string            `json:"soldPlayers"`
	SoldPrices            map[string]int64    `json:"soldPrices"`
	TeamSpent             map[string]int64    `json:"teamSpent"`
	UnsoldPlayers         []string            `json:"unsoldPlayers"`
	JokerPlayerID         string              `json:"jokerPlayerId,omitempty"`
	JokerRequestingTeamID string              `json:"jokerRequestingTeamId,omitempty"`
	UsedJokers            map[string]string   `json:"usedJokers"`
	PauseMessage          string              `json:"pauseMessage,omitempty"`
	PauseUntil            *time.Time          `json:"pauseUntil,omitempty"`
	AuctionStartTime      *time.Time          `json:"auctionStartTime,omitempty"`
	BiddingDurations      map[string]int64    `json:"biddingDurations"`
	LastUpdate            time.Time           `json:"lastUpdate"`
	Version               int64               `json:"version"`
}

// New returns an empty, idle ledger.
func New(now time.Time) *State {
	s := &State{Status: StatusIdle, LastUpdate: now}
	s.ensureMaps()
	return s
}

// Normalize fills nil collections, for documents decoded from storage.
func (s *State) Normalize() {
	if s.Status == "" {
		s.Status = StatusIdle
	}
	s.ensureMaps()
}

func (s *State) ensureMaps() {
	if s.Rosters == nil {
		s.Rosters = make(map[string][]string)
	}
	if s.SoldPlayers == nil {
		s.SoldPlayers = []string{}
	}
	if s.SoldPrices == nil {
		s.SoldPrices = make(map[string]int64)
	}
	if s.TeamSpent == nil {
		s.TeamSpent = make(map[string]int64)
	}
	if s.UnsoldPlayers == nil {
		s.UnsoldPlayers = []string{}
	}
	if s.UsedJokers == nil {
		s.UsedJokers = make(map[string]string)
	}
	if s.BiddingDurations == nil {
		s.BiddingDurations = make(map[string]int64)
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := *s
	out.Rosters = make(map[string][]string, len(s.Rosters))
	for t, r := range s.Rosters {
		out.Rosters[t] = slices.Clone(r)
	}
	out.SoldPlayers = slices.Clone(s.SoldPlayers)
	out.UnsoldPlayers = slices.Clone(s.UnsoldPlayers)
	out.SoldPrices = cloneMap(s.SoldPrices)
	out.TeamSpent = cloneMap(s.TeamSpent)
	out.UsedJokers = cloneMap(s.UsedJokers)
	out.BiddingDurations = cloneMap(s.BiddingDurations)
	if s.PauseUntil != nil {
		t := *s.PauseUntil
		out.PauseUntil = &t
	}
	if s.AuctionStartTime != nil {
		t := *s.AuctionStartTime
		out.AuctionStartTime = &t
	}
	out.ensureMaps()
	return &out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsSold reports whether playerID has been sold.
func (s *State) IsSold(playerID string) bool {
	return slices.Contains(s.SoldPlayers, playerID)
}

// IsUnsold reports whether playerID went unsold at least once and has not
// been sold since.
func (s *State) IsUnsold(playerID string) bool {
	return slices.Contains(s.UnsoldPlayers, playerID)
}

// RosterSize returns the number of bought players on teamID's roster.
func (s *State) RosterSize(teamID string) int {
	return len(s.Rosters[teamID])
}

// OwnerOf returns the team whose roster holds playerID.
func (s *State) OwnerOf(playerID string) (string, bool) {
	for t, r := range s.Rosters {
		if slices.Contains(r, playerID) {
			return t, true
		}
	}
	return "", false
}

// HasActivePlayer reports whether a player is on the block and unsold.
func (s *State) HasActivePlayer() bool {
	return s.CurrentPlayerID != "" && !s.IsSold(s.CurrentPlayerID)
}

// Start puts playerID on the block.
func (s *State) Start(playerID string, now time.Time) {
	s.Status = StatusLive
	s.CurrentPlayerID = playerID
	s.SoldToTeamID = ""
	s.clearJoker()
	s.clearPause()
	start := now
	s.AuctionStartTime = &start
}

// RecordSale assigns playerID to teamID at price. The player must not be
// sold yet.
func (s *State) RecordSale(teamID, playerID string, price int64, now time.Time) error {
	if s.IsSold(playerID) {
		return ErrAlreadySold
	}
	s.Rosters[teamID] = append(s.Rosters[teamID], playerID)
	s.SoldPlayers = append(s.SoldPlayers, playerID)
	s.SoldPrices[playerID] = price
	s.TeamSpent[teamID] += price
	s.UnsoldPlayers = slices.DeleteFunc(s.UnsoldPlayers, func(id string) bool { return id == playerID })
	if s.AuctionStartTime != nil && playerID == s.CurrentPlayerID {
		s.BiddingDurations[playerID] = max(0, int64(now.Sub(*s.AuctionStartTime).Seconds()))
	}
	s.SoldToTeamID = teamID
	s.Status = StatusSold
	s.clearJoker()
	return nil
}

// MarkUnsold records the active player as unsold and returns to idle. It
// reports false if no player was active.
func (s *State) MarkUnsold() bool {
	if !s.HasActivePlayer() {
		return false
	}
	if !s.IsUnsold(s.CurrentPlayerID) {
		s.UnsoldPlayers = append(s.UnsoldPlayers, s.CurrentPlayerID)
	}
	s.ClearActive()
	return true
}

// ClearActive resets the active-player fields and returns to idle, lifting
// any pause.
func (s *State) ClearActive() {
	s.Status = StatusIdle
	s.CurrentPlayerID = ""
	s.SoldToTeamID = ""
	s.AuctionStartTime = nil
	s.clearJoker()
	s.clearPause()
}

// Pause overlays the paused status. The active player is kept so that
// Resume can return to bidding.
func (s *State) Pause(message string, until *time.Time) {
	if message == "" {
		message = DefaultPauseMessage
	}
	s.Status = StatusPaused
	s.PauseMessage = message
	s.PauseUntil = until
	s.clearJoker()
}

// Resume lifts a pause. It reports false if the auction was not paused.
func (s *State) Resume() bool {
	if s.Status != StatusPaused {
		return false
	}
	s.clearPause()
	if s.HasActivePlayer() {
		s.Status = StatusLive
		return true
	}
	s.ClearActive()
	return true
}

// JokerUsedError reports that teamID already spent its joker on playerID.
// The labels are what the message shows; ids go into the details.
func JokerUsedError(teamID, playerID, teamLabel, playerLabel string) error {
	return apperr.BadRequest(ErrJokerUsed.Code, "%s has already used its joker on %s", teamLabel, playerLabel).
		WithDetails(map[string]any{"teamId": teamID, "playerId": playerID})
}

// ClaimJoker records teamID's pending joker claim on the active player.
func (s *State) ClaimJoker(teamID string) error {
	if used, ok := s.UsedJokers[teamID]; ok {
		return JokerUsedError(teamID, used, teamID, used)
	}
	s.JokerPlayerID = s.CurrentPlayerID
	s.JokerRequestingTeamID = teamID
	return nil
}

// ConsumeJoker marks teamID's joker as spent on playerID.
func (s *State) ConsumeJoker(teamID, playerID string) error {
	if used, ok := s.UsedJokers[teamID]; ok {
		return JokerUsedError(teamID, used, teamID, used)
	}
	s.UsedJokers[teamID] = playerID
	return nil
}

// Transfer moves a sold player between rosters along with its price.
func (s *State) Transfer(playerID, fromTeamID, toTeamID string) error {
	if !s.IsSold(playerID) {
		return ErrPlayerNotSold
	}
	if fromTeamID == toTeamID {
		return ErrSameTeam
	}
	idx := slices.Index(s.Rosters[fromTeamID], playerID)
	if idx < 0 {
		return ErrNotInRoster
	}
	price := s.SoldPrices[playerID]
	s.Rosters[fromTeamID] = slices.Delete(s.Rosters[fromTeamID], idx, idx+1)
	s.Rosters[toTeamID] = append(s.Rosters[toTeamID], playerID)
	s.TeamSpent[fromTeamID] -= price
	s.TeamSpent[toTeamID] += price
	if s.SoldToTeamID != "" && s.CurrentPlayerID == playerID {
		s.SoldToTeamID = toTeamID
	}
	return nil
}

// Touch stamps the document after a successful mutation.
func (s *State) Touch(now time.Time) {
	s.LastUpdate = now
}

func (s *State) clearJoker() {
	s.JokerPlayerID = ""
	s.JokerRequestingTeamID = ""
}

func (s *State) clearPause() {
	s.PauseMessage = ""
	s.PauseUntil = nil
}
