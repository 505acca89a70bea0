package auction

import (
	"math/rand/v2"
	"time"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/bidding"
	"github.com/jensholdgaard/player-auction/internal/event"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// Business-rule errors returned by Apply.
var (
	ErrPlayerNotFound       = apperr.NotFound("PLAYER_NOT_FOUND", "player not found")
	ErrTeamNotFound         = apperr.NotFound("TEAM_NOT_FOUND", "team not found")
	ErrPlayerIsLeader       = apperr.BadRequest("PLAYER_IS_TEAM_LEADER", "captains and vice-captains are not auctioned")
	ErrNoActivePlayer       = apperr.BadRequest("NO_ACTIVE_PLAYER", "no player is on the block")
	ErrPlayerNotActive      = apperr.BadRequest("PLAYER_NOT_ACTIVE", "player is not the one on the block")
	ErrAuctionPaused        = apperr.BadRequest("AUCTION_PAUSED", "auction is paused")
	ErrRosterFull           = apperr.BadRequest("ROSTER_FULL", "team roster is full")
	ErrBidTooLow            = apperr.BadRequest("BID_BELOW_BASE_PRICE", "sold price is below the base price")
	ErrBidTooHigh           = apperr.BadRequest("BID_ABOVE_MAX", "sold price exceeds the team's maximum bid")
	ErrJokerDisabled        = apperr.BadRequest("JOKER_DISABLED", "joker cards are disabled for this tournament")
	ErrJokerNotLive         = apperr.BadRequest("JOKER_REQUIRES_LIVE", "a joker can only be played while bidding is live")
	ErrNoPlayersAvailable   = apperr.BadRequest("NO_PLAYERS_AVAILABLE", "no players left to auction")
	ErrConfirmationRequired = apperr.BadRequest("CONFIRMATION_REQUIRED", "reset requires confirm=true")
)

// Picker returns a uniformly random index in [0, n).
type Picker func(n int) int

// Input is the context an action is applied in. State is the working copy
// and is modified in place.
type Input struct {
	State      *ledger.State
	Tournament *tournament.Tournament
	Roster     *tournament.Roster
	Now        time.Time
}

// Outcome describes what an applied action did.
type Outcome struct {
	// Changed is set when State must be persisted.
	Changed bool
	// Duplicate marks a SOLD for a player that was already sold.
	Duplicate bool
	// Picked is the RANDOM suggestion.
	Picked *tournament.Player
	// Event is the audit entry to record, if any.
	Event event.Type
	Data  any
}

// Machine applies actions to a ledger.
type Machine struct {
	pick Picker
}

// NewMachine returns a Machine. A nil picker uses math/rand/v2.
func NewMachine(pick Picker) *Machine {
	if pick == nil {
		pick = rand.IntN
	}
	return &Machine{pick: pick}
}

// Apply validates a against in and applies it. On error in.State is left
// in an unspecified state and must be discarded.
func (m *Machine) Apply(in Input, a Action) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	switch a := a.(type) {
	case StartAuction:
		out, err = m.start(in, a)
	case Sold:
		out, err = m.sold(in, a)
	case Unsold:
		out, err = m.unsold(in)
	case Pause:
		out, err = m.pause(in, a)
	case Unpause:
		out, err = m.unpause(in)
	case Clear:
		out, err = m.clear(in)
	case Reset:
		out, err = m.reset(in, a)
	case Joker:
		out, err = m.joker(in, a)
	case Correct:
		out, err = m.correct(in, a)
	case Random:
		out, err = m.random(in)
	case Verify:
		return Outcome{}, nil
	default:
		return Outcome{}, ErrUnknownAction
	}
	if err != nil {
		return Outcome{}, err
	}
	if out.Changed {
		in.State.Touch(in.Now)
	}
	return out, nil
}

func (m *Machine) start(in Input, a StartAuction) (Outcome, error) {
	if _, ok := in.Roster.Player(a.PlayerID); !ok {
		return Outcome{}, ErrPlayerNotFound.WithDetails(map[string]any{"playerId": a.PlayerID})
	}
	if in.State.IsSold(a.PlayerID) {
		return Outcome{}, ledger.ErrAlreadySold.WithDetails(map[string]any{"playerId": a.PlayerID})
	}
	if teamID, ok := in.Roster.LeaderOf(a.PlayerID); ok {
		return Outcome{}, ErrPlayerIsLeader.WithDetails(map[string]any{"playerId": a.PlayerID, "teamId": teamID})
	}

	in.State.Start(a.PlayerID, in.Now)
	return Outcome{
		Changed: true,
		Event:   event.AuctionStarted,
		Data:    event.StartedData{PlayerID: a.PlayerID},
	}, nil
}

func (m *Machine) sold(in Input, a Sold) (Outcome, error) {
	s := in.State
	playerID := a.PlayerID
	if playerID == "" {
		playerID = s.CurrentPlayerID
	}
	if playerID == "" {
		return Outcome{}, ErrNoActivePlayer
	}
	if s.IsSold(playerID) {
		return Outcome{Duplicate: true}, nil
	}
	if !s.HasActivePlayer() {
		return Outcome{}, ErrNoActivePlayer
	}
	if playerID != s.CurrentPlayerID {
		return Outcome{}, ErrPlayerNotActive.WithDetails(map[string]any{
			"playerId": playerID, "currentPlayerId": s.CurrentPlayerID,
		})
	}
	if s.Status == ledger.StatusPaused {
		return Outcome{}, ErrAuctionPaused
	}

	team, ok := in.Roster.Team(a.TeamID)
	if !ok {
		return Outcome{}, ErrTeamNotFound.WithDetails(map[string]any{"teamId": a.TeamID})
	}
	player, ok := in.Roster.Player(playerID)
	if !ok {
		return Outcome{}, ErrPlayerNotFound.WithDetails(map[string]any{"playerId": playerID})
	}

	settings := in.Tournament.Settings
	size := s.RosterSize(team.ID)
	if bidding.SlotsLeft(size, settings.TeamSize) <= 0 {
		return Outcome{}, ErrRosterFull.WithDetails(map[string]any{"teamId": team.ID})
	}

	base := settings.BasePrice(player.Category)
	joker := s.JokerRequestingTeamID == team.ID && s.JokerPlayerID == playerID && a.Price == base
	if joker {
		if err := s.ConsumeJoker(team.ID, playerID); err != nil {
			return Outcome{}, err
		}
	} else {
		if a.Price < base {
			return Outcome{}, ErrBidTooLow.WithDetails(map[string]any{"basePrice": base, "soldPrice": a.Price})
		}
		ceiling := bidding.MaxBid(team.Budget, s.TeamSpent[team.ID], size, settings.TeamSize, settings.BasePrice(tournament.CategoryBase))
		if a.Price > ceiling {
			return Outcome{}, ErrBidTooHigh.WithDetails(map[string]any{"maxBid": ceiling, "soldPrice": a.Price})
		}
	}

	if err := s.RecordSale(team.ID, playerID, a.Price, in.Now); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Changed: true,
		Event:   event.AuctionSold,
		Data: event.SoldData{
			PlayerID: playerID,
			TeamID:   team.ID,
			Price:    a.Price,
			Joker:    joker,
			Seconds:  s.BiddingDurations[playerID],
		},
	}, nil
}

func (m *Machine) unsold(in Input) (Outcome, error) {
	playerID := in.State.CurrentPlayerID
	if !in.State.MarkUnsold() {
		return Outcome{}, nil
	}
	return Outcome{
		Changed: true,
		Event:   event.AuctionUnsold,
		Data:    event.UnsoldData{PlayerID: playerID},
	}, nil
}

func (m *Machine) pause(in Input, a Pause) (Outcome, error) {
	if err := a.validate(); err != nil {
		return Outcome{}, err
	}
	var until *time.Time
	if a.DurationSeconds > 0 {
		t := in.Now.Add(time.Duration(a.DurationSeconds) * time.Second)
		until = &t
	}
	in.State.Pause(a.Message, until)
	return Outcome{
		Changed: true,
		Event:   event.AuctionPaused,
		Data:    event.PausedData{Message: in.State.PauseMessage, Until: until},
	}, nil
}

func (m *Machine) unpause(in Input) (Outcome, error) {
	if !in.State.Resume() {
		return Outcome{}, nil
	}
	return Outcome{Changed: true, Event: event.AuctionResumed}, nil
}

func (m *Machine) clear(in Input) (Outcome, error) {
	in.State.ClearActive()
	return Outcome{Changed: true, Event: event.AuctionCleared}, nil
}

func (m *Machine) reset(in Input, a Reset) (Outcome, error) {
	if !a.Confirm {
		return Outcome{}, ErrConfirmationRequired
	}
	version := in.State.Version
	*in.State = *ledger.New(in.Now)
	in.State.Version = version
	return Outcome{Changed: true, Event: event.AuctionReset}, nil
}

func (m *Machine) joker(in Input, a Joker) (Outcome, error) {
	if !in.Tournament.Settings.JokerEnabled {
		return Outcome{}, ErrJokerDisabled
	}
	team, ok := in.Roster.Team(a.TeamID)
	if !ok {
		return Outcome{}, ErrTeamNotFound.WithDetails(map[string]any{"teamId": a.TeamID})
	}
	if in.State.Status != ledger.StatusLive || !in.State.HasActivePlayer() {
		return Outcome{}, ErrJokerNotLive
	}
	if used, spent := in.State.UsedJokers[team.ID]; spent {
		name := used
		if p, ok := in.Roster.Player(used); ok {
			name = p.Name
		}
		return Outcome{}, ledger.JokerUsedError(team.ID, used, team.Name, name)
	}
	if err := in.State.ClaimJoker(a.TeamID); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Changed: true,
		Event:   event.AuctionJokerClaimed,
		Data:    event.JokerData{PlayerID: in.State.JokerPlayerID, TeamID: a.TeamID},
	}, nil
}

func (m *Machine) correct(in Input, a Correct) (Outcome, error) {
	if _, ok := in.Roster.Team(a.ToTeamID); !ok {
		return Outcome{}, ErrTeamNotFound.WithDetails(map[string]any{"teamId": a.ToTeamID})
	}
	if a.FromTeamID != a.ToTeamID && bidding.SlotsLeft(in.State.RosterSize(a.ToTeamID), in.Tournament.Settings.TeamSize) <= 0 {
		return Outcome{}, ErrRosterFull.WithDetails(map[string]any{"teamId": a.ToTeamID})
	}
	if err := in.State.Transfer(a.PlayerID, a.FromTeamID, a.ToTeamID); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Changed: true,
		Event:   event.AuctionCorrected,
		Data: event.CorrectedData{
			PlayerID:   a.PlayerID,
			FromTeamID: a.FromTeamID,
			ToTeamID:   a.ToTeamID,
			Price:      in.State.SoldPrices[a.PlayerID],
		},
	}, nil
}

// random suggests the next player: fresh APLUS players first, then fresh
// BASE players, then players that previously went unsold.
func (m *Machine) random(in Input) (Outcome, error) {
	s := in.State
	var premium, standard, retry []*tournament.Player
	for i := range in.Roster.Players {
		p := &in.Roster.Players[i]
		if s.IsSold(p.ID) {
			continue
		}
		if _, leader := in.Roster.LeaderOf(p.ID); leader {
			continue
		}
		if s.HasActivePlayer() && p.ID == s.CurrentPlayerID {
			continue
		}
		switch {
		case s.IsUnsold(p.ID):
			retry = append(retry, p)
		case p.Category == tournament.CategoryAPlus:
			premium = append(premium, p)
		case p.Category == tournament.CategoryBase:
			standard = append(standard, p)
		}
	}

	for _, tier := range [][]*tournament.Player{premium, standard, retry} {
		if len(tier) > 0 {
			return Outcome{Picked: tier[m.pick(len(tier))]}, nil
		}
	}
	return Outcome{}, ErrNoPlayersAvailable
}
