package auction

import (
	"github.com/jensholdgaard/player-auction/internal/bidding"
	"github.com/jensholdgaard/player-auction/internal/ledger"
	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// RosterEntry is a bought player with the price paid.
type RosterEntry struct {
	tournament.Player
	Price int64 `json:"price"`
}

// TeamView is a team's standing derived from the ledger.
type TeamView struct {
	tournament.Team
	Captain     *tournament.Player `json:"captain,omitempty"`
	ViceCaptain *tournament.Player `json:"viceCaptain,omitempty"`
	Roster      []RosterEntry      `json:"roster"`
	Spent       int64              `json:"spent"`
	Remaining   int64              `json:"remaining"`
	SlotsNeeded int                `json:"slotsNeeded"`
	MaxBid      int64              `json:"maxBid"`
	JokerUsedOn string             `json:"jokerUsedOn,omitempty"`
}

// Remaining counts players still available for auction.
type Remaining struct {
	Total      int                         `json:"total"`
	ByRole     map[tournament.Role]int     `json:"byRole"`
	ByCategory map[tournament.Category]int `json:"byCategory"`
}

// View is the read model served to displays and admins.
type View struct {
	Status           ledger.Status      `json:"status"`
	CurrentPlayer    *tournament.Player `json:"currentPlayer,omitempty"`
	CurrentBasePrice int64              `json:"currentBasePrice,omitempty"`
	SoldTo           *tournament.Team   `json:"soldTo,omitempty"`
	SoldPrice        int64              `json:"soldPrice,omitempty"`
	Teams            []TeamView         `json:"teams"`
	Remaining        Remaining          `json:"remaining"`
	SoldCount        int                `json:"soldCount"`
	UnsoldCount      int                `json:"unsoldCount"`
}

// BuildView projects s over the static roster.
func BuildView(t *tournament.Tournament, r *tournament.Roster, s *ledger.State) View {
	settings := t.Settings
	v := View{
		Status:      s.Status,
		Teams:       make([]TeamView, 0, len(r.Teams)),
		SoldCount:   len(s.SoldPlayers),
		UnsoldCount: len(s.UnsoldPlayers),
		Remaining: Remaining{
			ByRole:     make(map[tournament.Role]int, len(tournament.Roles)),
			ByCategory: make(map[tournament.Category]int),
		},
	}

	if p, ok := r.Player(s.CurrentPlayerID); ok {
		v.CurrentPlayer = p
		v.CurrentBasePrice = settings.BasePrice(p.Category)
		if tm, ok := r.Team(s.SoldToTeamID); ok {
			v.SoldTo = tm
			v.SoldPrice = s.SoldPrices[p.ID]
		}
	}

	for _, tm := range r.Teams {
		spent := s.TeamSpent[tm.ID]
		size := s.RosterSize(tm.ID)
		tv := TeamView{
			Team:        tm,
			Roster:      make([]RosterEntry, 0, size),
			Spent:       spent,
			Remaining:   tm.Budget - spent,
			SlotsNeeded: max(0, bidding.SlotsLeft(size, settings.TeamSize)),
			MaxBid:      bidding.MaxBid(tm.Budget, spent, size, settings.TeamSize, settings.BasePrice(tournament.CategoryBase)),
			JokerUsedOn: s.UsedJokers[tm.ID],
		}
		if p, ok := r.Player(tm.CaptainID); ok {
			tv.Captain = p
		}
		if p, ok := r.Player(tm.ViceCaptainID); ok {
			tv.ViceCaptain = p
		}
		for _, id := range s.Rosters[tm.ID] {
			entry := RosterEntry{Player: tournament.Player{ID: id}, Price: s.SoldPrices[id]}
			if p, ok := r.Player(id); ok {
				entry.Player = *p
			}
			tv.Roster = append(tv.Roster, entry)
		}
		v.Teams = append(v.Teams, tv)
	}

	for _, p := range r.Players {
		if s.IsSold(p.ID) {
			continue
		}
		if _, leader := r.LeaderOf(p.ID); leader {
			continue
		}
		v.Remaining.Total++
		v.Remaining.ByRole[p.Role]++
		v.Remaining.ByCategory[p.Category]++
	}
	return v
}
