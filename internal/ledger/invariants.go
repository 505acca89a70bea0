package ledger

import (
	"errors"
	"fmt"

	"github.com/jensholdgaard/player-auction/internal/tournament"
)

// ErrInvariant is wrapped by every CheckInvariants failure.
var ErrInvariant = errors.New("ledger invariant violated")

// CheckInvariants verifies the structural rules every persisted document
// must satisfy.
func CheckInvariants(s *State, settings tournament.Settings, roster *tournament.Roster) error {
	owners := make(map[string]string)
	for teamID, players := range s.Rosters {
		if len(players) > settings.RosterSlots() {
			return fmt.Errorf("%w: team %s has %d players, limit %d",
				ErrInvariant, teamID, len(players), settings.RosterSlots())
		}
		var sum int64
		for _, p := range players {
			if prev, dup := owners[p]; dup {
				return fmt.Errorf("%w: player %s on rosters of %s and %s", ErrInvariant, p, prev, teamID)
			}
			owners[p] = teamID
			sum += s.SoldPrices[p]
		}
		if sum != s.TeamSpent[teamID] {
			return fmt.Errorf("%w: team %s spent %d, rostered prices sum to %d",
				ErrInvariant, teamID, s.TeamSpent[teamID], sum)
		}
	}
	for teamID, spent := range s.TeamSpent {
		if _, ok := s.Rosters[teamID]; !ok && spent != 0 {
			return fmt.Errorf("%w: team %s spent %d with no roster", ErrInvariant, teamID, spent)
		}
	}

	sold := make(map[string]struct{}, len(s.SoldPlayers))
	for _, p := range s.SoldPlayers {
		if _, dup := sold[p]; dup {
			return fmt.Errorf("%w: player %s listed as sold twice", ErrInvariant, p)
		}
		sold[p] = struct{}{}
		if _, ok := owners[p]; !ok {
			return fmt.Errorf("%w: sold player %s is on no roster", ErrInvariant, p)
		}
	}
	for p := range owners {
		if _, ok := sold[p]; !ok {
			return fmt.Errorf("%w: rostered player %s is not marked sold", ErrInvariant, p)
		}
	}
	for _, p := range s.UnsoldPlayers {
		if _, ok := sold[p]; ok {
			return fmt.Errorf("%w: player %s is both sold and unsold", ErrInvariant, p)
		}
	}

	for teamID, p := range s.UsedJokers {
		price, ok := s.SoldPrices[p]
		if !ok {
			return fmt.Errorf("%w: team %s joker used on unsold player %s", ErrInvariant, teamID, p)
		}
		if roster != nil {
			if pl, found := roster.Player(p); found {
				if base := settings.BasePrice(pl.Category); price != base {
					return fmt.Errorf("%w: joker sale of %s at %d, base price %d", ErrInvariant, p, price, base)
				}
			}
		}
	}

	if s.JokerPlayerID != "" && s.Status != StatusLive {
		return fmt.Errorf("%w: joker claim pending while %s", ErrInvariant, s.Status)
	}
	return nil
}
