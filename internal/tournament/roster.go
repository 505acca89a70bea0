package tournament

// Roster indexes a tournament's teams and players by id.
type Roster struct {
	Teams   []Team
	Players []Player

	teams   map[string]*Team
	players map[string]*Player
	leaders map[string]string // player id -> team id for captains/vice-captains
}

// NewRoster builds the lookup tables for teams and players.
func NewRoster(teams []Team, players []Player) *Roster {
	r := &Roster{
		Teams:   teams,
		Players: players,
		teams:   make(map[string]*Team, len(teams)),
		players: make(map[string]*Player, len(players)),
		leaders: make(map[string]string),
	}
	for i := range r.Teams {
		t := &r.Teams[i]
		r.teams[t.ID] = t
		if t.CaptainID != "" {
			r.leaders[t.CaptainID] = t.ID
		}
		if t.ViceCaptainID != "" {
			r.leaders[t.ViceCaptainID] = t.ID
		}
	}
	for i := range r.Players {
		r.players[r.Players[i].ID] = &r.Players[i]
	}
	return r
}

// Team returns the team with the given id.
func (r *Roster) Team(id string) (*Team, bool) {
	t, ok := r.teams[id]
	return t, ok
}

// Player returns the player with the given id.
func (r *Roster) Player(id string) (*Player, bool) {
	p, ok := r.players[id]
	return p, ok
}

// LeaderOf returns the team for which playerID is captain or vice-captain.
func (r *Roster) LeaderOf(playerID string) (string, bool) {
	t, ok := r.leaders[playerID]
	return t, ok
}
