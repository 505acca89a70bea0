package tournament_test

import (
	"testing"

	"github.com/jensholdgaard/player-auction/internal/tournament"
)

func validFixture() (*tournament.Tournament, []tournament.Team, []tournament.Player) {
	t := &tournament.Tournament{
		Slug:   "summer-cup",
		Name:   "Summer Cup",
		Status: tournament.StatusDraft,
		Settings: tournament.Settings{
			TeamSize: 8,
			BasePrices: map[tournament.Category]int64{
				tournament.CategoryAPlus: 5000,
				tournament.CategoryBase:  1000,
			},
			BidIncrement: 500,
			Currency:     "INR",
		},
	}
	players := []tournament.Player{
		{ID: "c1", Name: "Cap", Role: tournament.RoleBatsman, Category: tournament.CategoryCaptain},
		{ID: "p1", Name: "One", Role: tournament.RoleBowler, Category: tournament.CategoryBase},
	}
	teams := []tournament.Team{{ID: "t1", Name: "Tigers", Budget: 50000, CaptainID: "c1"}}
	return t, teams, players
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*tournament.Tournament, *[]tournament.Team, *[]tournament.Player)
		wantErr bool
	}{
		{name: "valid", mutate: func(*tournament.Tournament, *[]tournament.Team, *[]tournament.Player) {}},
		{name: "bad slug", mutate: func(tr *tournament.Tournament, _ *[]tournament.Team, _ *[]tournament.Player) { tr.Slug = "Bad Slug" }, wantErr: true},
		{name: "missing name", mutate: func(tr *tournament.Tournament, _ *[]tournament.Team, _ *[]tournament.Player) { tr.Name = "" }, wantErr: true},
		{name: "unknown status", mutate: func(tr *tournament.Tournament, _ *[]tournament.Team, _ *[]tournament.Player) { tr.Status = "paused" }, wantErr: true},
		{name: "team too small", mutate: func(tr *tournament.Tournament, _ *[]tournament.Team, _ *[]tournament.Player) { tr.Settings.TeamSize = 2 }, wantErr: true},
		{name: "missing base price", mutate: func(tr *tournament.Tournament, _ *[]tournament.Team, _ *[]tournament.Player) {
			delete(tr.Settings.BasePrices, tournament.CategoryBase)
		}, wantErr: true},
		{name: "duplicate player", mutate: func(_ *tournament.Tournament, _ *[]tournament.Team, ps *[]tournament.Player) {
			*ps = append(*ps, tournament.Player{ID: "p1"})
		}, wantErr: true},
		{name: "duplicate team", mutate: func(_ *tournament.Tournament, ts *[]tournament.Team, _ *[]tournament.Player) {
			*ts = append(*ts, tournament.Team{ID: "t1", Budget: 1})
		}, wantErr: true},
		{name: "unknown captain", mutate: func(_ *tournament.Tournament, ts *[]tournament.Team, _ *[]tournament.Player) {
			(*ts)[0].CaptainID = "ghost"
		}, wantErr: true},
		{name: "zero budget", mutate: func(_ *tournament.Tournament, ts *[]tournament.Team, _ *[]tournament.Player) {
			(*ts)[0].Budget = 0
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, teams, players := validFixture()
			tt.mutate(tr, &teams, &players)
			err := tournament.Validate(tr, teams, players)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_BasePrice(t *testing.T) {
	s := tournament.Settings{BasePrices: map[tournament.Category]int64{
		tournament.CategoryAPlus: 5000,
		tournament.CategoryBase:  1000,
	}}
	if got := s.BasePrice(tournament.CategoryAPlus); got != 5000 {
		t.Errorf("BasePrice(APLUS) = %d, want 5000", got)
	}
	if got := s.BasePrice(tournament.CategoryCaptain); got != 1000 {
		t.Errorf("BasePrice(CAPTAIN) = %d, want fallback 1000", got)
	}
}

func TestRoster_Lookups(t *testing.T) {
	_, teams, players := validFixture()
	r := tournament.NewRoster(teams, players)

	if _, ok := r.Team("t1"); !ok {
		t.Error("expected team t1")
	}
	if p, ok := r.Player("p1"); !ok || p.Name != "One" {
		t.Errorf("Player(p1) = %+v, %v", p, ok)
	}
	if team, ok := r.LeaderOf("c1"); !ok || team != "t1" {
		t.Errorf("LeaderOf(c1) = %q, %v; want t1", team, ok)
	}
	if _, ok := r.LeaderOf("p1"); ok {
		t.Error("p1 is not a captain")
	}
}

func TestTournament_PublicStripsSecrets(t *testing.T) {
	tr := tournament.Tournament{Slug: "x", PINHash: "h", RecoveryTokenHash: "r"}
	pub := tr.Public()
	if pub.PINHash != "" || pub.RecoveryTokenHash != "" {
		t.Errorf("Public() leaked credentials: %+v", pub)
	}
	if tr.PINHash != "h" {
		t.Error("Public() must not mutate the receiver")
	}
}
