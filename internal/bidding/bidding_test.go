package bidding_test

import (
	"testing"

	"github.com/jensholdgaard/player-auction/internal/bidding"
)

func TestMaxBid(t *testing.T) {
	tests := []struct {
		name       string
		budget     int64
		spent      int64
		rosterSize int
		teamSize   int
		base       int64
		want       int64
	}{
		// Three on the team counting captain and vice-captain leaves five
		// slots including this one, so 4×1000 is reserved.
		{"three on team", 50000, 10000, 1, 8, 1000, 36000},
		{"three bought", 50000, 10000, 3, 8, 1000, 38000},
		{"empty roster", 50000, 0, 0, 8, 1000, 45000},
		{"last slot keeps no reserve", 50000, 45000, 5, 8, 1000, 5000},
		{"roster full", 50000, 0, 6, 8, 1000, 0},
		{"roster overfull", 50000, 0, 7, 8, 1000, 0},
		{"reserve exceeds remaining", 5000, 2000, 0, 8, 1000, 0},
		{"budget exhausted", 50000, 50000, 0, 8, 1000, 0},
		{"minimal team", 1000, 0, 0, 3, 1000, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bidding.MaxBid(tt.budget, tt.spent, tt.rosterSize, tt.teamSize, tt.base)
			if got != tt.want {
				t.Errorf("MaxBid() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMaxBid_NonIncreasingInSpent(t *testing.T) {
	for teamSize := 3; teamSize <= 12; teamSize++ {
		for roster := 0; roster <= teamSize; roster++ {
			prev := bidding.MaxBid(60000, 0, roster, teamSize, 1000)
			for spent := int64(500); spent <= 60000; spent += 500 {
				got := bidding.MaxBid(60000, spent, roster, teamSize, 1000)
				if got > prev {
					t.Fatalf("teamSize=%d roster=%d: MaxBid rose from %d to %d at spent=%d",
						teamSize, roster, prev, got, spent)
				}
				prev = got
			}
		}
	}
}

func TestMaxBid_NonDecreasingInBudget(t *testing.T) {
	for teamSize := 3; teamSize <= 12; teamSize++ {
		for roster := 0; roster <= teamSize; roster++ {
			prev := bidding.MaxBid(0, 0, roster, teamSize, 750)
			for budget := int64(250); budget <= 40000; budget += 250 {
				got := bidding.MaxBid(budget, 0, roster, teamSize, 750)
				if got < prev {
					t.Fatalf("teamSize=%d roster=%d: MaxBid fell from %d to %d at budget=%d",
						teamSize, roster, prev, got, budget)
				}
				prev = got
			}
		}
	}
}

func TestMaxBid_NeverNegative(t *testing.T) {
	for roster := 0; roster < 10; roster++ {
		for spent := int64(0); spent <= 20000; spent += 1000 {
			if got := bidding.MaxBid(10000, spent, roster, 10, 2000); got < 0 {
				t.Fatalf("MaxBid(10000, %d, %d, 10, 2000) = %d", spent, roster, got)
			}
		}
	}
}

func TestMaxBid_FullySpentIsZero(t *testing.T) {
	for teamSize := 3; teamSize <= 10; teamSize++ {
		for roster := 0; roster <= teamSize-2; roster++ {
			// With the whole budget spent the ceiling is zero whether or not slots remain.
			if got := bidding.MaxBid(30000, 30000, roster, teamSize, 1000); got != 0 {
				t.Errorf("teamSize=%d roster=%d: MaxBid = %d, want 0", teamSize, roster, got)
			}
		}
	}
	// A full roster is zero even with budget to spare.
	if got := bidding.MaxBid(30000, 0, 6, 8, 1000); got != 0 {
		t.Errorf("full roster: MaxBid = %d, want 0", got)
	}
}

func TestSlotsLeftAndReserve(t *testing.T) {
	if got := bidding.SlotsLeft(3, 8); got != 3 {
		t.Errorf("SlotsLeft(3, 8) = %d, want 3", got)
	}
	if got := bidding.Reserve(3, 1000); got != 2000 {
		t.Errorf("Reserve(3, 1000) = %d, want 2000", got)
	}
	if got := bidding.Reserve(0, 1000); got != 0 {
		t.Errorf("Reserve(0, 1000) = %d, want 0", got)
	}
}
