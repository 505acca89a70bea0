// Package bidding computes legal bid ceilings.
package bidding

// ReservedSlots is the number of team slots held by captain and
// vice-captain outside the biddable roster.
const ReservedSlots = 2

// SlotsLeft returns the number of biddable roster slots still open.
func SlotsLeft(rosterSize, teamSize int) int {
	return (teamSize - ReservedSlots) - rosterSize
}

// Reserve returns the budget a team must hold back to fill every open slot
// after the current one at the minimum price.
func Reserve(slotsLeft int, basePrice int64) int64 {
	if slotsLeft <= 1 {
		return 0
	}
	return int64(slotsLeft-1) * basePrice
}

// MaxBid returns the highest price a team may pay for the player on the
// block. It is zero when the roster is full or the remaining budget does
// not cover the reserve.
func MaxBid(budget, spent int64, rosterSize, teamSize int, basePrice int64) int64 {
	slots := SlotsLeft(rosterSize, teamSize)
	if slots <= 0 {
		return 0
	}
	return max(0, budget-spent-Reserve(slots, basePrice))
}
