package core

import (
	"cmp"
	"slices"
)

// TallyResult is the outcome of a plurality count.
type TallyResult[K cmp.Ordered] struct {
	Winner   K
	Votes    int
	Tied     []K
	TieBreak bool
}

// Tally picks the option with the most votes. When several options share the
// maximum one of them is drawn uniformly with r. ok is false for an empty
// count.
func Tally[K cmp.Ordered](counts map[K]int, r Rand) (result TallyResult[K], ok bool) {
	if len(counts) == 0 {
		return result, false
	}

	top := make([]K, 0, 1)
	maxVotes := 0
	for option, votes := range counts {
		switch {
		case len(top) == 0 || votes > maxVotes:
			maxVotes = votes
			top = append(top[:0], option)
		case votes == maxVotes:
			top = append(top, option)
		}
	}
	// map order is random, the draw must only depend on r
	slices.Sort(top)

	result.Votes = maxVotes
	result.Tied = top
	if len(top) == 1 {
		result.Winner = top[0]
		return result, true
	}
	result.TieBreak = true
	result.Winner = top[r.Intn(len(top))]
	return result, true
}

// MajorityThreshold is the number of yes votes needed to eliminate a nominee
// when eligible players may vote.
func MajorityThreshold(eligible int) int {
	return eligible/2 + 1
}

func Eliminated(yes, eligible int) bool {
	return yes >= MajorityThreshold(eligible)
}
