package rounds

import (
	"github.com/mcdev12/improvscore/go/internal/models"
)

// CheckRoundConfig lists what is wrong with a round config. An empty result
// means the config can become the current round.
func CheckRoundConfig(c models.RoundConfig) []string {
	return c.Problems()
}

// ValidRoundConfig reports whether c passes CheckRoundConfig.
func ValidRoundConfig(c models.RoundConfig) bool {
	return len(CheckRoundConfig(c)) == 0
}

// nextNumber is the number the next played round gets. It follows the
// history length, not whatever number a queued or templated config carries.
func nextNumber(st *models.ScoreboardState) int {
	return len(st.Rounds.History) + 1
}

// numbered returns a copy of c renumbered as the next round.
func numbered(st *models.ScoreboardState, c models.RoundConfig) models.RoundConfig {
	out := c.Clone()
	out.Number = nextNumber(st)
	return out
}

// setCurrent makes c the round in progress.
func setCurrent(st *models.ScoreboardState, c models.RoundConfig) {
	st.Rounds.Current = c
	st.Rounds.IsBetweenRounds = false
}

// setBetweenRounds parks the board on the placeholder round.
func setBetweenRounds(st *models.ScoreboardState) {
	st.Rounds.Current = models.PlaceholderRound()
	st.Rounds.IsBetweenRounds = true
}

// promoteNext moves the next staged round into current. The upcoming queue
// wins over the draft; an invalid queue head is left in place and the draft
// is tried instead. It returns false when nothing could be promoted.
func promoteNext(st *models.ScoreboardState) bool {
	if len(st.Rounds.Upcoming) > 0 {
		head := numbered(st, st.Rounds.Upcoming[0])
		if ValidRoundConfig(st.Rounds.Upcoming[0]) && ValidRoundConfig(head) {
			st.Rounds.Upcoming = st.Rounds.Upcoming[1:]
			setCurrent(st, head)
			return true
		}
	}
	if d := st.Rounds.NextRoundDraft; d != nil && ValidRoundConfig(*d) {
		setCurrent(st, numbered(st, *d))
		st.Rounds.NextRoundDraft = nil
		return true
	}
	return false
}
