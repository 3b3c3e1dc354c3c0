// Package ledger owns team identity, scores and penalties, for the shared
// board and for the multi-match ledger.
package ledger

import (
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ScoreAction is a manual score change.
type ScoreAction string

const (
	ScoreIncrement ScoreAction = "increment"
	ScoreDecrement ScoreAction = "decrement"
)

// StateStore is what the ledger needs from the state store
type StateStore interface {
	Get() models.ScoreboardState
	Update(op string, fn func(*models.ScoreboardState) bool) bool
}

// Ledger applies team, score and penalty changes to the board
type Ledger struct {
	store StateStore
}

// NewLedger creates a board ledger
func NewLedger(store StateStore) *Ledger {
	return &Ledger{store: store}
}

// UpdateTeam merges the set fields of u into the team.
func (l *Ledger) UpdateTeam(teamID models.TeamID, u models.TeamUpdate) bool {
	if !teamID.Valid() {
		return false
	}
	return l.store.Update("team.update", func(st *models.ScoreboardState) bool {
		team := st.Team(teamID)
		if u.Name != nil {
			team.Name = *u.Name
		}
		if u.Color != nil {
			team.Color = *u.Color
		}
		return true
	})
}

// UpdateScore changes a score by one. Only manual scoring mode allows it;
// in round mode scores change when rounds complete. Decrement floors at 0.
func (l *Ledger) UpdateScore(teamID models.TeamID, action ScoreAction) bool {
	if !teamID.Valid() || (action != ScoreIncrement && action != ScoreDecrement) {
		return false
	}
	return l.store.Update("score.update", func(st *models.ScoreboardState) bool {
		if st.ScoringMode != models.ScoringModeManual {
			log.Warn().
				Str("team_id", string(teamID)).
				Str("scoring_mode", string(st.ScoringMode)).
				Msg("ignoring manual score change outside manual scoring mode")
			return false
		}
		team := st.Team(teamID)
		if action == ScoreIncrement {
			team.Score++
		} else {
			team.Score = max(0, team.Score-1)
		}
		return true
	})
}

// SetScore sets a team score to an absolute value, regardless of scoring mode.
func (l *Ledger) SetScore(teamID models.TeamID, score int) bool {
	if !teamID.Valid() || score < 0 {
		return false
	}
	return l.store.Update("score.set", func(st *models.ScoreboardState) bool {
		st.Team(teamID).Score = score
		return true
	})
}

// ResetScores zeroes both scores.
func (l *Ledger) ResetScores() bool {
	return l.store.Update("score.reset", func(st *models.ScoreboardState) bool {
		st.Team1.Score = 0
		st.Team2.Score = 0
		return true
	})
}

// UpdatePenalty adds one penalty of the given kind.
func (l *Ledger) UpdatePenalty(teamID models.TeamID, kind models.PenaltyKind) bool {
	if !teamID.Valid() || !kind.Valid() {
		return false
	}
	return l.store.Update("penalty.add", func(st *models.ScoreboardState) bool {
		team := st.Team(teamID)
		if kind == models.PenaltyMajor {
			team.Penalties.Major++
		} else {
			team.Penalties.Minor++
		}
		return true
	})
}

// ResetPenalties zeroes both penalty counters of a team.
func (l *Ledger) ResetPenalties(teamID models.TeamID) bool {
	if !teamID.Valid() {
		return false
	}
	return l.store.Update("penalty.reset", func(st *models.ScoreboardState) bool {
		st.Team(teamID).Penalties = models.Penalties{}
		return true
	})
}

// SetScoringMode switches between round and manual scoring.
func (l *Ledger) SetScoringMode(mode models.ScoringMode) bool {
	if !mode.Valid() {
		return false
	}
	return l.store.Update("scoring.mode", func(st *models.ScoreboardState) bool {
		st.ScoringMode = mode
		return true
	})
}
