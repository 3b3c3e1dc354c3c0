package store

import (
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
)

// StatePatch is a partial snapshot sent by a control surface. Nested team
// and round fields merge into the existing values instead of replacing the
// whole sub-object, so siblings that are not mentioned survive.
type StatePatch struct {
	Team1       *TeamPatch          `json:"team1,omitempty"`
	Team2       *TeamPatch          `json:"team2,omitempty"`
	Rounds      *RoundsPatch        `json:"rounds,omitempty"`
	Timer       *models.TimerState  `json:"timer,omitempty"`
	Display     *models.Display     `json:"display,omitempty"`
	ScoringMode *models.ScoringMode `json:"scoringMode,omitempty"`
}

// TeamPatch is a partial team
type TeamPatch struct {
	Name      *string         `json:"name,omitempty"`
	Color     *string         `json:"color,omitempty"`
	Score     *int            `json:"score,omitempty"`
	Penalties *PenaltiesPatch `json:"penalties,omitempty"`
}

// PenaltiesPatch is a partial penalty counter pair
type PenaltiesPatch struct {
	Major *int `json:"major,omitempty"`
	Minor *int `json:"minor,omitempty"`
}

// RoundsPatch is a partial round state. History and templates are not
// patchable; they only change through the round sequencer.
type RoundsPatch struct {
	Current         *models.RoundConfig   `json:"current,omitempty"`
	IsBetweenRounds *bool                 `json:"isBetweenRounds,omitempty"`
	Settings        *SettingsPatch        `json:"settings,omitempty"`
	GameStatus      *models.GameStatus    `json:"gameStatus,omitempty"`
	NextRoundDraft  *models.RoundConfig   `json:"nextRoundDraft,omitempty"`
	Upcoming        *[]models.RoundConfig `json:"upcoming,omitempty"`
}

// SettingsPatch is a partial round settings value
type SettingsPatch struct {
	AutoAdvance      *bool `json:"autoAdvance,omitempty"`
	ShowRoundHistory *bool `json:"showRoundHistory,omitempty"`
	ShowUpcoming     *bool `json:"showUpcoming,omitempty"`
	DefaultTimeLimit *int  `json:"defaultTimeLimit,omitempty"`
}

// Empty reports whether the patch carries no field at all.
func (p StatePatch) Empty() bool {
	return p.Team1 == nil && p.Team2 == nil && p.Rounds == nil &&
		p.Timer == nil && p.Display == nil && p.ScoringMode == nil
}

// Patch deep-merges p into the snapshot. It returns false for an empty patch
// or when the merged snapshot would break a board invariant.
func (s *Store) Patch(p StatePatch) bool {
	if p.Empty() {
		return false
	}
	now := s.clock.Now()
	return s.Update("patch", func(st *models.ScoreboardState) bool {
		return MergePatch(st, p, now)
	})
}

// MergePatch applies p onto st in place. A started timer without a start
// instant is stamped with now. It returns false, possibly leaving st half
// merged, when p carries an unknown enum value, an unplayable current round
// or would leave the board in a round without a playable config.
func MergePatch(st *models.ScoreboardState, p StatePatch, now time.Time) bool {
	if p.ScoringMode != nil && !p.ScoringMode.Valid() {
		return false
	}
	if p.Team1 != nil {
		mergeTeam(&st.Team1, *p.Team1)
	}
	if p.Team2 != nil {
		mergeTeam(&st.Team2, *p.Team2)
	}
	if p.Rounds != nil && !mergeRounds(&st.Rounds, *p.Rounds) {
		return false
	}
	if p.Timer != nil && !mergeTimer(&st.Timer, *p.Timer, now) {
		return false
	}
	if p.Display != nil {
		st.Display = *p.Display
	}
	if p.ScoringMode != nil {
		st.ScoringMode = *p.ScoringMode
	}
	return true
}

func mergeTimer(t *models.TimerState, p models.TimerState, now time.Time) bool {
	if !p.Status.Valid() || p.DurationSec < 0 || p.RemainingSec < 0 {
		return false
	}
	*t = p.Clone()
	switch {
	case t.Status != models.TimerStarted:
		t.StartedAt = nil
	case t.StartedAt == nil:
		ms := now.UnixMilli()
		t.StartedAt = &ms
	}
	return true
}

func mergeTeam(t *models.Team, p TeamPatch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Score != nil {
		t.Score = max(0, *p.Score)
	}
	if p.Penalties != nil {
		if p.Penalties.Major != nil {
			t.Penalties.Major = max(0, *p.Penalties.Major)
		}
		if p.Penalties.Minor != nil {
			t.Penalties.Minor = max(0, *p.Penalties.Minor)
		}
	}
}

func mergeRounds(r *models.RoundState, p RoundsPatch) bool {
	if p.Current != nil && len(p.Current.Problems()) > 0 {
		return false
	}
	if p.GameStatus != nil && !p.GameStatus.Valid() {
		return false
	}
	if p.Current != nil {
		r.Current = p.Current.Clone()
		r.IsBetweenRounds = false
	}
	if p.IsBetweenRounds != nil {
		r.IsBetweenRounds = *p.IsBetweenRounds
		if r.IsBetweenRounds {
			r.Current = models.PlaceholderRound()
		}
	}
	if p.Settings != nil {
		if p.Settings.AutoAdvance != nil {
			r.Settings.AutoAdvance = *p.Settings.AutoAdvance
		}
		if p.Settings.ShowRoundHistory != nil {
			r.Settings.ShowRoundHistory = *p.Settings.ShowRoundHistory
		}
		if p.Settings.ShowUpcoming != nil {
			r.Settings.ShowUpcoming = *p.Settings.ShowUpcoming
		}
		if p.Settings.DefaultTimeLimit != nil {
			v := *p.Settings.DefaultTimeLimit
			r.Settings.DefaultTimeLimit = &v
		}
	}
	if p.GameStatus != nil {
		r.GameStatus = *p.GameStatus
	}
	if p.NextRoundDraft != nil {
		d := p.NextRoundDraft.Clone()
		r.NextRoundDraft = &d
	}
	if p.Upcoming != nil {
		r.Upcoming = make([]models.RoundConfig, len(*p.Upcoming))
		for i, c := range *p.Upcoming {
			r.Upcoming[i] = c.Clone()
		}
	}
	// leaving the between-rounds state needs a real round to play
	return r.IsBetweenRounds || len(r.Current.Problems()) == 0
}
