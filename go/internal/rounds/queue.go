package rounds

import (
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Setting names accepted by ToggleSetting.
const (
	SettingAutoAdvance      = "autoAdvance"
	SettingShowRoundHistory = "showRoundHistory"
	SettingShowUpcoming     = "showUpcoming"
)

// UpdateSettings replaces the round settings.
func (s *Sequencer) UpdateSettings(settings models.RoundSettings) bool {
	if settings.DefaultTimeLimit != nil && *settings.DefaultTimeLimit <= 0 {
		return false
	}
	return s.store.Update("settings.update", func(st *models.ScoreboardState) bool {
		st.Rounds.Settings = settings
		if settings.DefaultTimeLimit != nil {
			limit := *settings.DefaultTimeLimit
			st.Rounds.Settings.DefaultTimeLimit = &limit
		}
		return true
	})
}

// ToggleSetting flips one boolean round setting.
func (s *Sequencer) ToggleSetting(name string) bool {
	return s.store.Update("settings.toggle", func(st *models.ScoreboardState) bool {
		switch name {
		case SettingAutoAdvance:
			st.Rounds.Settings.AutoAdvance = !st.Rounds.Settings.AutoAdvance
		case SettingShowRoundHistory:
			st.Rounds.Settings.ShowRoundHistory = !st.Rounds.Settings.ShowRoundHistory
		case SettingShowUpcoming:
			st.Rounds.Settings.ShowUpcoming = !st.Rounds.Settings.ShowUpcoming
		default:
			log.Warn().Str("setting", name).Msg("unknown round setting")
			return false
		}
		return true
	})
}

// SetNextRoundDraft stages c as the single draft round. The number is
// reassigned when the draft is promoted.
func (s *Sequencer) SetNextRoundDraft(c models.RoundConfig) bool {
	return s.store.Update("draft.set", func(st *models.ScoreboardState) bool {
		draft := c.Clone()
		if draft.Number < 1 {
			draft.Number = nextNumber(st)
		}
		if !ValidRoundConfig(draft) {
			return false
		}
		st.Rounds.NextRoundDraft = &draft
		return true
	})
}

// ClearNextRoundDraft drops the draft.
func (s *Sequencer) ClearNextRoundDraft() bool {
	return s.store.Update("draft.clear", func(st *models.ScoreboardState) bool {
		if st.Rounds.NextRoundDraft == nil {
			return false
		}
		st.Rounds.NextRoundDraft = nil
		return true
	})
}

// EnqueueRound appends c to the upcoming queue.
func (s *Sequencer) EnqueueRound(c models.RoundConfig) bool {
	return s.store.Update("upcoming.enqueue", func(st *models.ScoreboardState) bool {
		queued := c.Clone()
		if queued.Number < 1 {
			queued.Number = nextNumber(st) + len(st.Rounds.Upcoming)
		}
		if !ValidRoundConfig(queued) {
			return false
		}
		st.Rounds.Upcoming = append(st.Rounds.Upcoming, queued)
		return true
	})
}

// RemoveUpcoming removes the queued round at index.
func (s *Sequencer) RemoveUpcoming(index int) bool {
	return s.store.Update("upcoming.remove", func(st *models.ScoreboardState) bool {
		q := st.Rounds.Upcoming
		if index < 0 || index >= len(q) {
			return false
		}
		st.Rounds.Upcoming = append(q[:index:index], q[index+1:]...)
		return true
	})
}

// ReorderUpcoming moves the queued round at from to position to.
func (s *Sequencer) ReorderUpcoming(from, to int) bool {
	return s.store.Update("upcoming.reorder", func(st *models.ScoreboardState) bool {
		q := st.Rounds.Upcoming
		if from < 0 || from >= len(q) || to < 0 || to >= len(q) || from == to {
			return false
		}
		moved := q[from]
		rest := append(q[:from:from], q[from+1:]...)
		out := make([]models.RoundConfig, 0, len(q))
		out = append(out, rest[:to]...)
		out = append(out, moved)
		out = append(out, rest[to:]...)
		st.Rounds.Upcoming = out
		return true
	})
}

// ClearUpcoming empties the upcoming queue.
func (s *Sequencer) ClearUpcoming() bool {
	return s.store.Update("upcoming.clear", func(st *models.ScoreboardState) bool {
		if len(st.Rounds.Upcoming) == 0 {
			return false
		}
		st.Rounds.Upcoming = []models.RoundConfig{}
		return true
	})
}
