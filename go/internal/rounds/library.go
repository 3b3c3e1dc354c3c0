package rounds

import (
	"github.com/google/uuid"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SaveTemplate stores c under name for later reuse.
func (s *Sequencer) SaveTemplate(name string, c models.RoundConfig) *models.RoundTemplate {
	if name == "" {
		return nil
	}
	tpl := models.RoundTemplate{
		ID:        uuid.New().String(),
		Name:      name,
		Config:    c.Clone(),
		CreatedAt: s.clock.Now(),
	}
	if !s.store.Update("template.save", func(st *models.ScoreboardState) bool {
		st.Rounds.Templates = append(st.Rounds.Templates, tpl)
		return true
	}) {
		return nil
	}
	out := tpl
	out.Config = tpl.Config.Clone()
	return &out
}

// UpdateTemplate renames a template and/or replaces its config.
func (s *Sequencer) UpdateTemplate(id string, name *string, c *models.RoundConfig) bool {
	if name == nil && c == nil {
		return false
	}
	return s.store.Update("template.update", func(st *models.ScoreboardState) bool {
		for i := range st.Rounds.Templates {
			tpl := &st.Rounds.Templates[i]
			if tpl.ID != id {
				continue
			}
			if name != nil {
				tpl.Name = *name
			}
			if c != nil {
				tpl.Config = c.Clone()
			}
			return true
		}
		return false
	})
}

// DeleteTemplate removes a template.
func (s *Sequencer) DeleteTemplate(id string) bool {
	return s.store.Update("template.delete", func(st *models.ScoreboardState) bool {
		for i, tpl := range st.Rounds.Templates {
			if tpl.ID == id {
				st.Rounds.Templates = append(st.Rounds.Templates[:i:i], st.Rounds.Templates[i+1:]...)
				return true
			}
		}
		return false
	})
}

// CreatePlaylist stores an ordered list of rounds.
func (s *Sequencer) CreatePlaylist(name string, rounds []models.RoundConfig) *models.RoundPlaylist {
	if name == "" {
		return nil
	}
	pl := models.RoundPlaylist{
		ID:        uuid.New().String(),
		Name:      name,
		Rounds:    rounds,
		CreatedAt: s.clock.Now(),
	}
	pl = pl.Clone()
	if !s.store.Update("playlist.create", func(st *models.ScoreboardState) bool {
		st.Rounds.Playlists = append(st.Rounds.Playlists, pl.Clone())
		return true
	}) {
		return nil
	}
	return &pl
}

// UpdatePlaylist renames a playlist and/or replaces its rounds. The cursor
// of an active playlist is clamped to the new length.
func (s *Sequencer) UpdatePlaylist(id string, name *string, rounds []models.RoundConfig) bool {
	if name == nil && rounds == nil {
		return false
	}
	return s.store.Update("playlist.update", func(st *models.ScoreboardState) bool {
		pl := findPlaylist(st, id)
		if pl == nil {
			return false
		}
		if name != nil {
			pl.Name = *name
		}
		if rounds != nil {
			pl.Rounds = models.RoundPlaylist{Rounds: rounds}.Clone().Rounds
		}
		if ap := st.Rounds.ActivePlaylist; ap != nil && ap.ID == id {
			if len(pl.Rounds) == 0 {
				st.Rounds.ActivePlaylist = nil
			} else if ap.CurrentIndex >= len(pl.Rounds) {
				ap.CurrentIndex = len(pl.Rounds) - 1
			}
		}
		return true
	})
}

// DeletePlaylist removes a playlist, stopping it when it is active.
func (s *Sequencer) DeletePlaylist(id string) bool {
	return s.store.Update("playlist.delete", func(st *models.ScoreboardState) bool {
		for i, pl := range st.Rounds.Playlists {
			if pl.ID != id {
				continue
			}
			st.Rounds.Playlists = append(st.Rounds.Playlists[:i:i], st.Rounds.Playlists[i+1:]...)
			if ap := st.Rounds.ActivePlaylist; ap != nil && ap.ID == id {
				st.Rounds.ActivePlaylist = nil
			}
			return true
		}
		return false
	})
}

// StartPlaylist activates a playlist and makes its first round current,
// whatever the board was doing.
func (s *Sequencer) StartPlaylist(id string) bool {
	return s.store.Update("playlist.start", func(st *models.ScoreboardState) bool {
		pl := findPlaylist(st, id)
		if pl == nil || len(pl.Rounds) == 0 {
			return false
		}
		first := numbered(st, pl.Rounds[0])
		if !ValidRoundConfig(first) {
			log.Warn().Str("playlist_id", id).Msg("first playlist round is invalid")
			return false
		}
		st.Rounds.ActivePlaylist = &models.ActivePlaylist{ID: id, CurrentIndex: 0}
		setCurrent(st, first)
		return true
	})
}

// StopPlaylist deactivates the playlist. The current round is kept.
func (s *Sequencer) StopPlaylist() bool {
	return s.store.Update("playlist.stop", func(st *models.ScoreboardState) bool {
		if st.Rounds.ActivePlaylist == nil {
			return false
		}
		st.Rounds.ActivePlaylist = nil
		return true
	})
}

// NextInPlaylist moves to the next playlist round. It fails on the last one.
func (s *Sequencer) NextInPlaylist() bool {
	return s.stepPlaylist("playlist.next", 1)
}

// PreviousInPlaylist moves to the previous playlist round. It fails on the
// first one.
func (s *Sequencer) PreviousInPlaylist() bool {
	return s.stepPlaylist("playlist.previous", -1)
}

func (s *Sequencer) stepPlaylist(op string, delta int) bool {
	return s.store.Update(op, func(st *models.ScoreboardState) bool {
		ap := st.Rounds.ActivePlaylist
		if ap == nil {
			return false
		}
		pl := findPlaylist(st, ap.ID)
		if pl == nil {
			return false
		}
		idx := ap.CurrentIndex + delta
		if idx < 0 || idx >= len(pl.Rounds) {
			return false
		}
		next := numbered(st, pl.Rounds[idx])
		if !ValidRoundConfig(next) {
			return false
		}
		ap.CurrentIndex = idx
		setCurrent(st, next)
		return true
	})
}

func findPlaylist(st *models.ScoreboardState, id string) *models.RoundPlaylist {
	for i := range st.Rounds.Playlists {
		if st.Rounds.Playlists[i].ID == id {
			return &st.Rounds.Playlists[i]
		}
	}
	return nil
}
