// Package rounds sequences the rounds of a game: the current round, its
// history, the staged draft and upcoming queue, templates, playlists and the
// game lifecycle.
package rounds

import (
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoActiveRound is returned when results are saved between rounds.
	ErrNoActiveRound = errors.New("no active round")
	// ErrRejected is returned when the store refused the mutation.
	ErrRejected = errors.New("round results rejected")
)

// StateStore is what the sequencer needs from the state store
type StateStore interface {
	Get() models.ScoreboardState
	Update(op string, fn func(*models.ScoreboardState) bool) bool
}

// Reporter renders the end of game artifact. Render must not block.
type Reporter interface {
	Render(state models.ScoreboardState)
}

// Archiver keeps completed rounds outside the snapshot. ArchiveRound must
// not block.
type Archiver interface {
	ArchiveRound(record models.RoundHistory)
}

// RoundResult is what the referee submits when a round ends
type RoundResult struct {
	Points    models.TeamPoints    `json:"points"`
	Penalties models.TeamPenalties `json:"penalties"`
	Notes     string               `json:"notes,omitempty"`
}

// Sequencer owns the round state of the board
type Sequencer struct {
	store    StateStore
	clock    clockwork.Clock
	reporter Reporter
	archiver Archiver
}

// Option configures a Sequencer
type Option func(*Sequencer)

// WithReporter sets the end of game report renderer.
func WithReporter(r Reporter) Option {
	return func(s *Sequencer) { s.reporter = r }
}

// WithArchiver sets the round history archive.
func WithArchiver(a Archiver) Option {
	return func(s *Sequencer) { s.archiver = a }
}

// NewSequencer creates a round sequencer
func NewSequencer(store StateStore, clock clockwork.Clock, opts ...Option) *Sequencer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Sequencer{store: store, clock: clock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveRoundResults closes the current round. The round is appended to the
// history with the submitted points and penalties. In round scoring mode the
// points are added to the team scores and the next round is promoted from
// the upcoming queue, then the draft, else the board goes between rounds.
// In manual mode scores are left alone and the board always goes between
// rounds.
func (s *Sequencer) SaveRoundResults(res RoundResult) error {
	var (
		noActive bool
		record   models.RoundHistory
	)
	ok := s.store.Update("round.save", func(st *models.ScoreboardState) bool {
		if st.Rounds.IsBetweenRounds {
			noActive = true
			return false
		}

		record = models.RoundHistory{
			RoundConfig: st.Rounds.Current.Clone(),
			Points:      res.Points,
			Penalties:   res.Penalties,
			Notes:       res.Notes,
		}
		record.Number = nextNumber(st)
		st.Rounds.History = append(st.Rounds.History, record)

		if st.ScoringMode != models.ScoringModeRound {
			setBetweenRounds(st)
			return true
		}

		st.Team1.Score = max(0, st.Team1.Score+res.Points.Team1)
		st.Team2.Score = max(0, st.Team2.Score+res.Points.Team2)
		st.Rounds.GameStatus = models.GameStatusLive

		if !st.Rounds.Settings.AutoAdvance || !promoteNext(st) {
			setBetweenRounds(st)
		}
		return true
	})
	if noActive {
		log.Warn().Msg("round results submitted while between rounds")
		return ErrNoActiveRound
	}
	if !ok {
		return ErrRejected
	}

	log.Info().
		Int("round", record.Number).
		Int("team1_points", res.Points.Team1).
		Int("team2_points", res.Points.Team2).
		Msg("round results saved")
	if s.archiver != nil {
		s.archiver.ArchiveRound(record.Clone())
	}
	return nil
}

// StartGame marks the game live. In round scoring mode it also promotes the
// first staged round and returns false when there is none; the game stays
// live either way.
func (s *Sequencer) StartGame() bool {
	var staged bool
	s.store.Update("game.start", func(st *models.ScoreboardState) bool {
		st.Rounds.GameStatus = models.GameStatusLive
		if st.ScoringMode == models.ScoringModeManual {
			staged = true
			return true
		}
		staged = promoteNext(st)
		return true
	})
	if !staged {
		log.Warn().Msg("game started without a staged round")
	}
	return staged
}

// FinishGame ends the game and hands the final snapshot to the reporter.
// Finishing twice is a no-op.
func (s *Sequencer) FinishGame() bool {
	var final models.ScoreboardState
	ok := s.store.Update("game.finish", func(st *models.ScoreboardState) bool {
		if st.Rounds.GameStatus == models.GameStatusFinished {
			return false
		}
		st.Rounds.NextRoundDraft = nil
		st.Rounds.Upcoming = []models.RoundConfig{}
		st.Rounds.ActivePlaylist = nil
		st.Rounds.GameStatus = models.GameStatusFinished
		setBetweenRounds(st)
		final = st.Clone()
		return true
	})
	if !ok {
		return false
	}

	log.Info().
		Int("rounds_played", len(final.Rounds.History)).
		Int("team1_score", final.Team1.Score).
		Int("team2_score", final.Team2.Score).
		Msg("game finished")
	if s.reporter != nil {
		s.reporter.Render(final)
	}
	return true
}

// StartRound makes c the round in progress, numbered after the history.
func (s *Sequencer) StartRound(c models.RoundConfig) bool {
	return s.store.Update("round.start", func(st *models.ScoreboardState) bool {
		next := numbered(st, c)
		if problems := CheckRoundConfig(next); len(problems) > 0 {
			log.Warn().Strs("problems", problems).Msg("rejecting round start")
			return false
		}
		setCurrent(st, next)
		return true
	})
}

// StartNextRound promotes the next staged round while between rounds.
func (s *Sequencer) StartNextRound() bool {
	return s.store.Update("round.next", func(st *models.ScoreboardState) bool {
		if !st.Rounds.IsBetweenRounds {
			return false
		}
		return promoteNext(st)
	})
}

// EndRound drops the current round without recording results.
func (s *Sequencer) EndRound() bool {
	return s.store.Update("round.end", func(st *models.ScoreboardState) bool {
		if st.Rounds.IsBetweenRounds {
			return false
		}
		setBetweenRounds(st)
		return true
	})
}

// ResetRounds clears the history and the staged rounds and brings the game
// back to not started. Templates, playlists and settings are kept.
func (s *Sequencer) ResetRounds() bool {
	return s.store.Update("round.reset", func(st *models.ScoreboardState) bool {
		st.Rounds.History = []models.RoundHistory{}
		st.Rounds.Upcoming = []models.RoundConfig{}
		st.Rounds.NextRoundDraft = nil
		st.Rounds.ActivePlaylist = nil
		st.Rounds.GameStatus = models.GameStatusNotStarted
		setBetweenRounds(st)
		return true
	})
}

// CreateNextRound stages c as the draft, filling in the next number and the
// default time limit. It returns the staged config, or nil when invalid.
func (s *Sequencer) CreateNextRound(c models.RoundConfig) *models.RoundConfig {
	var staged models.RoundConfig
	ok := s.store.Update("round.createNext", func(st *models.ScoreboardState) bool {
		next := numbered(st, c)
		if next.TimeLimit == nil && st.Rounds.Settings.DefaultTimeLimit != nil {
			limit := *st.Rounds.Settings.DefaultTimeLimit
			next.TimeLimit = &limit
		}
		if !ValidRoundConfig(next) {
			return false
		}
		st.Rounds.NextRoundDraft = &next
		staged = next.Clone()
		return true
	})
	if !ok {
		return nil
	}
	return &staged
}
