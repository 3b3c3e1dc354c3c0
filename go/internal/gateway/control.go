package gateway

import (
	"encoding/json"
	"sort"

	"github.com/mcdev12/improvscore/go/internal/ledger"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/remote"
	"github.com/mcdev12/improvscore/go/internal/rounds"
	"github.com/mcdev12/improvscore/go/internal/store"
	"github.com/mcdev12/improvscore/go/internal/timer"
	"github.com/rs/zerolog/log"
)

// Command is a message sent by a control surface
type Command struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Controls are the core services a control surface drives
type Controls struct {
	Store   *store.Store
	Ledger  *ledger.Ledger
	Matches *ledger.MatchStateManager
	Rounds  *rounds.Sequencer
	Timer   *timer.Service
	Remote  *remote.Arbiter
}

type handlerFunc func(payload json.RawMessage) (bool, any)

// ControlDispatcher maps control commands onto core operations
type ControlDispatcher struct {
	handlers map[string]handlerFunc
}

type teamRef struct {
	TeamID models.TeamID `json:"teamId"`
}

type idRef struct {
	ID string `json:"id"`
}

type matchTimerRef struct {
	MatchID     string `json:"matchId"`
	TimerID     string `json:"timerId"`
	DurationSec int    `json:"durationSec"`
	Type        string `json:"type"`
}

// NewControlDispatcher builds the command table for c.
func NewControlDispatcher(c Controls) *ControlDispatcher {
	d := &ControlDispatcher{handlers: make(map[string]handlerFunc)}

	// board teams and scores
	handle(d, "team.update", func(p struct {
		TeamID models.TeamID `json:"teamId"`
		Name   *string       `json:"name"`
		Color  *string       `json:"color"`
	}) (bool, any) {
		return c.Ledger.UpdateTeam(p.TeamID, models.TeamUpdate{Name: p.Name, Color: p.Color}), nil
	})
	handle(d, "score.update", func(p struct {
		TeamID models.TeamID      `json:"teamId"`
		Action ledger.ScoreAction `json:"action"`
	}) (bool, any) {
		return c.Ledger.UpdateScore(p.TeamID, p.Action), nil
	})
	handle(d, "score.set", func(p struct {
		TeamID models.TeamID `json:"teamId"`
		Score  int           `json:"score"`
	}) (bool, any) {
		return c.Ledger.SetScore(p.TeamID, p.Score), nil
	})
	d.handleBare("score.reset", c.Ledger.ResetScores)
	handle(d, "penalty.add", func(p struct {
		TeamID models.TeamID      `json:"teamId"`
		Kind   models.PenaltyKind `json:"kind"`
	}) (bool, any) {
		return c.Ledger.UpdatePenalty(p.TeamID, p.Kind), nil
	})
	handle(d, "penalty.reset", func(p teamRef) (bool, any) {
		return c.Ledger.ResetPenalties(p.TeamID), nil
	})
	handle(d, "scoring.mode", func(p struct {
		Mode models.ScoringMode `json:"mode"`
	}) (bool, any) {
		return c.Ledger.SetScoringMode(p.Mode), nil
	})
	handle(d, "state.patch", func(p store.StatePatch) (bool, any) {
		return c.Store.Patch(p), nil
	})

	// rounds and game lifecycle
	handle(d, "round.start", func(p models.RoundConfig) (bool, any) {
		return c.Rounds.StartRound(p), nil
	})
	d.handleBare("round.next", c.Rounds.StartNextRound)
	d.handleBare("round.end", c.Rounds.EndRound)
	handle(d, "round.save", func(p rounds.RoundResult) (bool, any) {
		return c.Rounds.SaveRoundResults(p) == nil, nil
	})
	d.handleBare("round.reset", c.Rounds.ResetRounds)
	handle(d, "round.createNext", func(p models.RoundConfig) (bool, any) {
		staged := c.Rounds.CreateNextRound(p)
		return staged != nil, staged
	})
	handle(d, "settings.update", func(p models.RoundSettings) (bool, any) {
		return c.Rounds.UpdateSettings(p), nil
	})
	handle(d, "settings.toggle", func(p struct {
		Name string `json:"name"`
	}) (bool, any) {
		return c.Rounds.ToggleSetting(p.Name), nil
	})
	handle(d, "draft.set", func(p models.RoundConfig) (bool, any) {
		return c.Rounds.SetNextRoundDraft(p), nil
	})
	d.handleBare("draft.clear", c.Rounds.ClearNextRoundDraft)
	handle(d, "upcoming.enqueue", func(p models.RoundConfig) (bool, any) {
		return c.Rounds.EnqueueRound(p), nil
	})
	handle(d, "upcoming.remove", func(p struct {
		Index int `json:"index"`
	}) (bool, any) {
		return c.Rounds.RemoveUpcoming(p.Index), nil
	})
	handle(d, "upcoming.reorder", func(p struct {
		From int `json:"from"`
		To   int `json:"to"`
	}) (bool, any) {
		return c.Rounds.ReorderUpcoming(p.From, p.To), nil
	})
	d.handleBare("upcoming.clear", c.Rounds.ClearUpcoming)
	d.handleBare("game.start", c.Rounds.StartGame)
	d.handleBare("game.finish", c.Rounds.FinishGame)

	// templates and playlists
	handle(d, "template.save", func(p struct {
		Name   string             `json:"name"`
		Config models.RoundConfig `json:"config"`
	}) (bool, any) {
		tpl := c.Rounds.SaveTemplate(p.Name, p.Config)
		return tpl != nil, tpl
	})
	handle(d, "template.update", func(p struct {
		ID     string              `json:"id"`
		Name   *string             `json:"name"`
		Config *models.RoundConfig `json:"config"`
	}) (bool, any) {
		return c.Rounds.UpdateTemplate(p.ID, p.Name, p.Config), nil
	})
	handle(d, "template.delete", func(p idRef) (bool, any) {
		return c.Rounds.DeleteTemplate(p.ID), nil
	})
	handle(d, "playlist.create", func(p struct {
		Name   string               `json:"name"`
		Rounds []models.RoundConfig `json:"rounds"`
	}) (bool, any) {
		pl := c.Rounds.CreatePlaylist(p.Name, p.Rounds)
		return pl != nil, pl
	})
	handle(d, "playlist.update", func(p struct {
		ID     string               `json:"id"`
		Name   *string              `json:"name"`
		Rounds []models.RoundConfig `json:"rounds"`
	}) (bool, any) {
		return c.Rounds.UpdatePlaylist(p.ID, p.Name, p.Rounds), nil
	})
	handle(d, "playlist.delete", func(p idRef) (bool, any) {
		return c.Rounds.DeletePlaylist(p.ID), nil
	})
	handle(d, "playlist.start", func(p idRef) (bool, any) {
		return c.Rounds.StartPlaylist(p.ID), nil
	})
	d.handleBare("playlist.stop", c.Rounds.StopPlaylist)
	d.handleBare("playlist.next", c.Rounds.NextInPlaylist)
	d.handleBare("playlist.previous", c.Rounds.PreviousInPlaylist)

	// board timer
	handle(d, "timer.start", func(p struct {
		DurationSec int `json:"durationSec"`
	}) (bool, any) {
		return c.Timer.StartTimer(p.DurationSec), nil
	})
	d.handleBare("timer.pause", c.Timer.PauseTimer)
	d.handleBare("timer.resume", c.Timer.ResumeTimer)
	d.handleBare("timer.stop", c.Timer.StopTimer)
	handle(d, "timer.set", func(p struct {
		DurationSec int `json:"durationSec"`
	}) (bool, any) {
		return c.Timer.SetDuration(p.DurationSec), nil
	})

	// matches
	handle(d, "match.create", func(p struct {
		models.CreateMatchRequest
		ID string `json:"id"`
	}) (bool, any) {
		id, substituted := c.Matches.CreateMatch(p.CreateMatchRequest, p.ID)
		return true, map[string]any{"matchId": id, "idSubstituted": substituted}
	})
	handle(d, "match.delete", func(p struct {
		MatchID string `json:"matchId"`
	}) (bool, any) {
		return c.Matches.DeleteMatch(p.MatchID), nil
	})
	handle(d, "match.teams", func(p struct {
		MatchID string  `json:"matchId"`
		Team1   *string `json:"team1"`
		Team2   *string `json:"team2"`
	}) (bool, any) {
		return c.Matches.UpdateMatchTeams(p.MatchID, p.Team1, p.Team2), nil
	})
	handle(d, "match.status", func(p struct {
		MatchID string             `json:"matchId"`
		Status  models.MatchStatus `json:"status"`
	}) (bool, any) {
		if !p.Status.Valid() {
			return false, nil
		}
		return c.Matches.SetStatus(p.MatchID, p.Status), nil
	})
	handle(d, "match.score", func(p struct {
		MatchID string `json:"matchId"`
		Team1   int    `json:"team1"`
		Team2   int    `json:"team2"`
	}) (bool, any) {
		return c.Matches.SetScore(p.MatchID, p.Team1, p.Team2), nil
	})
	handle(d, "match.penalty", func(p struct {
		MatchID string             `json:"matchId"`
		TeamID  models.TeamID      `json:"teamId"`
		Kind    models.PenaltyKind `json:"kind"`
	}) (bool, any) {
		return c.Matches.AddPenalty(p.MatchID, p.TeamID, p.Kind), nil
	})
	handle(d, "match.timer.start", func(p matchTimerRef) (bool, any) {
		started := c.Matches.StartTimer(p.MatchID, p.DurationSec, p.Type)
		return started != nil, started
	})
	handle(d, "match.timer.pause", func(p matchTimerRef) (bool, any) {
		return c.Matches.PauseTimer(p.MatchID, p.TimerID), nil
	})
	handle(d, "match.timer.resume", func(p matchTimerRef) (bool, any) {
		return c.Matches.ResumeTimer(p.MatchID, p.TimerID), nil
	})
	handle(d, "match.timer.stop", func(p matchTimerRef) (bool, any) {
		return c.Matches.StopTimer(p.MatchID, p.TimerID), nil
	})
	handle(d, "match.timer.set", func(p matchTimerRef) (bool, any) {
		return c.Matches.SetTimerDuration(p.MatchID, p.TimerID, p.DurationSec), nil
	})

	// remote control marker
	handle(d, "remote.lock", func(p struct {
		Locked bool `json:"locked"`
	}) (bool, any) {
		return c.Remote.SetLock(p.Locked), nil
	})
	d.handleBare("remote.release", c.Remote.Release)

	return d
}

// handle registers a command whose payload decodes into P.
func handle[P any](d *ControlDispatcher, name string, fn func(P) (bool, any)) {
	d.handlers[name] = func(raw json.RawMessage) (bool, any) {
		var p P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &p); err != nil {
				log.Warn().Err(err).Str("command", name).Msg("invalid command payload")
				return false, nil
			}
		}
		return fn(p)
	}
}

func (d *ControlDispatcher) handleBare(name string, fn func() bool) {
	d.handlers[name] = func(json.RawMessage) (bool, any) {
		return fn(), nil
	}
}

// Commands lists the registered command names.
func (d *ControlDispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs a command. Unknown commands are rejected.
func (d *ControlDispatcher) Dispatch(cmd Command) (bool, any) {
	h, ok := d.handlers[cmd.Type]
	if !ok {
		log.Warn().Str("command", cmd.Type).Msg("unknown control command")
		return false, nil
	}
	return h(cmd.Payload)
}
