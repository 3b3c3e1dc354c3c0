// Package interop lets the mon-pacing device drive the board. Plans and
// events arrive over HTTP, Connect or JetStream, are validated, and are
// then translated into calls on the core services.
package interop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcdev12/improvscore/go/internal/ledger"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/remote"
	"github.com/mcdev12/improvscore/go/internal/rounds"
	"github.com/mcdev12/improvscore/go/internal/timer"
	"github.com/rs/zerolog/log"
)

const (
	defaultMinPlayers = 1
	defaultMaxPlayers = 4
)

// MaxRoundSeconds caps a plan round's time limit, and each of its durations.
const MaxRoundSeconds = 24 * 60 * 60

// Event types understood from the pacing device.
const (
	EventMatchStart    = "match.start"
	EventMatchFinish   = "match.finish"
	EventRoundStart    = "round.start"
	EventRoundEnd      = "round.end"
	EventTimerStart    = "timer.start"
	EventTimerPause    = "timer.pause"
	EventTimerResume   = "timer.resume"
	EventTimerStop     = "timer.stop"
	EventTimerSet      = "timer.set"
	EventScoreSet      = "score.set"
	EventPenaltyAdd    = "penalty.add"
	EventControlLock   = "control.lock"
	EventControlUnlock = "control.unlock"
)

// Targets are the core services a remote device drives
type Targets struct {
	Ledger  *ledger.Ledger
	Matches *ledger.MatchStateManager
	Rounds  *rounds.Sequencer
	Timer   *timer.Service
	Remote  *remote.Arbiter
}

// Plan is the match plan sent by the device before a show
type Plan struct {
	MatchID string      `json:"matchId,omitempty"`
	Title   string      `json:"title,omitempty"`
	Teams   []PlanTeam  `json:"teams,omitempty"`
	Rounds  []PlanRound `json:"rounds,omitempty"`
}

// PlanTeam is one team of a plan
type PlanTeam struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PlanRound is one round of a plan. Durations are summed into the round's
// time limit, capped at MaxRoundSeconds.
type PlanRound struct {
	Type               string    `json:"type,omitempty"`
	Category           string    `json:"category,omitempty"`
	Theme              string    `json:"theme,omitempty"`
	DurationsInSeconds []float64 `json:"durationsInSeconds,omitempty"`
}

// Config converts the plan round into a board round.
func (r PlanRound) Config() models.RoundConfig {
	cfg := models.RoundConfig{
		Title:      r.Category,
		Theme:      r.Theme,
		Type:       models.RoundTypeCustom,
		MinPlayers: defaultMinPlayers,
		MaxPlayers: defaultMaxPlayers,
	}
	switch kind := strings.ToLower(r.Type); kind {
	case "mixte", "mixed":
		cfg.IsMixed = true
	default:
		if t := models.RoundType(kind); t.Valid() {
			cfg.Type = t
		}
	}

	total := 0
	for _, d := range r.DurationsInSeconds {
		if d > 0 {
			total += int(min(d, MaxRoundSeconds))
		}
		total = min(total, MaxRoundSeconds)
	}
	if total > 0 {
		cfg.TimeLimit = &total
	}
	return cfg
}

// Event is one live cue from the device
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type eventPayload struct {
	MatchID     string                `json:"matchId"`
	TimerID     string                `json:"timerId"`
	Round       *PlanRound            `json:"round"`
	DurationSec *int                  `json:"durationSec"`
	Team        models.TeamID         `json:"team"`
	Kind        models.PenaltyKind    `json:"kind"`
	Team1       *int                  `json:"team1"`
	Team2       *int                  `json:"team2"`
	Points      *models.TeamPoints    `json:"points"`
	Penalties   *models.TeamPenalties `json:"penalties"`
	Notes       string                `json:"notes"`
}

// Result is the outcome of a plan or event. Errors is set only when the
// payload failed validation; OK false without errors means the board
// refused the operation.
type Result struct {
	OK            bool     `json:"ok"`
	Errors        []string `json:"errors,omitempty"`
	MatchID       string   `json:"matchId,omitempty"`
	IDSubstituted bool     `json:"idSubstituted,omitempty"`
}

// Translator applies validated plans and events to the core services
type Translator struct {
	targets Targets
	source  string
	events  map[string]func(eventPayload) bool
}

// NewTranslator creates a translator marking every change as coming from
// the mon-pacing device.
func NewTranslator(targets Targets) *Translator {
	t := &Translator{targets: targets, source: models.ControlSourcePacing}
	t.events = map[string]func(eventPayload) bool{
		EventMatchStart:    t.matchStart,
		EventMatchFinish:   t.matchFinish,
		EventRoundStart:    t.roundStart,
		EventRoundEnd:      t.roundEnd,
		EventTimerStart:    t.timerStart,
		EventTimerPause:    t.timerPause,
		EventTimerResume:   t.timerResume,
		EventTimerStop:     t.timerStop,
		EventTimerSet:      t.timerSet,
		EventScoreSet:      t.scoreSet,
		EventPenaltyAdd:    t.penaltyAdd,
		EventControlLock:   func(eventPayload) bool { return targets.Remote.SetLock(true) },
		EventControlUnlock: func(eventPayload) bool { return targets.Remote.SetLock(false) },
	}
	return t
}

// ApplyPlan validates v and loads it: board team names, the upcoming
// queue, and a match record under the plan's id.
func (t *Translator) ApplyPlan(v any) Result {
	if problems := ValidatePlan(v); len(problems) > 0 {
		return Result{Errors: problems}
	}
	var plan Plan
	if err := decode(v, &plan); err != nil {
		return Result{Errors: []string{err.Error()}}
	}

	t.targets.Remote.MarkRemote(t.source)

	boardTeams := []models.TeamID{models.Team1, models.Team2}
	for i, team := range plan.Teams {
		if i >= len(boardTeams) {
			log.Warn().Int("teams", len(plan.Teams)).Msg("plan has more than two teams, extra teams ignored")
			break
		}
		update := models.TeamUpdate{Name: &team.Name}
		if team.Color != "" {
			update.Color = &team.Color
		}
		t.targets.Ledger.UpdateTeam(boardTeams[i], update)
	}

	configs := make([]models.RoundConfig, 0, len(plan.Rounds))
	if len(plan.Rounds) > 0 {
		t.targets.Rounds.ClearUpcoming()
		for i, r := range plan.Rounds {
			cfg := r.Config()
			if !t.targets.Rounds.EnqueueRound(cfg) {
				log.Warn().Int("index", i).Str("type", r.Type).Msg("plan round rejected")
				continue
			}
			configs = append(configs, cfg)
		}
	}

	req := models.CreateMatchRequest{Title: plan.Title, Rounds: configs}
	if len(plan.Teams) > 0 {
		req.Team1 = models.MatchTeam{Name: plan.Teams[0].Name, Color: plan.Teams[0].Color}
	}
	if len(plan.Teams) > 1 {
		req.Team2 = models.MatchTeam{Name: plan.Teams[1].Name, Color: plan.Teams[1].Color}
	}
	id, substituted := t.targets.Matches.CreateMatch(req, plan.MatchID)
	if substituted {
		log.Warn().
			Str("requested_id", plan.MatchID).
			Str("match_id", id).
			Msg("plan match id already taken, using a generated id")
	}

	log.Info().
		Str("match_id", id).
		Int("rounds", len(configs)).
		Msg("pacing plan applied")
	return Result{OK: true, MatchID: id, IDSubstituted: substituted}
}

// ApplyEvent validates v and applies the cue it carries.
func (t *Translator) ApplyEvent(v any) Result {
	if problems := ValidateEvent(v); len(problems) > 0 {
		return Result{Errors: problems}
	}
	var ev Event
	if err := decode(v, &ev); err != nil {
		return Result{Errors: []string{err.Error()}}
	}
	apply, ok := t.events[ev.Type]
	if !ok {
		return Result{Errors: []string{fmt.Sprintf("unknown event type %q", ev.Type)}}
	}
	var p eventPayload
	if ev.Payload != nil {
		if err := decode(ev.Payload, &p); err != nil {
			return Result{Errors: []string{"payload: " + err.Error()}}
		}
	}

	t.targets.Remote.MarkRemote(t.source)
	ok = apply(p)
	if !ok {
		log.Warn().Str("event_type", ev.Type).Str("match_id", p.MatchID).Msg("pacing event refused")
	}
	return Result{OK: ok, MatchID: p.MatchID}
}

// EventTypes lists the event types the translator understands.
func (t *Translator) EventTypes() []string {
	out := make([]string, 0, len(t.events))
	for name := range t.events {
		out = append(out, name)
	}
	return out
}

func (t *Translator) matchStart(p eventPayload) bool {
	if p.MatchID != "" {
		t.targets.Matches.SetStatus(p.MatchID, models.MatchStatusLive)
	}
	return t.targets.Rounds.StartGame()
}

func (t *Translator) matchFinish(p eventPayload) bool {
	if p.MatchID != "" {
		t.targets.Matches.SetStatus(p.MatchID, models.MatchStatusFinished)
	}
	return t.targets.Rounds.FinishGame()
}

func (t *Translator) roundStart(p eventPayload) bool {
	if p.Round != nil {
		return t.targets.Rounds.StartRound(p.Round.Config())
	}
	return t.targets.Rounds.StartNextRound()
}

func (t *Translator) roundEnd(p eventPayload) bool {
	if p.Points == nil && p.Penalties == nil {
		return t.targets.Rounds.EndRound()
	}
	res := rounds.RoundResult{Notes: p.Notes}
	if p.Points != nil {
		res.Points = *p.Points
	}
	if p.Penalties != nil {
		res.Penalties = *p.Penalties
	}
	return t.targets.Rounds.SaveRoundResults(res) == nil
}

func (t *Translator) timerStart(p eventPayload) bool {
	if p.DurationSec == nil {
		return false
	}
	if p.MatchID != "" {
		t.targets.Matches.StartTimer(p.MatchID, *p.DurationSec, "round")
	}
	return t.targets.Timer.StartTimer(*p.DurationSec)
}

func (t *Translator) timerPause(p eventPayload) bool {
	if p.MatchID != "" && p.TimerID != "" {
		t.targets.Matches.PauseTimer(p.MatchID, p.TimerID)
	}
	return t.targets.Timer.PauseTimer()
}

func (t *Translator) timerResume(p eventPayload) bool {
	if p.MatchID != "" && p.TimerID != "" {
		t.targets.Matches.ResumeTimer(p.MatchID, p.TimerID)
	}
	return t.targets.Timer.ResumeTimer()
}

func (t *Translator) timerStop(p eventPayload) bool {
	if p.MatchID != "" && p.TimerID != "" {
		t.targets.Matches.StopTimer(p.MatchID, p.TimerID)
	}
	return t.targets.Timer.StopTimer()
}

func (t *Translator) timerSet(p eventPayload) bool {
	if p.DurationSec == nil {
		return false
	}
	if p.MatchID != "" && p.TimerID != "" {
		t.targets.Matches.SetTimerDuration(p.MatchID, p.TimerID, *p.DurationSec)
	}
	return t.targets.Timer.SetDuration(*p.DurationSec)
}

func (t *Translator) scoreSet(p eventPayload) bool {
	if p.Team1 == nil && p.Team2 == nil {
		return false
	}
	ok := true
	if p.Team1 != nil {
		ok = t.targets.Ledger.SetScore(models.Team1, *p.Team1) && ok
	}
	if p.Team2 != nil {
		ok = t.targets.Ledger.SetScore(models.Team2, *p.Team2) && ok
	}
	if p.MatchID != "" && p.Team1 != nil && p.Team2 != nil {
		t.targets.Matches.SetScore(p.MatchID, *p.Team1, *p.Team2)
	}
	return ok
}

func (t *Translator) penaltyAdd(p eventPayload) bool {
	if p.MatchID != "" {
		t.targets.Matches.AddPenalty(p.MatchID, p.Team, p.Kind)
	}
	return t.targets.Ledger.UpdatePenalty(p.Team, p.Kind)
}

// decode moves a generic JSON value into a typed struct.
func decode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
