package ledger

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// TimerRegistry is what the match ledger needs from the per-match timers
type TimerRegistry interface {
	Start(matchID string, durationSec int, timerType string) models.MatchTimerState
	Pause(matchID, timerID string) bool
	Resume(matchID, timerID string) bool
	Stop(matchID, timerID string) bool
	SetDuration(matchID, timerID string, durationSec int) bool
	Remove(matchID string)
}

// MatchPublisher fans match events out to subscribers
type MatchPublisher interface {
	PublishMatchState(m models.Match)
	PublishMatchTimerTick(t models.MatchTimerState)
}

// MatchStateManager tracks concurrent matches. Each match record is replaced
// wholesale on every change.
type MatchStateManager struct {
	mu        sync.RWMutex
	matches   map[string]*models.Match
	timers    TimerRegistry
	publisher MatchPublisher
	clock     clockwork.Clock
}

// NewMatchStateManager creates a match ledger. publisher may be nil.
func NewMatchStateManager(timers TimerRegistry, publisher MatchPublisher, clock clockwork.Clock) *MatchStateManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MatchStateManager{
		matches:   make(map[string]*models.Match),
		timers:    timers,
		publisher: publisher,
		clock:     clock,
	}
}

// CreateMatch creates a match and returns its id. When forcedID is set and
// free it becomes the id; when it is already taken a new id is generated and
// substituted is true.
func (m *MatchStateManager) CreateMatch(req models.CreateMatchRequest, forcedID string) (id string, substituted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id = forcedID
	if id != "" {
		if _, taken := m.matches[id]; taken {
			substituted = true
			id = ""
		}
	}
	if id == "" {
		id = uuid.New().String()
	}
	if substituted {
		log.Warn().Str("forced_id", forcedID).Str("match_id", id).Msg("match id already taken, generated a new one")
	}

	now := m.clock.Now()
	match := &models.Match{
		ID:        id,
		Title:     req.Title,
		Status:    models.MatchStatusScheduled,
		Team1:     req.Team1,
		Team2:     req.Team2,
		Penalties: []models.PenaltyEntry{},
		Rounds:    make([]models.RoundConfig, 0, len(req.Rounds)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	match.Team1.Score = max(0, match.Team1.Score)
	match.Team2.Score = max(0, match.Team2.Score)
	for _, r := range req.Rounds {
		match.Rounds = append(match.Rounds, r.Clone())
	}
	m.matches[id] = match

	log.Info().Str("match_id", id).Str("title", req.Title).Msg("match created")
	m.publishLocked(match)
	return id, substituted
}

// GetMatch returns a copy of the match, or nil when unknown.
func (m *MatchStateManager) GetMatch(id string) *models.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	match, ok := m.matches[id]
	if !ok {
		return nil
	}
	out := match.Clone()
	return &out
}

// ListMatches returns copies of all matches, oldest first.
func (m *MatchStateManager) ListMatches() []models.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Match, 0, len(m.matches))
	for _, match := range m.matches {
		out = append(out, match.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteMatch removes a match and cancels its timer.
func (m *MatchStateManager) DeleteMatch(id string) bool {
	m.mu.Lock()
	_, ok := m.matches[id]
	delete(m.matches, id)
	m.mu.Unlock()

	if ok {
		m.timers.Remove(id)
		log.Info().Str("match_id", id).Msg("match deleted")
	}
	return ok
}

// UpdateMatchTeams renames the teams of a match.
func (m *MatchStateManager) UpdateMatchTeams(id string, team1, team2 *string) bool {
	return m.update(id, func(match *models.Match) bool {
		if team1 != nil {
			match.Team1.Name = *team1
		}
		if team2 != nil {
			match.Team2.Name = *team2
		}
		return team1 != nil || team2 != nil
	})
}

// SetStatus moves the match through its lifecycle.
func (m *MatchStateManager) SetStatus(id string, status models.MatchStatus) bool {
	return m.update(id, func(match *models.Match) bool {
		match.Status = status
		return true
	})
}

// SetScore sets both scores to absolute values.
func (m *MatchStateManager) SetScore(id string, team1, team2 int) bool {
	if team1 < 0 || team2 < 0 {
		return false
	}
	return m.update(id, func(match *models.Match) bool {
		match.Team1.Score = team1
		match.Team2.Score = team2
		return true
	})
}

// AddPenalty appends a timestamped penalty for a team of the match.
func (m *MatchStateManager) AddPenalty(id string, team models.TeamID, kind models.PenaltyKind) bool {
	if !team.Valid() || !kind.Valid() {
		return false
	}
	at := m.clock.Now()
	return m.update(id, func(match *models.Match) bool {
		match.Penalties = append(match.Penalties, models.PenaltyEntry{Team: team, Kind: kind, At: at})
		return true
	})
}

// StartTimer starts a new countdown for the match, replacing any previous one.
func (m *MatchStateManager) StartTimer(id string, durationSec int, timerType string) *models.MatchTimerState {
	if durationSec < 0 || !m.exists(id) {
		return nil
	}
	state := m.timers.Start(id, durationSec, timerType)
	if !m.exists(id) {
		m.timers.Remove(id)
		return nil
	}
	return &state
}

// PauseTimer pauses the active countdown of the match.
func (m *MatchStateManager) PauseTimer(id, timerID string) bool {
	return m.exists(id) && m.timers.Pause(id, timerID)
}

// ResumeTimer resumes the active countdown of the match.
func (m *MatchStateManager) ResumeTimer(id, timerID string) bool {
	return m.exists(id) && m.timers.Resume(id, timerID)
}

// StopTimer stops the active countdown of the match.
func (m *MatchStateManager) StopTimer(id, timerID string) bool {
	return m.exists(id) && m.timers.Stop(id, timerID)
}

// SetTimerDuration changes the duration of the active countdown.
func (m *MatchStateManager) SetTimerDuration(id, timerID string, durationSec int) bool {
	return m.exists(id) && m.timers.SetDuration(id, timerID, durationSec)
}

// OnTimerTick forwards the narrow tick event.
func (m *MatchStateManager) OnTimerTick(t models.MatchTimerState) {
	if m.publisher != nil {
		m.publisher.PublishMatchTimerTick(t)
	}
}

// OnTimerTransition stores the new timer state in the match record and
// broadcasts the full match.
func (m *MatchStateManager) OnTimerTransition(t models.MatchTimerState) {
	m.update(t.MatchID, func(match *models.Match) bool {
		timer := t.Clone()
		match.Timer = &timer
		return true
	})
}

func (m *MatchStateManager) exists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.matches[id]
	return ok
}

// update applies fn to a copy of the match and swaps it in. Unknown ids are
// ignored.
func (m *MatchStateManager) update(id string, fn func(*models.Match) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.matches[id]
	if !ok {
		return false
	}
	next := current.Clone()
	if !fn(&next) {
		return false
	}
	next.UpdatedAt = m.clock.Now()
	m.matches[id] = &next
	m.publishLocked(&next)
	return true
}

func (m *MatchStateManager) publishLocked(match *models.Match) {
	if m.publisher != nil {
		m.publisher.PublishMatchState(match.Clone())
	}
}
