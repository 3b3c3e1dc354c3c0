// Package matchtimer runs one actively ticking countdown per match. Each
// tick recomputes the remaining time from a fixed anchor instead of
// decrementing a counter, so ticks that are late or dropped do not drift.
package matchtimer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the tick resolution.
const DefaultInterval = 100 * time.Millisecond

// Listener receives timer events. Callbacks run while the registry lock is
// held so events arrive in order; they must not call back into the registry.
type Listener interface {
	// OnTimerTick is called on every tick of a running timer.
	OnTimerTick(t models.MatchTimerState)
	// OnTimerTransition is called on start, pause, resume, stop, duration
	// change and expiry.
	OnTimerTransition(t models.MatchTimerState)
}

type entry struct {
	state           models.MatchTimerState
	anchor          time.Time
	anchorRemaining time.Duration
	generation      uint64
	cancel          context.CancelFunc
}

// Registry holds the active timer of every match
type Registry struct {
	clock    clockwork.Clock
	interval time.Duration
	listener Listener

	mu     sync.Mutex
	timers map[string]*entry
}

// NewRegistry creates a registry. listener may be nil.
func NewRegistry(clock clockwork.Clock, interval time.Duration, listener Listener) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Registry{
		clock:    clock,
		interval: interval,
		listener: listener,
		timers:   make(map[string]*entry),
	}
}

// SetListener replaces the listener. Used to break the construction cycle
// between the registry and the ledger that listens to it.
func (r *Registry) SetListener(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = l
}

// Start cancels any timer of the match and starts a new one with a fresh
// timer id.
func (r *Registry) Start(matchID string, durationSec int, timerType string) models.MatchTimerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.timers[matchID]
	var generation uint64
	if exists {
		r.cancelLocked(prev)
		generation = prev.generation
		log.Debug().Str("match_id", matchID).Str("timer_id", prev.state.TimerID).Msg("replaced existing match timer")
	}

	now := r.clock.Now()
	duration := time.Duration(durationSec) * time.Second
	e := &entry{
		state: models.MatchTimerState{
			MatchID:     matchID,
			TimerID:     uuid.New().String(),
			Type:        timerType,
			Status:      models.MatchTimerRunning,
			DurationSec: durationSec,
			StartedAt:   &now,
			UpdatedAt:   now,
		},
		anchor:          now,
		anchorRemaining: duration,
		generation:      generation,
	}
	setRemaining(&e.state, duration)
	r.timers[matchID] = e

	if duration <= 0 {
		e.state.Status = models.MatchTimerExpired
	} else {
		r.runLocked(e)
	}

	log.Info().
		Str("match_id", matchID).
		Str("timer_id", e.state.TimerID).
		Int("duration_sec", durationSec).
		Msg("match timer started")

	r.notifyTransition(e.state)
	return e.state.Clone()
}

// Pause freezes the running timer. timerID must match the active timer.
func (r *Registry) Pause(matchID, timerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.activeLocked(matchID, timerID)
	if e == nil || e.state.Status != models.MatchTimerRunning {
		return false
	}
	r.cancelLocked(e)

	now := r.clock.Now()
	setRemaining(&e.state, r.remainingLocked(e, now))
	e.state.Status = models.MatchTimerPaused
	e.state.UpdatedAt = now

	r.notifyTransition(e.state)
	return true
}

// Resume restarts a paused timer from its frozen remaining time.
func (r *Registry) Resume(matchID, timerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.activeLocked(matchID, timerID)
	if e == nil || e.state.Status != models.MatchTimerPaused {
		return false
	}

	now := r.clock.Now()
	e.anchor = now
	e.anchorRemaining = time.Duration(e.state.RemainingMs) * time.Millisecond
	e.state.Status = models.MatchTimerRunning
	e.state.UpdatedAt = now
	r.runLocked(e)

	r.notifyTransition(e.state)
	return true
}

// Stop stops the timer and clears its remaining time.
func (r *Registry) Stop(matchID, timerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.activeLocked(matchID, timerID)
	if e == nil {
		return false
	}
	r.cancelLocked(e)

	e.state.Status = models.MatchTimerStopped
	e.state.StartedAt = nil
	e.state.UpdatedAt = r.clock.Now()
	setRemaining(&e.state, 0)

	r.notifyTransition(e.state)
	return true
}

// SetDuration changes the duration and resets the remaining time to it. A
// running timer keeps running from the new value. A stopped or expired timer
// given a positive duration becomes paused so it can be resumed.
func (r *Registry) SetDuration(matchID, timerID string, durationSec int) bool {
	if durationSec < 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.activeLocked(matchID, timerID)
	if e == nil {
		return false
	}

	now := r.clock.Now()
	duration := time.Duration(durationSec) * time.Second
	e.state.DurationSec = durationSec
	e.state.UpdatedAt = now
	setRemaining(&e.state, duration)
	switch e.state.Status {
	case models.MatchTimerRunning:
		e.anchor = now
		e.anchorRemaining = duration
	case models.MatchTimerStopped, models.MatchTimerExpired:
		if duration > 0 {
			e.state.Status = models.MatchTimerPaused
		}
	}

	r.notifyTransition(e.state)
	return true
}

// Get returns the timer of the match.
func (r *Registry) Get(matchID string) (models.MatchTimerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.timers[matchID]
	if !ok {
		return models.MatchTimerState{}, false
	}
	return e.state.Clone(), true
}

// Remove cancels and forgets the timer of the match.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.timers[matchID]; ok {
		r.cancelLocked(e)
		delete(r.timers, matchID)
	}
}

// StopAll cancels every running timer, used on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for matchID, e := range r.timers {
		r.cancelLocked(e)
		log.Debug().Str("match_id", matchID).Msg("cancelled match timer on shutdown")
	}
}

func (r *Registry) activeLocked(matchID, timerID string) *entry {
	e, ok := r.timers[matchID]
	if !ok || e.state.TimerID != timerID {
		return nil
	}
	return e
}

func (r *Registry) cancelLocked(e *entry) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation++
}

// runLocked starts the tick loop of e under a new generation.
func (r *Registry) runLocked(e *entry) {
	e.generation++
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	ticker := r.clock.NewTicker(r.interval)
	go r.loop(ctx, ticker, e.state.MatchID, e.state.TimerID, e.generation)
}

func (r *Registry) loop(ctx context.Context, ticker clockwork.Ticker, matchID, timerID string, generation uint64) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !r.tick(matchID, timerID, generation) {
				return
			}
		}
	}
}

// tick reports whether the loop should keep running.
func (r *Registry) tick(matchID, timerID string, generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.activeLocked(matchID, timerID)
	if e == nil || e.generation != generation || e.state.Status != models.MatchTimerRunning {
		return false
	}

	now := r.clock.Now()
	remaining := r.remainingLocked(e, now)
	setRemaining(&e.state, remaining)
	e.state.UpdatedAt = now

	if remaining <= 0 {
		e.state.Status = models.MatchTimerExpired
		r.cancelLocked(e)
		log.Info().Str("match_id", matchID).Str("timer_id", timerID).Msg("match timer expired")
		r.notifyTransition(e.state)
		return false
	}

	if r.listener != nil {
		r.listener.OnTimerTick(e.state.Clone())
	}
	return true
}

func (r *Registry) remainingLocked(e *entry, now time.Time) time.Duration {
	return max(0, e.anchorRemaining-now.Sub(e.anchor))
}

func (r *Registry) notifyTransition(state models.MatchTimerState) {
	if r.listener != nil {
		r.listener.OnTimerTransition(state.Clone())
	}
}

func setRemaining(s *models.MatchTimerState, d time.Duration) {
	ms := d.Milliseconds()
	s.RemainingMs = ms
	s.RemainingSec = int((ms + 999) / 1000)
}
