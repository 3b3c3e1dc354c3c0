package timer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

// StateStore is what the timer service needs from the state store
type StateStore interface {
	Get() models.ScoreboardState
	Update(op string, fn func(*models.ScoreboardState) bool) bool
}

// TickPublisher receives the narrow timer event sent on every tick
type TickPublisher interface {
	PublishTimerTick(t models.TimerState)
}

// Service drives the board timer held in the state store
type Service struct {
	store StateStore
	clock clockwork.Clock
	ticks TickPublisher
}

// NewService creates a timer service. ticks may be nil.
func NewService(store StateStore, clock clockwork.Clock, ticks TickPublisher) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, clock: clock, ticks: ticks}
}

// StartTimer starts a countdown of durationSec seconds.
func (s *Service) StartTimer(durationSec int) bool {
	if durationSec < 0 {
		log.Warn().Int("duration_sec", durationSec).Msg("rejecting negative timer duration")
		return false
	}
	now := s.clock.Now()
	return s.store.Update("timer.start", func(st *models.ScoreboardState) bool {
		Start(&st.Timer, durationSec, now)
		return true
	})
}

// PauseTimer pauses a started countdown.
func (s *Service) PauseTimer() bool {
	now := s.clock.Now()
	return s.store.Update("timer.pause", func(st *models.ScoreboardState) bool {
		return Pause(&st.Timer, now)
	})
}

// ResumeTimer resumes a paused countdown.
func (s *Service) ResumeTimer() bool {
	now := s.clock.Now()
	return s.store.Update("timer.resume", func(st *models.ScoreboardState) bool {
		return Resume(&st.Timer, now)
	})
}

// StopTimer resets the countdown. It always succeeds.
func (s *Service) StopTimer() bool {
	return s.store.Update("timer.stop", func(st *models.ScoreboardState) bool {
		Stop(&st.Timer)
		return true
	})
}

// SetDuration changes the countdown duration.
func (s *Service) SetDuration(durationSec int) bool {
	if durationSec < 0 {
		return false
	}
	now := s.clock.Now()
	return s.store.Update("timer.set", func(st *models.ScoreboardState) bool {
		SetDuration(&st.Timer, durationSec, now)
		return true
	})
}

// Tick expires the countdown when it reached zero. It reports whether the
// timer changed.
func (s *Service) Tick() bool {
	now := s.clock.Now()
	current := s.store.Get().Timer
	if current.Status != models.TimerStarted || Remaining(current, now) > 0 {
		return false
	}
	return s.store.Update("timer.expire", func(st *models.ScoreboardState) bool {
		return Tick(&st.Timer, now)
	})
}

// Current returns the timer with its live remaining time.
func (s *Service) Current() models.TimerState {
	return View(s.store.Get().Timer, s.clock.Now())
}

// Run ticks the timer every interval until ctx is cancelled, publishing the
// live value while the countdown runs.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("board timer loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("board timer loop stopped")
			return
		case <-ticker.Chan():
			if s.Tick() {
				log.Info().Msg("board timer expired")
				continue
			}
			current := s.Current()
			if current.Status == models.TimerStarted && s.ticks != nil {
				s.ticks.PublishTimerTick(current)
			}
		}
	}
}
