// Package timer implements the board countdown. The countdown is lazy: while
// started, the stored remaining time is the value at the last start or
// resume and the live value is derived from the start timestamp on read.
package timer

import (
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
)

func epochMs(t time.Time) int64 {
	return t.UnixMilli()
}

func elapsedSec(t models.TimerState, now time.Time) int {
	if t.StartedAt == nil {
		return 0
	}
	ms := epochMs(now) - *t.StartedAt
	if ms < 0 {
		return 0
	}
	return int(ms / 1000)
}

// Start starts a countdown of durationSec seconds from now.
func Start(t *models.TimerState, durationSec int, now time.Time) {
	startedAt := epochMs(now)
	*t = models.TimerState{
		Status:       models.TimerStarted,
		DurationSec:  durationSec,
		RemainingSec: durationSec,
		StartedAt:    &startedAt,
	}
}

// Pause freezes a started countdown. It reports false when the timer is not
// started.
func Pause(t *models.TimerState, now time.Time) bool {
	if t.Status != models.TimerStarted || t.StartedAt == nil {
		return false
	}
	t.RemainingSec = max(0, t.RemainingSec-elapsedSec(*t, now))
	t.Status = models.TimerPaused
	t.StartedAt = nil
	return true
}

// Resume restarts a paused countdown from its frozen remaining time.
func Resume(t *models.TimerState, now time.Time) bool {
	if t.Status != models.TimerPaused {
		return false
	}
	startedAt := epochMs(now)
	t.Status = models.TimerStarted
	t.StartedAt = &startedAt
	return true
}

// Stop resets the countdown.
func Stop(t *models.TimerState) {
	*t = models.StoppedTimer()
}

// SetDuration changes the configured duration and resets the remaining time
// to it. A started countdown is re-anchored at now.
func SetDuration(t *models.TimerState, durationSec int, now time.Time) {
	t.DurationSec = durationSec
	t.RemainingSec = durationSec
	if t.Status == models.TimerStarted {
		startedAt := epochMs(now)
		t.StartedAt = &startedAt
	}
}

// Remaining returns the live remaining seconds.
func Remaining(t models.TimerState, now time.Time) int {
	if t.Status != models.TimerStarted {
		return t.RemainingSec
	}
	return max(0, t.RemainingSec-elapsedSec(t, now))
}

// View returns a copy of t with the live remaining time filled in.
func View(t models.TimerState, now time.Time) models.TimerState {
	out := t.Clone()
	out.RemainingSec = Remaining(t, now)
	return out
}

// Tick expires a started countdown whose remaining time reached zero. It
// reports whether the timer changed.
func Tick(t *models.TimerState, now time.Time) bool {
	if t.Status != models.TimerStarted {
		return false
	}
	if Remaining(*t, now) > 0 {
		return false
	}
	t.Status = models.TimerStopped
	t.RemainingSec = 0
	t.StartedAt = nil
	return true
}
