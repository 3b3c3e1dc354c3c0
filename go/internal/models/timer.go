package models

import "time"

// TimerStatus is the status of the board's lazy timer.
type TimerStatus string

const (
	TimerStopped TimerStatus = "stopped"
	TimerStarted TimerStatus = "started"
	TimerPaused  TimerStatus = "paused"
)

// Valid reports whether s is one of the known statuses.
func (s TimerStatus) Valid() bool {
	return s == TimerStopped || s == TimerStarted || s == TimerPaused
}

// TimerState is the single board countdown. While started, RemainingSec is
// the value at the last start/resume and must be recomputed from StartedAt.
type TimerState struct {
	Status       TimerStatus `json:"status"`
	DurationSec  int         `json:"durationSec"`
	RemainingSec int         `json:"remainingSec"`
	StartedAt    *int64      `json:"startedAt"` // epoch ms
}

// StoppedTimer returns the reset timer.
func StoppedTimer() TimerState {
	return TimerState{Status: TimerStopped}
}

// Clone returns an independent copy of the timer.
func (t TimerState) Clone() TimerState {
	if t.StartedAt != nil {
		v := *t.StartedAt
		t.StartedAt = &v
	}
	return t
}

// MatchTimerStatus is the status of a per-match pushed timer.
type MatchTimerStatus string

const (
	MatchTimerStopped MatchTimerStatus = "stopped"
	MatchTimerRunning MatchTimerStatus = "running"
	MatchTimerPaused  MatchTimerStatus = "paused"
	MatchTimerExpired MatchTimerStatus = "expired"
)

// MatchTimerState is a countdown owned by one match of the multi-match ledger
type MatchTimerState struct {
	MatchID      string           `json:"matchId"`
	TimerID      string           `json:"timerId"`
	Type         string           `json:"type"`
	Status       MatchTimerStatus `json:"status"`
	DurationSec  int              `json:"durationSec"`
	RemainingMs  int64            `json:"remainingMs"`
	RemainingSec int              `json:"remainingSec"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Clone returns an independent copy of the timer.
func (t MatchTimerState) Clone() MatchTimerState {
	if t.StartedAt != nil {
		v := *t.StartedAt
		t.StartedAt = &v
	}
	return t
}
