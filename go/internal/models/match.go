package models

import "time"

// MatchStatus defines the lifecycle of a match in the multi-match ledger.
type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
)

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusScheduled, MatchStatusLive, MatchStatusFinished:
		return true
	}
	return false
}

// PenaltyEntry is one timestamped penalty given to a team of a match
type PenaltyEntry struct {
	Team TeamID      `json:"team"`
	Kind PenaltyKind `json:"kind"`
	At   time.Time   `json:"at"`
}

// MatchTeam is a team as known to the multi-match ledger
type MatchTeam struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Score int    `json:"score"`
}

// Match is one match tracked by the multi-match ledger
type Match struct {
	ID        string           `json:"id"`
	Title     string           `json:"title,omitempty"`
	Status    MatchStatus      `json:"status"`
	Team1     MatchTeam        `json:"team1"`
	Team2     MatchTeam        `json:"team2"`
	Penalties []PenaltyEntry   `json:"penalties"`
	Rounds    []RoundConfig    `json:"rounds"`
	Timer     *MatchTimerState `json:"timer,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy of the match.
func (m Match) Clone() Match {
	out := m
	out.Penalties = append([]PenaltyEntry(nil), m.Penalties...)
	out.Rounds = cloneConfigs(m.Rounds)
	if m.Timer != nil {
		t := m.Timer.Clone()
		out.Timer = &t
	}
	return out
}

// CreateMatchRequest is the payload used to create a match
type CreateMatchRequest struct {
	Title  string        `json:"title,omitempty"`
	Team1  MatchTeam     `json:"team1"`
	Team2  MatchTeam     `json:"team2"`
	Rounds []RoundConfig `json:"rounds,omitempty"`
}
