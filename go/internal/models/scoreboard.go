package models

// ScoringMode defines how team scores change.
type ScoringMode string

const (
	// ScoringModeRound means scores only change when a round completes.
	ScoringModeRound ScoringMode = "round"
	// ScoringModeManual means operators increment and decrement scores directly.
	ScoringModeManual ScoringMode = "manual"
)

// Valid reports whether m is a known scoring mode.
func (m ScoringMode) Valid() bool {
	return m == ScoringModeRound || m == ScoringModeManual
}

const (
	// ControlSourceLocal marks the board as driven by the local control surface.
	ControlSourceLocal = "local"
	// ControlSourcePacing marks the board as driven by the mon-pacing device.
	ControlSourcePacing = "mon-pacing"
)

// RemoteControl tells surfaces which actor is currently driving the board.
type RemoteControl struct {
	Source string `json:"source"`
	Locked bool   `json:"locked"`
}

// Display holds presentation toggles. The core carries them without
// interpreting them.
type Display struct {
	ShowTimer         bool   `json:"showTimer"`
	ShowPenalties     bool   `json:"showPenalties"`
	ShowRoundInfo     bool   `json:"showRoundInfo"`
	BackgroundMessage string `json:"backgroundMessage,omitempty"`
}

// ScoreboardState is the full snapshot of the board
type ScoreboardState struct {
	Team1         Team          `json:"team1"`
	Team2         Team          `json:"team2"`
	Rounds        RoundState    `json:"rounds"`
	Timer         TimerState    `json:"timer"`
	Display       Display       `json:"display"`
	RemoteControl RemoteControl `json:"remoteControl"`
	ScoringMode   ScoringMode   `json:"scoringMode"`
}

// DefaultScoreboardState returns the state of a fresh board.
func DefaultScoreboardState() ScoreboardState {
	return ScoreboardState{
		Team1:         DefaultTeam(Team1),
		Team2:         DefaultTeam(Team2),
		Rounds:        DefaultRoundState(),
		Timer:         StoppedTimer(),
		Display:       Display{ShowTimer: true, ShowPenalties: true, ShowRoundInfo: true},
		RemoteControl: RemoteControl{Source: ControlSourceLocal},
		ScoringMode:   ScoringModeRound,
	}
}

// Team returns a pointer to the team with the given id, or nil.
func (s *ScoreboardState) Team(id TeamID) *Team {
	switch id {
	case Team1:
		return &s.Team1
	case Team2:
		return &s.Team2
	}
	return nil
}

// Clone returns a deep copy of the snapshot.
func (s ScoreboardState) Clone() ScoreboardState {
	out := s
	out.Rounds = s.Rounds.Clone()
	out.Timer = s.Timer.Clone()
	return out
}
