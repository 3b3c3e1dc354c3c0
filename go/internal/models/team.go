package models

// TeamID identifies one of the two teams on the board.
type TeamID string

const (
	Team1 TeamID = "team1"
	Team2 TeamID = "team2"
)

// Valid reports whether the id names one of the two board teams.
func (id TeamID) Valid() bool {
	return id == Team1 || id == Team2
}

// PenaltyKind is the severity of a penalty.
type PenaltyKind string

const (
	PenaltyMajor PenaltyKind = "major"
	PenaltyMinor PenaltyKind = "minor"
)

// Valid reports whether the kind is major or minor.
func (k PenaltyKind) Valid() bool {
	return k == PenaltyMajor || k == PenaltyMinor
}

// Penalties holds the penalty counters for one team.
type Penalties struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// Team represents one side of the match on the board
type Team struct {
	ID        TeamID    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Score     int       `json:"score"`
	Penalties Penalties `json:"penalties"`
}

// TeamUpdate carries the optional fields of a team edit
type TeamUpdate struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// DefaultTeam returns the team as it looks on a fresh board.
func DefaultTeam(id TeamID) Team {
	t := Team{ID: id, Name: "Équipe 1", Color: "#1e88e5"}
	if id == Team2 {
		t.Name = "Équipe 2"
		t.Color = "#e53935"
	}
	return t
}

// TeamPoints is a per-team integer pair used for round points.
type TeamPoints struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

// For returns the value for the given team.
func (p TeamPoints) For(id TeamID) int {
	if id == Team2 {
		return p.Team2
	}
	return p.Team1
}

// TeamPenalties is a per-team penalty pair used in round history.
type TeamPenalties struct {
	Team1 Penalties `json:"team1"`
	Team2 Penalties `json:"team2"`
}
