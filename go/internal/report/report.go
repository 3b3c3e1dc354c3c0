// Package report writes the end-of-game summary as a YAML file.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Report is the summary of a finished game
type Report struct {
	GeneratedAt time.Time   `yaml:"generatedAt"`
	Winner      string      `yaml:"winner"`
	Teams       []TeamLine  `yaml:"teams"`
	Rounds      []RoundLine `yaml:"rounds"`
	Totals      RoundTotals `yaml:"totals"`
	ScoringMode string      `yaml:"scoringMode"`
}

// TeamLine is a team's final standing
type TeamLine struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Score  int    `yaml:"score"`
	Majors int    `yaml:"majorPenalties"`
	Minors int    `yaml:"minorPenalties"`
}

// RoundLine is one played round
type RoundLine struct {
	Number int    `yaml:"number"`
	Title  string `yaml:"title,omitempty"`
	Type   string `yaml:"type"`
	Theme  string `yaml:"theme,omitempty"`
	Mixed  bool   `yaml:"mixed"`
	Team1  int    `yaml:"team1Points"`
	Team2  int    `yaml:"team2Points"`
	Notes  string `yaml:"notes,omitempty"`
}

// RoundTotals sums the per-round points and penalties of the history.
type RoundTotals struct {
	Team1Points    int `yaml:"team1Points"`
	Team2Points    int `yaml:"team2Points"`
	Team1Penalties int `yaml:"team1Penalties"`
	Team2Penalties int `yaml:"team2Penalties"`
}

// Build summarises a final snapshot.
func Build(st models.ScoreboardState, at time.Time) Report {
	r := Report{
		GeneratedAt: at.UTC(),
		ScoringMode: string(st.ScoringMode),
		Teams: []TeamLine{
			teamLine(st.Team1),
			teamLine(st.Team2),
		},
		Rounds: make([]RoundLine, 0, len(st.Rounds.History)),
	}

	switch {
	case st.Team1.Score > st.Team2.Score:
		r.Winner = st.Team1.Name
	case st.Team2.Score > st.Team1.Score:
		r.Winner = st.Team2.Name
	default:
		r.Winner = "draw"
	}

	for _, h := range st.Rounds.History {
		r.Rounds = append(r.Rounds, RoundLine{
			Number: h.Number,
			Title:  h.Title,
			Type:   string(h.Type),
			Theme:  h.Theme,
			Mixed:  h.IsMixed,
			Team1:  h.Points.Team1,
			Team2:  h.Points.Team2,
			Notes:  h.Notes,
		})
		r.Totals.Team1Points += h.Points.Team1
		r.Totals.Team2Points += h.Points.Team2
		r.Totals.Team1Penalties += h.Penalties.Team1.Major + h.Penalties.Team1.Minor
		r.Totals.Team2Penalties += h.Penalties.Team2.Major + h.Penalties.Team2.Minor
	}
	return r
}

func teamLine(t models.Team) TeamLine {
	return TeamLine{
		ID:     string(t.ID),
		Name:   t.Name,
		Score:  t.Score,
		Majors: t.Penalties.Major,
		Minors: t.Penalties.Minor,
	}
}

// Writer renders reports in the background. Render never blocks the
// caller; a report that arrives while the queue is full is dropped.
type Writer struct {
	dir   string
	clock clockwork.Clock
	queue chan models.ScoreboardState
}

// NewWriter creates a writer storing reports under dir.
func NewWriter(dir string, clock clockwork.Clock) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{dir: dir, clock: clock, queue: make(chan models.ScoreboardState, 4)}
}

// Render queues a final snapshot for writing.
func (w *Writer) Render(st models.ScoreboardState) {
	select {
	case w.queue <- st:
	default:
		log.Warn().Msg("report queue full, dropping game report")
	}
}

// Run writes queued reports until ctx is done.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-w.queue:
			path, err := w.Write(st)
			if err != nil {
				log.Error().Err(err).Msg("failed to write game report")
				continue
			}
			log.Info().Str("path", path).Msg("game report written")
		}
	}
}

// Write renders st to a new file and returns its path.
func (w *Writer) Write(st models.ScoreboardState) (string, error) {
	now := w.clock.Now()
	out, err := yaml.Marshal(Build(st, now))
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, ".report-*.yaml")
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}

	path := filepath.Join(w.dir, "report-"+now.UTC().Format("20060102-150405")+".yaml")
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}
