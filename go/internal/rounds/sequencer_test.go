package rounds

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	mu     sync.Mutex
	states []models.ScoreboardState
}

func (r *captureReporter) Render(state models.ScoreboardState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

type captureArchiver struct {
	mu      sync.Mutex
	records []models.RoundHistory
}

func (a *captureArchiver) ArchiveRound(record models.RoundHistory) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, record)
}

func round(title string) models.RoundConfig {
	return models.RoundConfig{
		Number:     1,
		Title:      title,
		Theme:      "au bureau",
		Type:       models.RoundTypeShortform,
		MinPlayers: 2,
		MaxPlayers: 4,
	}
}

func newTestSequencer(opts ...Option) (*Sequencer, *store.Store) {
	st := store.New(nil)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC))
	return NewSequencer(st, clock, opts...), st
}

func TestSaveRoundResultsRequiresActiveRound(t *testing.T) {
	seq, st := newTestSequencer()

	err := seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 1}})
	assert.ErrorIs(t, err, ErrNoActiveRound)
	assert.Empty(t, st.Get().Rounds.History)
	assert.Equal(t, uint64(0), st.Seq())
}

func TestPatchedFlagCannotActivatePlaceholder(t *testing.T) {
	seq, st := newTestSequencer()

	notBetween := false
	assert.False(t, st.Patch(store.StatePatch{Rounds: &store.RoundsPatch{IsBetweenRounds: &notBetween}}))
	assert.True(t, st.Get().Rounds.IsBetweenRounds)

	err := seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 1}})
	assert.ErrorIs(t, err, ErrNoActiveRound)
	assert.Empty(t, st.Get().Rounds.History)

	current := round("Patchée")
	require.True(t, st.Patch(store.StatePatch{Rounds: &store.RoundsPatch{Current: &current}}))
	require.NoError(t, seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 1}}))

	history := st.Get().Rounds.History
	require.Len(t, history, 1)
	assert.Equal(t, "Patchée", history[0].Title)
	assert.Equal(t, 1, history[0].Number)
}

func TestSaveRoundResultsAppendsHistory(t *testing.T) {
	archive := &captureArchiver{}
	seq, st := newTestSequencer(WithArchiver(archive))

	penalties := models.TeamPenalties{
		Team1: models.Penalties{Major: 2, Minor: 1},
		Team2: models.Penalties{Major: 0, Minor: 3},
	}
	for i := 1; i <= 3; i++ {
		require.True(t, seq.StartRound(round("Comparée")))
		before := len(st.Get().Rounds.History)

		require.NoError(t, seq.SaveRoundResults(RoundResult{
			Points:    models.TeamPoints{Team1: 2, Team2: 1},
			Penalties: penalties,
			Notes:     "belle impro",
		}))

		history := st.Get().Rounds.History
		require.Len(t, history, before+1)
		assert.Equal(t, before+1, history[len(history)-1].Number)
	}

	got := st.Get()
	last := got.Rounds.History[2]
	assert.Equal(t, penalties, last.Penalties, "penalties are stored verbatim")
	assert.Equal(t, "belle impro", last.Notes)
	assert.Equal(t, 6, got.Team1.Score)
	assert.Equal(t, 3, got.Team2.Score)
	assert.Equal(t, models.GameStatusLive, got.Rounds.GameStatus)
	assert.Len(t, archive.records, 3)
}

func TestQueueWinsOverDraft(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.StartRound(round("Première")))
	draft := round("Brouillon")
	draft.Type = models.RoundTypeMusical
	require.True(t, seq.SetNextRoundDraft(draft))
	require.True(t, seq.EnqueueRound(round("En file")))
	draftBefore := st.Get().Rounds.NextRoundDraft

	require.NoError(t, seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 1}}))

	got := st.Get().Rounds
	assert.False(t, got.IsBetweenRounds)
	assert.Equal(t, "En file", got.Current.Title)
	assert.Equal(t, 2, got.Current.Number)
	assert.Empty(t, got.Upcoming)
	assert.Equal(t, draftBefore, got.NextRoundDraft, "draft is untouched")
}

func TestDraftPromotedWhenQueueEmpty(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.StartRound(round("Première")))
	require.True(t, seq.SetNextRoundDraft(round("Brouillon")))

	require.NoError(t, seq.SaveRoundResults(RoundResult{}))

	got := st.Get().Rounds
	assert.Equal(t, "Brouillon", got.Current.Title)
	assert.Equal(t, 2, got.Current.Number)
	assert.Nil(t, got.NextRoundDraft, "draft is consumed")
}

func TestInvalidQueueHeadFallsBackToDraft(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.StartRound(round("Première")))
	require.True(t, seq.SetNextRoundDraft(round("Brouillon")))
	require.True(t, st.Update("upcoming.set", func(s *models.ScoreboardState) bool {
		s.Rounds.Upcoming = []models.RoundConfig{{Number: 3, Type: models.RoundTypeLongform, MinPlayers: 4, MaxPlayers: 2}}
		return true
	}))

	require.NoError(t, seq.SaveRoundResults(RoundResult{}))

	got := st.Get().Rounds
	assert.Equal(t, "Brouillon", got.Current.Title)
	assert.Len(t, got.Upcoming, 1, "invalid head stays queued")
}

func TestNothingStagedGoesBetweenRounds(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.StartRound(round("Seule")))
	require.NoError(t, seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team2: 3}}))

	got := st.Get()
	assert.True(t, got.Rounds.IsBetweenRounds)
	assert.Equal(t, models.PlaceholderRound(), got.Rounds.Current)
	assert.Equal(t, 3, got.Team2.Score)
}

func TestAutoAdvanceSettingOff(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.ToggleSetting(SettingAutoAdvance))
	require.True(t, seq.StartRound(round("Première")))
	require.True(t, seq.EnqueueRound(round("Suivante")))

	require.NoError(t, seq.SaveRoundResults(RoundResult{}))

	got := st.Get().Rounds
	assert.True(t, got.IsBetweenRounds)
	assert.Len(t, got.Upcoming, 1)
}

func TestManualModeNeverAdvances(t *testing.T) {
	seq, st := newTestSequencer()
	require.True(t, st.Update("scoring.mode", func(s *models.ScoreboardState) bool {
		s.ScoringMode = models.ScoringModeManual
		s.Team1.Score = 5
		return true
	}))

	require.True(t, seq.StartRound(round("Première")))
	require.True(t, seq.EnqueueRound(round("Suivante")))
	require.NoError(t, seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 3, Team2: 3}}))

	got := st.Get()
	assert.Equal(t, 5, got.Team1.Score, "manual scores are untouched")
	assert.Equal(t, 0, got.Team2.Score)
	assert.True(t, got.Rounds.IsBetweenRounds)
	assert.Len(t, got.Rounds.Upcoming, 1)
	assert.Len(t, got.Rounds.History, 1)
	assert.Equal(t, models.GameStatusNotStarted, got.Rounds.GameStatus)
}

func TestStartGameWithoutStagedRoundStillGoesLive(t *testing.T) {
	seq, st := newTestSequencer()

	assert.False(t, seq.StartGame())

	got := st.Get().Rounds
	assert.Equal(t, models.GameStatusLive, got.GameStatus)
	assert.True(t, got.IsBetweenRounds)
	assert.Equal(t, models.PlaceholderRound(), got.Current)
}

func TestStartGamePromotesStagedRound(t *testing.T) {
	t.Run("queue head", func(t *testing.T) {
		seq, st := newTestSequencer()
		require.True(t, seq.EnqueueRound(round("Ouverture")))
		require.True(t, seq.SetNextRoundDraft(round("Brouillon")))

		assert.True(t, seq.StartGame())
		got := st.Get().Rounds
		assert.Equal(t, "Ouverture", got.Current.Title)
		assert.Equal(t, 1, got.Current.Number)
		assert.NotNil(t, got.NextRoundDraft)
	})

	t.Run("draft", func(t *testing.T) {
		seq, st := newTestSequencer()
		require.True(t, seq.SetNextRoundDraft(round("Brouillon")))

		assert.True(t, seq.StartGame())
		got := st.Get().Rounds
		assert.Equal(t, "Brouillon", got.Current.Title)
		assert.Nil(t, got.NextRoundDraft)
	})

	t.Run("manual mode needs nothing staged", func(t *testing.T) {
		seq, st := newTestSequencer()
		require.True(t, st.Update("scoring.mode", func(s *models.ScoreboardState) bool {
			s.ScoringMode = models.ScoringModeManual
			return true
		}))

		assert.True(t, seq.StartGame())
		assert.Equal(t, models.GameStatusLive, st.Get().Rounds.GameStatus)
		assert.True(t, st.Get().Rounds.IsBetweenRounds)
	})
}

func TestFinishGame(t *testing.T) {
	reporter := &captureReporter{}
	seq, st := newTestSequencer(WithReporter(reporter))

	require.True(t, seq.StartRound(round("Première")))
	require.True(t, seq.EnqueueRound(round("Suivante")))
	require.True(t, seq.EnqueueRound(round("Encore")))
	require.NoError(t, seq.SaveRoundResults(RoundResult{Points: models.TeamPoints{Team1: 1}}))
	require.True(t, seq.SetNextRoundDraft(round("Brouillon")))

	require.True(t, seq.FinishGame())

	got := st.Get().Rounds
	assert.Equal(t, models.GameStatusFinished, got.GameStatus)
	assert.Nil(t, got.NextRoundDraft)
	assert.Empty(t, got.Upcoming)
	assert.True(t, got.IsBetweenRounds)
	assert.Len(t, got.History, 1, "history is kept for the report")

	require.Len(t, reporter.states, 1)
	assert.Equal(t, st.Get(), reporter.states[0])

	assert.False(t, seq.FinishGame(), "finishing twice is a no-op")
	assert.Len(t, reporter.states, 1)
}

func TestRoundFlow(t *testing.T) {
	seq, st := newTestSequencer()

	bad := round("Invalide")
	bad.MinPlayers = 0
	assert.False(t, seq.StartRound(bad))

	require.True(t, seq.StartRound(round("Libre")))
	assert.False(t, st.Get().Rounds.IsBetweenRounds)

	require.True(t, seq.EndRound())
	assert.True(t, st.Get().Rounds.IsBetweenRounds)
	assert.Empty(t, st.Get().Rounds.History, "ending a round records nothing")
	assert.False(t, seq.EndRound())

	limit := 180
	require.True(t, seq.UpdateSettings(models.RoundSettings{AutoAdvance: true, DefaultTimeLimit: &limit}))
	staged := seq.CreateNextRound(round("Avec minuterie"))
	require.NotNil(t, staged)
	require.NotNil(t, staged.TimeLimit)
	assert.Equal(t, 180, *staged.TimeLimit)
	assert.Equal(t, 1, staged.Number)

	require.True(t, seq.StartGame())
	require.NoError(t, seq.SaveRoundResults(RoundResult{}))
	require.True(t, seq.ResetRounds())
	got := st.Get().Rounds
	assert.Empty(t, got.History)
	assert.Equal(t, models.GameStatusNotStarted, got.GameStatus)
	assert.Equal(t, 180, *got.Settings.DefaultTimeLimit, "settings survive a reset")
}

func TestToggleSetting(t *testing.T) {
	seq, st := newTestSequencer()

	require.True(t, seq.ToggleSetting(SettingShowUpcoming))
	assert.False(t, st.Get().Rounds.Settings.ShowUpcoming)
	require.True(t, seq.ToggleSetting(SettingShowUpcoming))
	assert.True(t, st.Get().Rounds.Settings.ShowUpcoming)

	assert.False(t, seq.ToggleSetting("confetti"))
	zero := 0
	assert.False(t, seq.UpdateSettings(models.RoundSettings{DefaultTimeLimit: &zero}))
}

func TestUpcomingQueueManagement(t *testing.T) {
	seq, st := newTestSequencer()

	for _, title := range []string{"A", "B", "C", "D"} {
		require.True(t, seq.EnqueueRound(round(title)))
	}
	titles := func() []string {
		var out []string
		for _, c := range st.Get().Rounds.Upcoming {
			out = append(out, c.Title)
		}
		return out
	}

	require.True(t, seq.ReorderUpcoming(0, 2))
	assert.Equal(t, []string{"B", "C", "A", "D"}, titles())

	require.True(t, seq.ReorderUpcoming(3, 0))
	assert.Equal(t, []string{"D", "B", "C", "A"}, titles())

	require.True(t, seq.RemoveUpcoming(1))
	assert.Equal(t, []string{"D", "C", "A"}, titles())

	assert.False(t, seq.RemoveUpcoming(3))
	assert.False(t, seq.ReorderUpcoming(-1, 0))

	require.True(t, seq.ClearUpcoming())
	assert.Empty(t, titles())
	assert.False(t, seq.ClearUpcoming())

	require.True(t, seq.SetNextRoundDraft(round("X")))
	require.True(t, seq.ClearNextRoundDraft())
	assert.Nil(t, st.Get().Rounds.NextRoundDraft)
	assert.False(t, seq.ClearNextRoundDraft())
}

func TestStartNextRound(t *testing.T) {
	seq, st := newTestSequencer()

	assert.False(t, seq.StartNextRound(), "nothing staged")

	require.True(t, seq.EnqueueRound(round("File")))
	require.True(t, seq.StartNextRound())
	got := st.Get().Rounds
	assert.Equal(t, "File", got.Current.Title)
	assert.Equal(t, 1, got.Current.Number)
	assert.Empty(t, got.Upcoming)

	require.True(t, seq.SetNextRoundDraft(round("Brouillon")))
	assert.False(t, seq.StartNextRound(), "a round is already in progress")
	assert.NotNil(t, st.Get().Rounds.NextRoundDraft)
}

func TestCheckRoundConfig(t *testing.T) {
	zero := 0
	positive := 90

	tests := []struct {
		name   string
		mutate func(*models.RoundConfig)
		valid  bool
	}{
		{name: "valid", mutate: func(*models.RoundConfig) {}, valid: true},
		{name: "with time limit", mutate: func(c *models.RoundConfig) { c.TimeLimit = &positive }, valid: true},
		{name: "zero number", mutate: func(c *models.RoundConfig) { c.Number = 0 }},
		{name: "missing type", mutate: func(c *models.RoundConfig) { c.Type = "" }},
		{name: "unknown type", mutate: func(c *models.RoundConfig) { c.Type = "opera" }},
		{name: "no players", mutate: func(c *models.RoundConfig) { c.MinPlayers = 0 }},
		{name: "max below min", mutate: func(c *models.RoundConfig) { c.MaxPlayers = 1 }},
		{name: "zero time limit", mutate: func(c *models.RoundConfig) { c.TimeLimit = &zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := round("x")
			tt.mutate(&c)
			assert.Equal(t, tt.valid, ValidRoundConfig(c), CheckRoundConfig(c))
		})
	}
}
