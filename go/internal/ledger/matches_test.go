package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/matchtimer"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu      sync.Mutex
	matches []models.Match
	ticks   []models.MatchTimerState
}

func (p *fakePublisher) PublishMatchState(m models.Match) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.matches = append(p.matches, m)
}

func (p *fakePublisher) PublishMatchTimerTick(t models.MatchTimerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, t)
}

func (p *fakePublisher) last() models.Match {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.matches[len(p.matches)-1]
}

func newTestManager() (*MatchStateManager, *matchtimer.Registry, *fakePublisher, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC))
	pub := &fakePublisher{}
	reg := matchtimer.NewRegistry(clock, matchtimer.DefaultInterval, nil)
	m := NewMatchStateManager(reg, pub, clock)
	reg.SetListener(m)
	return m, reg, pub, clock
}

func TestCreateMatchWithForcedID(t *testing.T) {
	m, reg, _, _ := newTestManager()
	defer reg.StopAll()

	req := models.CreateMatchRequest{
		Title: "Finale",
		Team1: models.MatchTeam{Name: "Rouges"},
		Team2: models.MatchTeam{Name: "Bleus"},
	}

	id, substituted := m.CreateMatch(req, "finale-2026")
	assert.Equal(t, "finale-2026", id)
	assert.False(t, substituted)

	again, substituted := m.CreateMatch(req, "finale-2026")
	assert.True(t, substituted)
	assert.NotEqual(t, "finale-2026", again)
	assert.NotEmpty(t, again)

	generated, substituted := m.CreateMatch(req, "")
	assert.False(t, substituted)
	assert.NotEmpty(t, generated)

	assert.Len(t, m.ListMatches(), 3)
	assert.Equal(t, "Rouges", m.GetMatch("finale-2026").Team1.Name)
}

func TestSetScoreIsAbsolute(t *testing.T) {
	m, reg, pub, _ := newTestManager()
	defer reg.StopAll()

	id, _ := m.CreateMatch(models.CreateMatchRequest{}, "")

	require.True(t, m.SetScore(id, 4, 2))
	require.True(t, m.SetScore(id, 1, 3))

	got := m.GetMatch(id)
	assert.Equal(t, 1, got.Team1.Score)
	assert.Equal(t, 3, got.Team2.Score)
	assert.Equal(t, 3, pub.last().Team2.Score)

	assert.False(t, m.SetScore(id, -1, 0))
	assert.False(t, m.SetScore("missing", 1, 1))
}

func TestAddPenaltyAppendsTimestampedEntries(t *testing.T) {
	m, reg, _, clock := newTestManager()
	defer reg.StopAll()

	id, _ := m.CreateMatch(models.CreateMatchRequest{}, "")

	require.True(t, m.AddPenalty(id, models.Team1, models.PenaltyMinor))
	clock.Advance(time.Minute)
	require.True(t, m.AddPenalty(id, models.Team1, models.PenaltyMinor))
	require.True(t, m.AddPenalty(id, models.Team2, models.PenaltyMajor))

	got := m.GetMatch(id).Penalties
	require.Len(t, got, 3)
	assert.Equal(t, models.PenaltyMinor, got[1].Kind)
	assert.Equal(t, got[0].At.Add(time.Minute), got[1].At)
	assert.Equal(t, models.Team2, got[2].Team)

	assert.False(t, m.AddPenalty(id, "team9", models.PenaltyMinor))
	assert.False(t, m.AddPenalty("missing", models.Team1, models.PenaltyMinor))
}

func TestUnknownMatchIsNoop(t *testing.T) {
	m, reg, pub, _ := newTestManager()
	defer reg.StopAll()

	assert.Nil(t, m.GetMatch("missing"))
	assert.Nil(t, m.StartTimer("missing", 30, "round"))
	assert.False(t, m.PauseTimer("missing", "t"))
	assert.False(t, m.DeleteMatch("missing"))
	assert.Empty(t, pub.matches)
}

func TestMatchTimerTransitionsUpdateRecord(t *testing.T) {
	m, reg, pub, clock := newTestManager()
	defer reg.StopAll()

	id, _ := m.CreateMatch(models.CreateMatchRequest{}, "m")

	started := m.StartTimer(id, 120, "improvisation")
	require.NotNil(t, started)

	got := m.GetMatch(id)
	require.NotNil(t, got.Timer)
	assert.Equal(t, started.TimerID, got.Timer.TimerID)
	assert.Equal(t, models.MatchTimerRunning, got.Timer.Status)

	clock.Advance(20 * time.Second)
	require.True(t, m.PauseTimer(id, started.TimerID))
	got = m.GetMatch(id)
	assert.Equal(t, models.MatchTimerPaused, got.Timer.Status)
	assert.Equal(t, 100, got.Timer.RemainingSec)
	assert.Equal(t, models.MatchTimerPaused, pub.last().Timer.Status)

	assert.False(t, m.StopTimer(id, "stale-id"))
	require.True(t, m.StopTimer(id, started.TimerID))
	assert.Equal(t, models.MatchTimerStopped, m.GetMatch(id).Timer.Status)
}

func TestDeleteMatchRemovesTimer(t *testing.T) {
	m, reg, _, _ := newTestManager()
	defer reg.StopAll()

	id, _ := m.CreateMatch(models.CreateMatchRequest{}, "")
	started := m.StartTimer(id, 60, "round")
	require.NotNil(t, started)

	require.True(t, m.DeleteMatch(id))
	_, ok := reg.Get(id)
	assert.False(t, ok)
	assert.Nil(t, m.GetMatch(id))
}
