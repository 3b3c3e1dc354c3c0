package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	mu   sync.Mutex
	seqs []uint64
	ops  []string
	last models.ScoreboardState
}

func (r *recordingSubscriber) OnStateReplaced(seq uint64, op string, state models.ScoreboardState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs = append(r.seqs, seq)
	r.ops = append(r.ops, op)
	r.last = state
}

type memPersister struct {
	mu     sync.Mutex
	saved  []models.ScoreboardState
	loaded *models.ScoreboardState
	err    error
	block  chan struct{}
}

func (p *memPersister) Save(_ context.Context, state models.ScoreboardState) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, state)
	return p.err
}

func (p *memPersister) Load(context.Context) (*models.ScoreboardState, error) {
	return p.loaded, p.err
}

func (p *memPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

func (p *memPersister) lastSaved() models.ScoreboardState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saved[len(p.saved)-1]
}

func TestGetReturnsDeepCopy(t *testing.T) {
	s := New(nil)

	got := s.Get()
	got.Team1.Name = "changed"
	got.Rounds.Upcoming = append(got.Rounds.Upcoming, models.RoundConfig{Title: "x"})

	fresh := s.Get()
	assert.NotEqual(t, "changed", fresh.Team1.Name)
	assert.Empty(t, fresh.Rounds.Upcoming)
}

func TestUpdateBroadcastsInOrder(t *testing.T) {
	s := New(nil)
	sub := &recordingSubscriber{}
	s.Subscribe(sub)

	for i := 1; i <= 5; i++ {
		score := i
		require.True(t, s.Update("score.set", func(st *models.ScoreboardState) bool {
			st.Team1.Score = score
			return true
		}))
	}

	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sub.seqs)
	assert.Equal(t, 5, sub.last.Team1.Score)
	assert.Equal(t, uint64(5), s.Seq())
}

func TestRejectedUpdateChangesNothing(t *testing.T) {
	s := New(nil)
	sub := &recordingSubscriber{}
	s.Subscribe(sub)

	assert.False(t, s.Update("noop", func(st *models.ScoreboardState) bool {
		st.Team1.Score = 42
		return false
	}))
	assert.Equal(t, 0, s.Get().Team1.Score)
	assert.Empty(t, sub.seqs)
}

func TestPanickingUpdateIsRecovered(t *testing.T) {
	s := New(nil)

	assert.NotPanics(t, func() {
		ok := s.Update("boom", func(st *models.ScoreboardState) bool {
			st.Team2.Score = 9
			panic("bad mutation")
		})
		assert.False(t, ok)
	})
	assert.Equal(t, 0, s.Get().Team2.Score)

	assert.True(t, s.Update("after", func(st *models.ScoreboardState) bool { return true }), "store still usable")
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	s := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("inc", func(st *models.ScoreboardState) bool {
				st.Team1.Score++
				return true
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Get().Team1.Score)
	assert.Equal(t, uint64(50), s.Seq())
}

func TestPersistCoalescesToLatest(t *testing.T) {
	p := &memPersister{block: make(chan struct{})}
	s := New(p)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	for i := 1; i <= 10; i++ {
		score := i
		s.Update("score.set", func(st *models.ScoreboardState) bool {
			st.Team1.Score = score
			return true
		})
	}
	close(p.block)

	require.Eventually(t, func() bool {
		return p.count() > 0 && p.lastSaved().Team1.Score == 10
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, p.count(), 3, "intermediate snapshots are dropped")

	cancel()
	<-done
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	p := &memPersister{err: errors.New("disk full")}
	s := New(p)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.True(t, s.Update("score.set", func(st *models.ScoreboardState) bool {
		st.Team2.Score = 3
		return true
	}))
	require.Eventually(t, func() bool { return p.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, s.Get().Team2.Score)
}

func TestLoadNormalizesSnapshot(t *testing.T) {
	loaded := models.DefaultScoreboardState()
	loaded.Team1.Name = "Restored"
	loaded.Rounds.History = nil
	loaded.Rounds.Upcoming = nil
	loaded.Rounds.Current = models.RoundConfig{Number: 4, Title: "stale"}
	loaded.Rounds.IsBetweenRounds = true
	loaded.ScoringMode = ""

	s := New(&memPersister{loaded: &loaded})
	require.NoError(t, s.Load(context.Background()))

	got := s.Get()
	assert.Equal(t, "Restored", got.Team1.Name)
	assert.NotNil(t, got.Rounds.History)
	assert.NotNil(t, got.Rounds.Upcoming)
	assert.Equal(t, models.PlaceholderRound(), got.Rounds.Current)
	assert.Equal(t, models.ScoringModeRound, got.ScoringMode)
}

func TestLoadWithoutSnapshotKeepsDefault(t *testing.T) {
	s := New(&memPersister{})
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, models.DefaultScoreboardState(), s.Get())

	failing := New(&memPersister{err: errors.New("unreachable")})
	assert.Error(t, failing.Load(context.Background()))
}

func TestPatchDeepMergesTeams(t *testing.T) {
	s := New(nil)
	name := "Les Verts"
	major := 2
	require.True(t, s.Patch(StatePatch{Team1: &TeamPatch{
		Name:      &name,
		Penalties: &PenaltiesPatch{Major: &major},
	}}))

	got := s.Get().Team1
	assert.Equal(t, "Les Verts", got.Name)
	assert.Equal(t, models.DefaultTeam(models.Team1).Color, got.Color)
	assert.Equal(t, models.Penalties{Major: 2}, got.Penalties)
}

func TestPatchRounds(t *testing.T) {
	s := New(nil)
	current := models.RoundConfig{Number: 1, Title: "Comparée", Type: models.RoundTypeShortform, MinPlayers: 2, MaxPlayers: 4}
	autoAdvance := false
	require.True(t, s.Patch(StatePatch{Rounds: &RoundsPatch{
		Current:  &current,
		Settings: &SettingsPatch{AutoAdvance: &autoAdvance},
	}}))

	got := s.Get().Rounds
	assert.Equal(t, "Comparée", got.Current.Title)
	assert.False(t, got.IsBetweenRounds)
	assert.False(t, got.Settings.AutoAdvance)
	assert.True(t, got.Settings.ShowUpcoming, "unmentioned settings survive")

	between := true
	require.True(t, s.Patch(StatePatch{Rounds: &RoundsPatch{IsBetweenRounds: &between}}))
	assert.Equal(t, models.PlaceholderRound(), s.Get().Rounds.Current)
}

func TestPatchRejectsEmptyAndInvalid(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Patch(StatePatch{}))

	mode := models.ScoringMode("chaos")
	assert.False(t, s.Patch(StatePatch{ScoringMode: &mode}))
	assert.Equal(t, uint64(0), s.Seq())
}

func TestPatchKeepsInvariants(t *testing.T) {
	at := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	playable := models.RoundConfig{Number: 1, Type: models.RoundTypeLongform, MinPlayers: 2, MaxPlayers: 6}
	noType := models.RoundConfig{Number: 1, MinPlayers: 2, MaxPlayers: 6}
	reversed := models.RoundConfig{Number: 1, Type: models.RoundTypeMusical, MinPlayers: 5, MaxPlayers: 2}
	notBetween := false
	between := true
	unknownStatus := models.GameStatus("halftime")
	live := models.GameStatusLive
	five := 5

	tests := []struct {
		name  string
		setup *StatePatch
		patch StatePatch
		ok    bool
		check func(t *testing.T, st models.ScoreboardState)
	}{
		{
			name:  "started timer without start instant is stamped",
			patch: StatePatch{Timer: &models.TimerState{Status: models.TimerStarted, DurationSec: 60, RemainingSec: 60}},
			ok:    true,
			check: func(t *testing.T, st models.ScoreboardState) {
				require.NotNil(t, st.Timer.StartedAt)
				assert.Equal(t, at.UnixMilli(), *st.Timer.StartedAt)
			},
		},
		{
			name:  "paused timer drops its start instant",
			patch: StatePatch{Timer: &models.TimerState{Status: models.TimerPaused, RemainingSec: 20, StartedAt: new(int64)}},
			ok:    true,
			check: func(t *testing.T, st models.ScoreboardState) {
				assert.Nil(t, st.Timer.StartedAt)
			},
		},
		{
			name:  "unknown timer status",
			patch: StatePatch{Timer: &models.TimerState{Status: "running"}},
		},
		{
			name:  "negative remaining time",
			patch: StatePatch{Timer: &models.TimerState{Status: models.TimerPaused, RemainingSec: -5}},
		},
		{
			name:  "leaving between rounds onto the placeholder",
			patch: StatePatch{Rounds: &RoundsPatch{IsBetweenRounds: &notBetween}},
		},
		{
			name:  "leaving between rounds with a playable current",
			patch: StatePatch{Rounds: &RoundsPatch{Current: &playable, IsBetweenRounds: &notBetween}},
			ok:    true,
			check: func(t *testing.T, st models.ScoreboardState) {
				assert.False(t, st.Rounds.IsBetweenRounds)
				assert.Equal(t, playable, st.Rounds.Current)
			},
		},
		{
			name:  "current round kept when only the flag is patched",
			setup: &StatePatch{Rounds: &RoundsPatch{Current: &playable}},
			patch: StatePatch{Rounds: &RoundsPatch{IsBetweenRounds: &notBetween, GameStatus: &live}},
			ok:    true,
			check: func(t *testing.T, st models.ScoreboardState) {
				assert.Equal(t, playable, st.Rounds.Current)
				assert.Equal(t, models.GameStatusLive, st.Rounds.GameStatus)
			},
		},
		{
			name:  "back between rounds parks the placeholder",
			setup: &StatePatch{Rounds: &RoundsPatch{Current: &playable}},
			patch: StatePatch{Rounds: &RoundsPatch{IsBetweenRounds: &between}},
			ok:    true,
			check: func(t *testing.T, st models.ScoreboardState) {
				assert.True(t, st.Rounds.IsBetweenRounds)
				assert.Equal(t, models.PlaceholderRound(), st.Rounds.Current)
			},
		},
		{
			name:  "current without a type",
			patch: StatePatch{Rounds: &RoundsPatch{Current: &noType}},
		},
		{
			name:  "current with players reversed",
			patch: StatePatch{Rounds: &RoundsPatch{Current: &reversed}},
		},
		{
			name:  "unknown game status",
			patch: StatePatch{Rounds: &RoundsPatch{GameStatus: &unknownStatus}},
		},
		{
			name:  "rejected rounds patch drops the team part too",
			patch: StatePatch{Team1: &TeamPatch{Score: &five}, Rounds: &RoundsPatch{GameStatus: &unknownStatus}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil, WithClock(clockwork.NewFakeClockAt(at)))
			if tt.setup != nil {
				require.True(t, s.Patch(*tt.setup))
			}
			seq, before := s.Snapshot()

			assert.Equal(t, tt.ok, s.Patch(tt.patch))
			if !tt.ok {
				assert.Equal(t, seq, s.Seq())
				assert.Equal(t, before, s.Get())
				return
			}
			assert.Equal(t, seq+1, s.Seq())
			tt.check(t, s.Get())
		})
	}
}

func TestSnapshotPairsSeqWithState(t *testing.T) {
	s := New(nil)
	seq, st := s.Snapshot()
	assert.Zero(t, seq)
	assert.Equal(t, models.DefaultScoreboardState(), st)

	require.True(t, s.Update("team.update", func(st *models.ScoreboardState) bool {
		st.Team1.Score = 3
		return true
	}))
	seq, st = s.Snapshot()
	assert.Equal(t, uint64(1), seq)
	assert.Equal(t, 3, st.Team1.Score)

	st.Team1.Score = 99
	assert.Equal(t, 3, s.Get().Team1.Score, "snapshot is a copy")
}

func TestBackupRoundTrip(t *testing.T) {
	src := New(nil)
	src.Update("team.update", func(st *models.ScoreboardState) bool {
		st.Team2.Name = "Backup"
		st.Team2.Score = 12
		return true
	})

	var buf bytes.Buffer
	require.NoError(t, src.Export(&buf))

	dst := New(nil)
	sub := &recordingSubscriber{}
	dst.Subscribe(sub)
	require.NoError(t, dst.Import(&buf))

	assert.Equal(t, src.Get(), dst.Get())
	assert.Equal(t, []string{"restore"}, sub.ops)
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	s := New(nil)
	err := s.Import(bytes.NewBufferString(`{"version": 7, "state": {}}`))
	assert.ErrorContains(t, err, "unsupported backup version")

	assert.Error(t, s.Import(bytes.NewBufferString(`not json`)))
}
