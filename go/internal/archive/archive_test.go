package archive

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/mcdev12/improvscore/go/internal/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(number int, notes string) models.RoundHistory {
	limit := 120
	return models.RoundHistory{
		RoundConfig: models.RoundConfig{
			Number:     number,
			Title:      "Comparée",
			Type:       models.RoundTypeShortform,
			MinPlayers: 2,
			MaxPlayers: 4,
			TimeLimit:  &limit,
		},
		Points: models.TeamPoints{Team1: 2, Team2: 1},
		Notes:  notes,
	}
}

func TestPenaltiesColumn(t *testing.T) {
	col, err := penaltiesColumn(models.TeamPenalties{})
	require.NoError(t, err)
	assert.False(t, col.Valid, "no penalties stores NULL")

	col, err = penaltiesColumn(models.TeamPenalties{Team1: models.Penalties{Major: 2, Minor: 1}})
	require.NoError(t, err)
	require.True(t, col.Valid)
	assert.JSONEq(t, `{"team1":{"major":2,"minor":1},"team2":{"major":0,"minor":0}}`, string(col.RawMessage))
}

func TestArchiveRoundNeverBlocks(t *testing.T) {
	a := New(nil, clockwork.NewFakeClock())
	for i := 0; i < cap(a.queue)+5; i++ {
		a.ArchiveRound(record(i+1, ""))
	}
	assert.Len(t, a.queue, cap(a.queue))
}

func TestArchiveRoundTrip(t *testing.T) {
	dsn := testsupport.Postgres(t)
	ctx := context.Background()

	a, err := Open(ctx, dsn, clockwork.NewFakeClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.EnsureSchema(ctx), "schema creation is idempotent")

	first := record(1, "")
	first.Penalties = models.TeamPenalties{Team1: models.Penalties{Major: 2, Minor: 1}, Team2: models.Penalties{Minor: 3}}
	second := record(2, "rappel")
	second.TimeLimit = nil
	second.IsMixed = true

	require.NoError(t, a.Insert(ctx, first))
	require.NoError(t, a.Insert(ctx, second))

	got, err := a.Game(ctx, a.GameID())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])

	other := New(a.db, nil)
	empty, err := other.Game(ctx, other.GameID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRunDrainsQueue(t *testing.T) {
	dsn := testsupport.Postgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Open(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	go a.Run(ctx)
	a.ArchiveRound(record(1, "première"))

	require.Eventually(t, func() bool {
		got, err := a.Game(context.Background(), a.GameID())
		return err == nil && len(got) == 1 && got[0].Notes == "première"
	}, 5*time.Second, 50*time.Millisecond)
}
