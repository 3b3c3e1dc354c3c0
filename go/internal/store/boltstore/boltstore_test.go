package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.db")
	db, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	empty, err := db.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	st := models.DefaultScoreboardState()
	st.Team1.Name = "Rouges"
	st.Team1.Score = 4
	require.NoError(t, db.Save(ctx, st))

	st.Team1.Score = 6
	require.NoError(t, db.Save(ctx, st))
	require.NoError(t, db.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Rouges", got.Team1.Name)
	assert.Equal(t, 6, got.Team1.Score, "last save wins")
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, db.Save(ctx, models.DefaultScoreboardState()), context.Canceled)
}
