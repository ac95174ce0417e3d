package sqlx_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "highscore/adapters/sqlx"
	"highscore/core"
)

func openSQLite(t *testing.T, path string, seed bool) *storage.Store {
	t.Helper()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = path
	cfg.SeedSampleData = seed
	s, err := storage.New(context.Background(), cfg)
	require.NoError(t, err)
	return s
}

func TestSQLite_SeedOnlyOnCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highscore.sqlite")
	ctx := context.Background()

	s := openSQLite(t, path, true)
	all, err := core.Collect(s.QueryAll(ctx))
	require.NoError(t, err)
	require.Len(t, all, len(core.SampleRecords()))

	require.NoError(t, s.Upsert(ctx, core.Record{Name: "bob", Difficulty: 1, Score: 1}))
	require.NoError(t, s.Close())

	reopened := openSQLite(t, path, true)
	defer reopened.Close()
	bob, err := core.Collect(reopened.QueryByNameAndDifficulty(ctx, "bob", 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "bob", Difficulty: 1, Score: 1}}, bob)
}

func TestSQLite_NoSeedByDefault(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "empty.sqlite"), false)
	defer s.Close()
	all, err := core.Collect(s.QueryAll(context.Background()))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLite_Ordering(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "order.sqlite"), true)
	defer s.Close()
	ctx := context.Background()

	all, err := core.Collect(s.QueryAll(ctx))
	require.NoError(t, err)
	want := core.SampleRecords()
	core.SortLeaderboard(want)
	assert.Equal(t, want, all)

	d3, err := core.Collect(s.QueryByDifficulty(ctx, 3))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{Name: "alice", Difficulty: 3, Score: 25},
		{Name: "bob", Difficulty: 3, Score: 15},
		{Name: "john", Difficulty: 3, Score: 10},
	}, d3)

	alice, err := core.Collect(s.QueryByName(ctx, "alice"))
	require.NoError(t, err)
	require.Len(t, alice, 3)
	assert.Equal(t, int64(1), alice[0].Difficulty)
	assert.Equal(t, int64(3), alice[2].Difficulty)

	upper, err := core.Collect(s.QueryByName(ctx, "ALICE"))
	require.NoError(t, err)
	assert.Empty(t, upper, "names are case-sensitive")
}

func TestSQLite_SubmitScenario(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "scenario.sqlite"), false)
	defer s.Close()
	ctx := context.Background()

	steps := []struct {
		score    int64
		accepted bool
		stored   int64
	}{
		{60, true, 60},
		{50, false, 60},
		{60, false, 60},
		{75, true, 75},
	}
	for _, step := range steps {
		res, err := s.SubmitIfHigher(ctx, core.Record{Name: "bob", Difficulty: 1, Score: step.score})
		require.NoError(t, err)
		assert.Equal(t, step.accepted, res.Accepted, "score %d", step.score)
		assert.Equal(t, step.stored, res.Record.Score, "score %d", step.score)
	}

	got, err := core.Collect(s.QueryByNameAndDifficulty(ctx, "bob", 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "bob", Difficulty: 1, Score: 75}}, got)
}

func TestSQLite_ConcurrentSubmissionsKeepMaximum(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "race.sqlite"), false)
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			_, err := s.SubmitIfHigher(ctx, core.Record{Name: "eve", Difficulty: 2, Score: score})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := core.Collect(s.QueryByNameAndDifficulty(ctx, "eve", 2))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].Score)
}

func TestSQLite_EarlyBreakReleasesConnection(t *testing.T) {
	s := openSQLite(t, filepath.Join(t.TempDir(), "break.sqlite"), true)
	defer s.Close()
	ctx := context.Background()

	for range s.QueryAll(ctx) {
		break
	}
	// With a single pooled connection this would block if rows were left open.
	require.NoError(t, s.Upsert(ctx, core.Record{Name: "zed", Difficulty: 1, Score: 1}))
}
