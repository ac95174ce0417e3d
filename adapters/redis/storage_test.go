package redis

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"highscore/core"
)

// newTestClient spins up a miniredis server and returns a client plus cleanup.
func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return mr, client, cleanup
}

func seeded(t *testing.T) (*Store, func()) {
	t.Helper()
	_, client, cleanup := newTestClient(t)
	store := NewWithClient(client, "")
	require.NoError(t, store.Seed(context.Background(), core.SampleRecords()))
	return store, cleanup
}

func TestStore_SubmitIfHigher(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	ctx := context.Background()
	bob := func(score int64) core.Record { return core.Record{Name: "bob", Difficulty: 1, Score: score} }

	res, err := store.SubmitIfHigher(ctx, bob(60))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Nil(t, res.Previous)

	res, err = store.SubmitIfHigher(ctx, bob(50))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, bob(60), res.Record)

	res, err = store.SubmitIfHigher(ctx, bob(60))
	require.NoError(t, err)
	assert.False(t, res.Accepted, "equal score is not an improvement")

	res, err = store.SubmitIfHigher(ctx, bob(75))
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	require.NotNil(t, res.Previous)
	assert.Equal(t, int64(60), *res.Previous)

	score, err := client.ZScore(ctx, "highscore:difficulty:1", "bob").Result()
	require.NoError(t, err)
	assert.Equal(t, float64(75), score)

	ds, err := client.ZRange(ctx, "highscore:difficulties", 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ds)
}

func TestStore_ScoresBeyondFloatPrecision(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	ctx := context.Background()
	const big = int64(1) << 53

	res, err := store.SubmitIfHigher(ctx, core.Record{Name: "bob", Difficulty: 1, Score: big})
	require.NoError(t, err)
	require.True(t, res.Accepted)

	res, err = store.SubmitIfHigher(ctx, core.Record{Name: "bob", Difficulty: 1, Score: big + 1})
	require.NoError(t, err)
	assert.True(t, res.Accepted, "one more than 2^53 is strictly greater")
	require.NotNil(t, res.Previous)
	assert.Equal(t, big, *res.Previous)

	res, err = store.SubmitIfHigher(ctx, core.Record{Name: "bob", Difficulty: 1, Score: big})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, big+1, res.Record.Score)

	res, err = store.SubmitIfHigher(ctx, core.Record{Name: "amy", Difficulty: 1, Score: math.MaxInt64})
	require.NoError(t, err)
	require.True(t, res.Accepted)

	got, err := core.Collect(store.QueryByDifficulty(ctx, 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{Name: "amy", Difficulty: 1, Score: math.MaxInt64},
		{Name: "bob", Difficulty: 1, Score: big + 1},
	}, got)

	bob, err := core.Collect(store.QueryByName(ctx, "bob"))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "bob", Difficulty: 1, Score: big + 1}}, bob)

	stored, err := client.HGet(ctx, "highscore:exact:1", "bob").Result()
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", stored)
}

func TestStore_SubmitComparesSignedScores(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	ctx := context.Background()
	rec := func(score int64) core.Record { return core.Record{Name: "neg", Difficulty: 2, Score: score} }

	require.NoError(t, store.Upsert(ctx, rec(-50)))

	tests := []struct {
		score    int64
		accepted bool
		stored   int64
	}{
		{-70, false, -50},
		{-50, false, -50},
		{-9, true, -9},
		{-10, false, -9},
		{0, true, 0},
		{9, true, 9},
		{10, true, 10},
		{9, false, 10},
	}
	for _, tt := range tests {
		res, err := store.SubmitIfHigher(ctx, rec(tt.score))
		require.NoError(t, err)
		assert.Equal(t, tt.accepted, res.Accepted, "submit %d", tt.score)
		got, err := core.Collect(store.QueryByNameAndDifficulty(ctx, "neg", 2))
		require.NoError(t, err)
		assert.Equal(t, []core.Record{rec(tt.stored)}, got, "after submit %d", tt.score)
	}
}

func TestStore_Upsert_Overwrites(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "custom")
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, core.Record{Name: "amy", Difficulty: 2, Score: 90}))
	require.NoError(t, store.Upsert(ctx, core.Record{Name: "amy", Difficulty: 2, Score: 10}))

	got, err := core.Collect(store.QueryByNameAndDifficulty(ctx, "amy", 2))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "amy", Difficulty: 2, Score: 10}}, got)

	exists, err := client.Exists(ctx, "custom:difficulty:2").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestStore_QueryAll_Order(t *testing.T) {
	store, cleanup := seeded(t)
	defer cleanup()

	got, err := core.Collect(store.QueryAll(context.Background()))
	require.NoError(t, err)

	want := core.SampleRecords()
	core.SortLeaderboard(want)
	assert.Equal(t, want, got)
}

func TestStore_QueryByDifficulty_TiesByName(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, store.Upsert(ctx, core.Record{Name: name, Difficulty: 3, Score: 40}))
	}
	require.NoError(t, store.Upsert(ctx, core.Record{Name: "dave", Difficulty: 3, Score: 41}))

	got, err := core.Collect(store.QueryByDifficulty(ctx, 3))
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"dave", "alice", "bob", "carol"}, names)
}

func TestStore_QueryByName(t *testing.T) {
	store, cleanup := seeded(t)
	defer cleanup()
	ctx := context.Background()

	john, err := core.Collect(store.QueryByName(ctx, "john"))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{
		{Name: "john", Difficulty: 2, Score: 70},
		{Name: "john", Difficulty: 3, Score: 10},
	}, john)

	none, err := core.Collect(store.QueryByName(ctx, "Bob"))
	require.NoError(t, err)
	assert.Empty(t, none)

	single, err := core.Collect(store.QueryByNameAndDifficulty(ctx, "john", 1))
	require.NoError(t, err)
	assert.Empty(t, single)
}

func TestStore_ConcurrentSubmissions(t *testing.T) {
	_, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 40; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			_, err := store.SubmitIfHigher(ctx, core.Record{Name: "eve", Difficulty: 1, Score: score})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := core.Collect(store.QueryByNameAndDifficulty(ctx, "eve", 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "eve", Difficulty: 1, Score: 40}}, got)
}

func TestStore_ServerDown(t *testing.T) {
	mr, client, cleanup := newTestClient(t)
	defer cleanup()

	store := NewWithClient(client, "")
	mr.Close()

	_, err := store.SubmitIfHigher(context.Background(), core.Record{Name: "x", Difficulty: 1, Score: 1})
	require.Error(t, err)
	assert.True(t, core.IsStorage(err))

	_, err = core.Collect(store.QueryAll(context.Background()))
	assert.True(t, core.IsStorage(err))
}

func TestNew_SeedsEmptyDatabaseOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.SeedSampleData = true

	store, err := New(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, core.Record{Name: "bob", Difficulty: 1, Score: 1}))
	require.NoError(t, store.Close())

	again, err := New(ctx, cfg)
	require.NoError(t, err)
	defer again.Close()

	bob, err := core.Collect(again.QueryByNameAndDifficulty(ctx, "bob", 1))
	require.NoError(t, err)
	assert.Equal(t, []core.Record{{Name: "bob", Difficulty: 1, Score: 1}}, bob)
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, "", config.Password)
	assert.Equal(t, 0, config.DB)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 2, config.MinIdleConns)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 3*time.Second, config.ReadTimeout)
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
	assert.Equal(t, "highscore", config.KeyPrefix)
	assert.NoError(t, config.Validate())

	config.Addr = ""
	assert.Error(t, config.Validate())
}
