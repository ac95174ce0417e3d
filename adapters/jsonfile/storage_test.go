package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"highscore/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "scores.json")
	ctx := context.Background()

	store, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	res, err := store.SubmitIfHigher(ctx, core.Record{Name: "alice", Difficulty: 2, Score: 50})
	if err != nil || !res.Accepted {
		t.Fatalf("submit: res=%+v err=%v", res, err)
	}
	res, err = store.SubmitIfHigher(ctx, core.Record{Name: "alice", Difficulty: 2, Score: 50})
	if err != nil || res.Accepted {
		t.Fatalf("equal submit should not be accepted: res=%+v err=%v", res, err)
	}
	res, err = store.SubmitIfHigher(ctx, core.Record{Name: "alice", Difficulty: 2, Score: 80})
	if err != nil || !res.Accepted || res.Previous == nil || *res.Previous != 50 {
		t.Fatalf("improve: res=%+v err=%v", res, err)
	}
	if err := store.Upsert(ctx, core.Record{Name: "bob", Difficulty: 1, Score: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}

	// reload
	reloaded, err := New(Config{Path: path, SeedSampleData: true})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	all, err := core.Collect(reloaded.QueryAll(ctx))
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	want := []core.Record{
		{Name: "bob", Difficulty: 1, Score: 5},
		{Name: "alice", Difficulty: 2, Score: 80},
	}
	if len(all) != len(want) {
		t.Fatalf("expected %v, got %v", want, all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("record %d: expected %+v, got %+v", i, want[i], all[i])
		}
	}
}

func TestStoreSeedsNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	ctx := context.Background()

	store, err := New(Config{Path: path, SeedSampleData: true})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	d2, err := core.Collect(store.QueryByDifficulty(ctx, 2))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(d2) != 3 || d2[0].Name != "john" || d2[2].Name != "alice" {
		t.Fatalf("unexpected difficulty 2 board: %+v", d2)
	}

	bob, err := core.Collect(store.QueryByName(ctx, "bob"))
	if err != nil || len(bob) != 3 {
		t.Fatalf("query by name: %+v %v", bob, err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var onDisk []core.Record
	if err := json.Unmarshal(b, &onDisk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(onDisk) != len(core.SampleRecords()) {
		t.Fatalf("expected %d records on disk, got %d", len(core.SampleRecords()), len(onDisk))
	}
}

func TestStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := New(Config{Path: path})
	if !core.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestStoreRequiresPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
