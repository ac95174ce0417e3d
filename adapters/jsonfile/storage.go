package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"

	"highscore/core"
	"highscore/engine"
)

// Config locates the JSON file.
type Config struct {
	Path string `json:"path" env:"HIGHSCORE_STORAGE_FILE_PATH"`

	// SeedSampleData loads core.SampleRecords when the file does not exist yet.
	SeedSampleData bool `json:"seed_sample_data" env:"HIGHSCORE_STORAGE_FILE_SEED"`
}

// Validate validates file configuration.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("file path cannot be empty")
	}
	return nil
}

// Store persists all records to a single JSON file, rewritten atomically on
// every mutation. Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.Key]int64
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid file config: %w", err)
	}
	s := &Store{path: cfg.Path, data: map[core.Key]int64{}}
	err := s.load()
	switch {
	case err == nil:
		return s, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, core.WrapStorage("initialize", err)
	}
	if cfg.SeedSampleData {
		for _, r := range core.SampleRecords() {
			s.data[r.Key()] = r.Score
		}
	}
	if err := s.persist(); err != nil {
		return nil, core.WrapStorage("initialize", err)
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var records []core.Record
	if err := json.Unmarshal(b, &records); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	for _, r := range records {
		s.data[r.Key()] = r.Score
	}
	return nil
}

func (s *Store) snapshot() []core.Record {
	out := make([]core.Record, 0, len(s.data))
	for k, score := range s.data {
		out = append(out, core.Record{Name: k.Name, Difficulty: k.Difficulty, Score: score})
	}
	core.SortLeaderboard(out)
	return out
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.snapshot(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// set writes score for k and persists, restoring the previous state if the write fails.
func (s *Store) set(k core.Key, score int64) error {
	old, existed := s.data[k]
	s.data[k] = score
	if err := s.persist(); err != nil {
		if existed {
			s.data[k] = old
		} else {
			delete(s.data, k)
		}
		return err
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, r core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.WrapStorage("upsert", s.set(r.Key(), r.Score))
}

func (s *Store) SubmitIfHigher(_ context.Context, r core.Record) (core.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.data[r.Key()]
	if ok && !core.Improves(stored, r.Score) {
		return core.Result{Record: core.Record{Name: r.Name, Difficulty: r.Difficulty, Score: stored}}, nil
	}
	if err := s.set(r.Key(), r.Score); err != nil {
		return core.Result{}, core.WrapStorage("submit", err)
	}
	res := core.Result{Record: r, Accepted: true}
	if ok {
		res.Previous = &stored
	}
	return res, nil
}

// filter snapshots matching records under the lock; the sequence re-snapshots on every range.
func (s *Store) filter(keep func(core.Record) bool) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		s.mu.Lock()
		all := s.snapshot()
		s.mu.Unlock()
		for _, r := range all {
			if keep(r) && !yield(r, nil) {
				return
			}
		}
	}
}

func (s *Store) QueryAll(_ context.Context) iter.Seq2[core.Record, error] {
	return s.filter(func(core.Record) bool { return true })
}

func (s *Store) QueryByName(_ context.Context, name string) iter.Seq2[core.Record, error] {
	return s.filter(func(r core.Record) bool { return r.Name == name })
}

func (s *Store) QueryByDifficulty(_ context.Context, difficulty int64) iter.Seq2[core.Record, error] {
	return s.filter(func(r core.Record) bool { return r.Difficulty == difficulty })
}

func (s *Store) QueryByNameAndDifficulty(_ context.Context, name string, difficulty int64) iter.Seq2[core.Record, error] {
	return s.filter(func(r core.Record) bool { return r.Name == name && r.Difficulty == difficulty })
}

// Close is a no-op; every mutation is already on disk.
func (s *Store) Close() error { return nil }

var _ engine.Storage = (*Store)(nil)
