package memory

import (
	"context"
	"iter"
	"slices"
	"sync"

	"highscore/core"
	"highscore/engine"
	"highscore/leaderboard"
)

// Store is a concurrent in-memory Storage with one ordered board per difficulty.
type Store struct {
	mu     sync.RWMutex
	boards map[int64]leaderboard.Board
}

// Option configures a Store.
type Option func(*Store)

// WithRecords preloads records, e.g. core.SampleRecords for demos.
func WithRecords(records []core.Record) Option {
	return func(s *Store) {
		for _, r := range records {
			s.board(r.Difficulty).Update(r.Name, r.Score)
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{boards: map[int64]leaderboard.Board{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) board(difficulty int64) leaderboard.Board {
	s.mu.RLock()
	b, ok := s.boards[difficulty]
	s.mu.RUnlock()
	if ok {
		return b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.boards[difficulty]; ok {
		return b
	}
	b = leaderboard.NewSkipList()
	s.boards[difficulty] = b
	return b
}

func (s *Store) lookup(difficulty int64) (leaderboard.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[difficulty]
	return b, ok
}

func (s *Store) difficulties() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, len(s.boards))
	for d := range s.boards {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

func (s *Store) Upsert(_ context.Context, r core.Record) error {
	s.board(r.Difficulty).Update(r.Name, r.Score)
	return nil
}

func (s *Store) SubmitIfHigher(_ context.Context, r core.Record) (core.Result, error) {
	cur, ok, prev := s.board(r.Difficulty).UpdateIfHigher(r.Name, r.Score)
	res := core.Result{
		Record:   core.Record{Name: cur.Name, Difficulty: r.Difficulty, Score: cur.Score},
		Accepted: ok,
	}
	if prev != nil {
		res.Previous = &prev.Score
	}
	return res, nil
}

func (s *Store) QueryAll(_ context.Context) iter.Seq2[core.Record, error] {
	return s.scan(func(string) bool { return true })
}

func (s *Store) QueryByName(_ context.Context, name string) iter.Seq2[core.Record, error] {
	return s.scan(func(n string) bool { return n == name })
}

func (s *Store) QueryByDifficulty(_ context.Context, difficulty int64) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		b, ok := s.lookup(difficulty)
		if !ok {
			return
		}
		for _, e := range b.Entries() {
			if !yield(core.Record{Name: e.Name, Difficulty: difficulty, Score: e.Score}, nil) {
				return
			}
		}
	}
}

func (s *Store) QueryByNameAndDifficulty(_ context.Context, name string, difficulty int64) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		b, ok := s.lookup(difficulty)
		if !ok {
			return
		}
		if e, ok := b.Get(name); ok {
			yield(core.Record{Name: e.Name, Difficulty: difficulty, Score: e.Score}, nil)
		}
	}
}

// scan walks the boards in ascending difficulty; each board is already score-ordered.
func (s *Store) scan(match func(name string) bool) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		for _, d := range s.difficulties() {
			b, _ := s.lookup(d)
			for _, e := range b.Entries() {
				if !match(e.Name) {
					continue
				}
				if !yield(core.Record{Name: e.Name, Difficulty: d, Score: e.Score}, nil) {
					return
				}
			}
		}
	}
}

func (s *Store) Close() error { return nil }

var _ engine.Storage = (*Store)(nil)
