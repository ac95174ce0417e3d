package leaderboard

import (
	"math/rand/v2"
	"sync"
)

// A skip list keyed by (score desc, name asc) so a board scan is already in leaderboard order.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

// SkipList is a Board. Level choice only affects speed, never order, so the
// generator is seeded from the global source.
type SkipList struct {
	mu     sync.RWMutex
	head   *node
	lvl    int
	byName map[string]*node
	rng    *rand.Rand
}

func NewSkipList() *SkipList {
	return &SkipList{
		head:   &node{},
		lvl:    1,
		byName: map[string]*node{},
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.Name < b.Name
	}
	return a.Score > b.Score // higher score first
}

// Update inserts or moves name to score.
func (s *SkipList) Update(name string, score int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(name, score)
}

// UpdateIfHigher moves name to score only when score is strictly greater than
// the stored one. The check and the move happen under one lock.
func (s *SkipList) UpdateIfHigher(name string, score int64) (Entry, bool, *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prev *Entry
	if old, ok := s.byName[name]; ok {
		if score <= old.e.Score {
			return old.e, false, nil
		}
		p := old.e
		prev = &p
	}
	return s.setLocked(name, score), true, prev
}

func (s *SkipList) setLocked(name string, score int64) Entry {
	if old, ok := s.byName[name]; ok {
		s.removeLocked(name, old.e)
	}
	e := Entry{Name: name, Score: score}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byName[name] = n
	return e
}

func (s *SkipList) removeLocked(name string, e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.Name != name {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byName, name)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

// Entries walks the bottom level, which is already in board order.
func (s *SkipList) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.byName))
	for cur := s.head.next[0]; cur != nil; cur = cur.next[0] {
		out = append(out, cur.e)
	}
	return out
}

func (s *SkipList) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byName[name]; ok {
		return n.e, true
	}
	return Entry{}, false
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

var _ Board = (*SkipList)(nil)
