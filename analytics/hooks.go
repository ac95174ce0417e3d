package analytics

import (
	"sort"
	"sync"
	"time"

	"highscore/core"
)

// Hook receives score events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// DifficultyStats counts submissions for one difficulty.
type DifficultyStats struct {
	Difficulty int64 `json:"difficulty"`
	Accepted   int64 `json:"accepted"`
	Rejected   int64 `json:"rejected"`
	// Best is the highest accepted score seen by this process.
	Best int64 `json:"best"`
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Accepted      int64             `json:"accepted"`
	Rejected      int64             `json:"rejected"`
	ActivePlayers int               `json:"active_players_today"`
	Difficulties  []DifficultyStats `json:"difficulties"`
	LastAccepted  *time.Time        `json:"last_accepted,omitempty"`
}

// Stats tracks submission outcomes per difficulty and the distinct players
// who submitted per UTC day. Only the current day's players are retained.
type Stats struct {
	mu           sync.Mutex
	now          func() time.Time
	difficulties map[int64]*DifficultyStats
	days         map[string]map[string]struct{}
	lastAccepted time.Time
}

func NewStats() *Stats {
	return &Stats{
		now:          time.Now,
		difficulties: map[int64]*DifficultyStats{},
		days:         map[string]map[string]struct{}{},
	}
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (s *Stats) OnEvent(e core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Type != core.EventScoreAccepted && e.Type != core.EventScoreRejected {
		return
	}
	d := s.difficulties[e.Difficulty]
	if d == nil {
		d = &DifficultyStats{Difficulty: e.Difficulty}
		s.difficulties[e.Difficulty] = d
	}
	if e.Type == core.EventScoreAccepted {
		d.Accepted++
		d.Best = max(d.Best, e.Stored)
		if e.Time.After(s.lastAccepted) {
			s.lastAccepted = e.Time
		}
	} else {
		d.Rejected++
	}

	today := dayKey(s.now())
	for k := range s.days {
		if k < today {
			delete(s.days, k)
		}
	}
	day := dayKey(e.Time)
	if day < today {
		return
	}
	players := s.days[day]
	if players == nil {
		players = map[string]struct{}{}
		s.days[day] = players
	}
	players[e.Name] = struct{}{}
}

// ActivePlayers returns how many distinct names submitted on day (YYYY-MM-DD, UTC).
// Days before the current one report zero.
func (s *Stats) ActivePlayers(day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.days[day])
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		ActivePlayers: len(s.days[dayKey(s.now())]),
		Difficulties:  make([]DifficultyStats, 0, len(s.difficulties)),
	}
	for _, d := range s.difficulties {
		out.Accepted += d.Accepted
		out.Rejected += d.Rejected
		out.Difficulties = append(out.Difficulties, *d)
	}
	sort.Slice(out.Difficulties, func(i, j int) bool {
		return out.Difficulties[i].Difficulty < out.Difficulties[j].Difficulty
	})
	if !s.lastAccepted.IsZero() {
		t := s.lastAccepted
		out.LastAccepted = &t
	}
	return out
}
