package core

import (
	"iter"
	"sort"
)

// TableName is the name of the single persisted table/collection.
const TableName = "highscore"

// Record is one leaderboard entry, unique per (Name, Difficulty).
// Name is case-sensitive and never normalised.
type Record struct {
	Name       string `json:"name" db:"name" dynamodbav:"name"`
	Difficulty int64  `json:"difficulty" db:"difficulty" dynamodbav:"difficulty"`
	Score      int64  `json:"score" db:"score" dynamodbav:"score"`
}

// Key identifies a record.
type Key struct {
	Name       string
	Difficulty int64
}

// Key returns the primary key of the record.
func (r Record) Key() Key { return Key{Name: r.Name, Difficulty: r.Difficulty} }

// Result is the outcome of a conditional submission. When Accepted is false the
// submission did not improve the stored score and Record holds the untouched
// stored record.
type Result struct {
	Record   Record `json:"record"`
	Accepted bool   `json:"accepted"`
	// Previous is the score replaced by an accepted submission, nil when the
	// key was new or the adapter cannot tell.
	Previous *int64 `json:"previous,omitempty"`
}

// Improves reports whether submitted strictly beats stored. Equal scores never improve.
func Improves(stored, submitted int64) bool { return submitted > stored }

// Collect drains a record sequence, stopping at the first error.
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	out := []Record{}
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromSlice adapts an already materialised slice to the lazy sequence contract.
func FromSlice(records []Record) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Failed yields a single error.
func Failed(err error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		yield(Record{}, err)
	}
}

// SortLeaderboard orders records by difficulty ascending, then score descending.
// Equal scores are ordered by name so every adapter agrees.
func SortLeaderboard(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Difficulty != b.Difficulty {
			return a.Difficulty < b.Difficulty
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Name < b.Name
	})
}

// SampleRecords returns the demo fixture set. Only seeded on explicit opt-in.
func SampleRecords() []Record {
	return []Record{
		{Name: "bob", Difficulty: 1, Score: 60},
		{Name: "bob", Difficulty: 2, Score: 40},
		{Name: "bob", Difficulty: 3, Score: 15},
		{Name: "alice", Difficulty: 1, Score: 88},
		{Name: "alice", Difficulty: 2, Score: 39},
		{Name: "alice", Difficulty: 3, Score: 25},
		{Name: "john", Difficulty: 2, Score: 70},
		{Name: "john", Difficulty: 3, Score: 10},
	}
}
