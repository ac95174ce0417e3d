package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventScoreAccepted EventType = "score_accepted"
	EventScoreRejected EventType = "score_rejected"
)

// Event represents an immutable domain event.
type Event struct {
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	Name       string    `json:"name"`
	Difficulty int64     `json:"difficulty"`
	Score      int64     `json:"score"`
	// Stored is the score held after the submission.
	Stored   int64  `json:"stored"`
	Previous *int64 `json:"previous,omitempty"`
}

func NewScoreAccepted(res Result) Event {
	return Event{
		Type:       EventScoreAccepted,
		Time:       time.Now().UTC(),
		Name:       res.Record.Name,
		Difficulty: res.Record.Difficulty,
		Score:      res.Record.Score,
		Stored:     res.Record.Score,
		Previous:   res.Previous,
	}
}

func NewScoreRejected(submitted Record, stored Record) Event {
	return Event{
		Type:       EventScoreRejected,
		Time:       time.Now().UTC(),
		Name:       submitted.Name,
		Difficulty: submitted.Difficulty,
		Score:      submitted.Score,
		Stored:     stored.Score,
	}
}
