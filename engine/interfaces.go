package engine

import (
	"context"
	"iter"

	"highscore/core"
)

// Storage abstracts durable storage of highscore records.
//
// Query sequences are lazy: nothing touches the medium until the sequence is
// ranged, and ranging it again re-runs the query. Failures are yielded as
// *core.StorageError values.
type Storage interface {
	// Upsert unconditionally inserts or replaces the record sharing r's key.
	Upsert(ctx context.Context, r core.Record) error
	// SubmitIfHigher atomically stores r only when its score strictly beats the
	// stored one, reporting the outcome and the record held afterwards.
	SubmitIfHigher(ctx context.Context, r core.Record) (core.Result, error)
	// QueryAll orders by difficulty asc, score desc.
	QueryAll(ctx context.Context) iter.Seq2[core.Record, error]
	// QueryByName keeps QueryAll's order.
	QueryByName(ctx context.Context, name string) iter.Seq2[core.Record, error]
	// QueryByDifficulty orders by score desc.
	QueryByDifficulty(ctx context.Context, difficulty int64) iter.Seq2[core.Record, error]
	// QueryByNameAndDifficulty yields at most one record.
	QueryByNameAndDifficulty(ctx context.Context, name string, difficulty int64) iter.Seq2[core.Record, error]
	Close() error
}

