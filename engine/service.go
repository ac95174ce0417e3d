package engine

import (
	"context"
	"iter"
	"log/slog"

	"highscore/core"
)

// ScoreService applies the submission rules on top of a Storage. It holds no
// record state of its own.
type ScoreService struct {
	storage Storage
	bus     *EventBus
	logger  *slog.Logger
}

func NewScoreService(storage Storage, bus *EventBus, logger *slog.Logger) *ScoreService {
	if storage == nil || bus == nil {
		panic("NewScoreService requires non-nil storage and bus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreService{storage: storage, bus: bus, logger: logger}
}

// Subscribe registers handler for the given event types.
func (s *ScoreService) Subscribe(handler func(context.Context, core.Event), types ...core.EventType) func() {
	return s.bus.Subscribe(handler, types...)
}

// ValidateSubmission checks an untyped submission body.
func (s *ScoreService) ValidateSubmission(raw map[string]any) (core.Record, error) {
	return ValidateSubmission(raw)
}

// SubmitScore stores the score when it strictly improves on the stored one.
// Range violations are reported before storage is touched. A submission that
// does not improve yields Result.Accepted == false and a nil error.
func (s *ScoreService) SubmitScore(ctx context.Context, name string, difficulty, score int64) (core.Result, error) {
	rec := core.Record{Name: name, Difficulty: difficulty, Score: score}
	if err := core.CheckRecord(rec); err != nil {
		return core.Result{}, err
	}
	res, err := s.storage.SubmitIfHigher(ctx, rec)
	if err != nil {
		s.logger.ErrorContext(ctx, "submit score failed",
			"name", name, "difficulty", difficulty, "score", score, "error", err)
		return core.Result{}, core.WrapStorage("submit", err)
	}
	if res.Accepted {
		s.logger.InfoContext(ctx, "score accepted",
			"name", name, "difficulty", difficulty, "score", score)
		s.bus.Publish(ctx, core.NewScoreAccepted(res))
	} else {
		s.logger.DebugContext(ctx, "score not improved",
			"name", name, "difficulty", difficulty, "score", score, "stored", res.Record.Score)
		s.bus.Publish(ctx, core.NewScoreRejected(rec, res.Record))
	}
	return res, nil
}

// Submit validates raw and submits it.
func (s *ScoreService) Submit(ctx context.Context, raw map[string]any) (core.Result, error) {
	rec, err := ValidateSubmission(raw)
	if err != nil {
		return core.Result{}, err
	}
	return s.SubmitScore(ctx, rec.Name, rec.Difficulty, rec.Score)
}

func (s *ScoreService) ListAll(ctx context.Context) ([]core.Record, error) {
	return s.collect(ctx, "list all", s.storage.QueryAll(ctx))
}

func (s *ScoreService) ListByName(ctx context.Context, name string) ([]core.Record, error) {
	return s.collect(ctx, "list by name", s.storage.QueryByName(ctx, name))
}

func (s *ScoreService) ListByDifficulty(ctx context.Context, difficulty int64) ([]core.Record, error) {
	return s.collect(ctx, "list by difficulty", s.storage.QueryByDifficulty(ctx, difficulty))
}

func (s *ScoreService) ListByNameAndDifficulty(ctx context.Context, name string, difficulty int64) ([]core.Record, error) {
	return s.collect(ctx, "list by name and difficulty", s.storage.QueryByNameAndDifficulty(ctx, name, difficulty))
}

func (s *ScoreService) collect(ctx context.Context, op string, seq iter.Seq2[core.Record, error]) ([]core.Record, error) {
	out, err := core.Collect(seq)
	if err != nil {
		s.logger.ErrorContext(ctx, "query failed", "op", op, "error", err)
		return nil, core.WrapStorage(op, err)
	}
	return out, nil
}

// Close flushes pending events. The storage is owned and closed by the caller.
func (s *ScoreService) Close() { s.bus.Close() }
