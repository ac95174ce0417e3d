package core

// CheckRange returns a ValidationError naming field when v is outside in.
func CheckRange(field string, v int64, in Interval) error {
	if !in.Contains(v) {
		return NewValidationError(field, MsgOutOfRange(field))
	}
	return nil
}

// CheckRecord applies the fixed difficulty and score ranges, difficulty first.
func CheckRecord(r Record) error {
	if err := CheckRange("difficulty", r.Difficulty, DifficultyRange); err != nil {
		return err
	}
	return CheckRange("score", r.Score, ScoreRange)
}
