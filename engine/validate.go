package engine

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"highscore/core"
)

// ValidateSubmission turns an untyped request body into a record, checking the
// rules in a fixed order and stopping at the first violation.
func ValidateSubmission(raw map[string]any) (core.Record, error) {
	if len(raw) == 0 {
		return core.Record{}, core.NewValidationError("", core.MsgNoValidJSON)
	}
	name, err := getString(raw, "name")
	if err != nil {
		return core.Record{}, err
	}
	difficulty, err := getInt(raw, "difficulty")
	if err != nil {
		return core.Record{}, err
	}
	if err := core.CheckRange("difficulty", difficulty, core.DifficultyRange); err != nil {
		return core.Record{}, err
	}
	score, err := getInt(raw, "score")
	if err != nil {
		return core.Record{}, err
	}
	if err := core.CheckRange("score", score, core.ScoreRange); err != nil {
		return core.Record{}, err
	}
	return core.Record{Name: name, Difficulty: difficulty, Score: score}, nil
}

func getString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", core.NewValidationError(key, core.MsgMissingKey(key))
	}
	s, ok := v.(string)
	if !ok {
		return "", core.NewValidationError(key, core.MsgNotString(key))
	}
	return s, nil
}

func getInt(raw map[string]any, key string) (int64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, core.NewValidationError(key, core.MsgMissingKey(key))
	}
	n, err := toInt(v)
	switch {
	case errors.Is(err, errOverflow):
		return 0, core.NewValidationError(key, core.MsgOutOfRange(key))
	case err != nil:
		return 0, core.NewValidationError(key, core.MsgNotInteger(key))
	}
	return n, nil
}

var (
	errNotInteger = errors.New("not an integer")
	// errOverflow marks a well-formed integer that does not fit in int64.
	errOverflow = errors.New("integer overflows int64")
)

// toInt accepts integer JSON numbers, integral floats and decimal strings.
func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		n, err := x.Int64()
		if err == nil {
			return n, nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return 0, errOverflow
		}
		f, err := x.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return 0, errNotInteger
		}
		return toInt(f)
	case float64:
		if x != math.Trunc(x) {
			return 0, errNotInteger
		}
		if x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, errOverflow
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return 0, errOverflow
		}
		if err != nil {
			return 0, errNotInteger
		}
		return n, nil
	default:
		return 0, errNotInteger
	}
}
