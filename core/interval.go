package core

import "strconv"

// Bound is one optional end of an Interval. An unset bound is open (infinite).
type Bound struct {
	Value int64
	Set   bool
}

// Inclusive returns a set bound.
func Inclusive(v int64) Bound { return Bound{Value: v, Set: true} }

// Interval is a range of integers whose ends are independently closed or unbounded.
type Interval struct {
	Low  Bound
	High Bound
}

// Closed returns [lo, hi].
func Closed(lo, hi int64) Interval { return Interval{Low: Inclusive(lo), High: Inclusive(hi)} }

// AtLeast returns [lo, +inf).
func AtLeast(lo int64) Interval { return Interval{Low: Inclusive(lo)} }

// AtMost returns (-inf, hi].
func AtMost(hi int64) Interval { return Interval{High: Inclusive(hi)} }

// Unbounded accepts every value.
func Unbounded() Interval { return Interval{} }

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v int64) bool {
	if i.Low.Set && v < i.Low.Value {
		return false
	}
	if i.High.Set && v > i.High.Value {
		return false
	}
	return true
}

func (i Interval) String() string {
	lo, hi := "(-inf", "+inf)"
	if i.Low.Set {
		lo = "[" + strconv.FormatInt(i.Low.Value, 10)
	}
	if i.High.Set {
		hi = strconv.FormatInt(i.High.Value, 10) + "]"
	}
	return lo + ", " + hi
}

var (
	// DifficultyRange is fixed; it is not configurable per request.
	DifficultyRange = Closed(1, 3)
	// ScoreRange has no upper bound.
	ScoreRange = AtLeast(0)
)
