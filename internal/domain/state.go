package domain

import "fmt"

// PercentageState is the direction an asset (or a single lot) has moved
// relative to its reference price.
type PercentageState int

// Ordinals are written to backup records and must not change.
const (
	StateNeutral PercentageState = 1
	StateUp      PercentageState = 2
	StateDown    PercentageState = 3
)

func (s PercentageState) String() string {
	switch s {
	case StateNeutral:
		return "NEUTRAL"
	case StateUp:
		return "UP"
	case StateDown:
		return "DOWN"
	}
	return fmt.Sprintf("PercentageState(%d)", int(s))
}

func (s PercentageState) Valid() bool {
	return s == StateNeutral || s == StateUp || s == StateDown
}

// Ordinal returns the persisted integer form of the state.
func (s PercentageState) Ordinal() int {
	return int(s)
}

// StateFromOrdinal decodes a persisted state and rejects unknown values.
func StateFromOrdinal(v int) (PercentageState, error) {
	s := PercentageState(v)
	if !s.Valid() {
		return 0, fmt.Errorf("unknown percentage state ordinal %d", v)
	}
	return s, nil
}

// Classify maps a percentage onto a state using the low/high thresholds.
func Classify(percentage, low, high float64) PercentageState {
	if percentage <= low {
		return StateDown
	}
	if percentage >= high {
		return StateUp
	}
	return StateNeutral
}
