package app

import "time"

// Default pacing of a session. Kept here so config defaults and tests share one source.
const (
	DefaultTrickPause  = 2500 * time.Millisecond
	DefaultRoundPause  = 5 * time.Second
	DefaultFinishedTTL = 60 * time.Second
)

// AllowedTableSizes lists the supported values of maxPlayers.
var AllowedTableSizes = []int{4, 6}

// Timings controls the UX pauses between trick and round progression.
type Timings struct {
	TrickPause  time.Duration
	RoundPause  time.Duration
	FinishedTTL time.Duration
}

// DefaultTimings returns the standard pacing.
func DefaultTimings() Timings {
	return Timings{
		TrickPause:  DefaultTrickPause,
		RoundPause:  DefaultRoundPause,
		FinishedTTL: DefaultFinishedTTL,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.TrickPause <= 0 {
		t.TrickPause = d.TrickPause
	}
	if t.RoundPause <= 0 {
		t.RoundPause = d.RoundPause
	}
	if t.FinishedTTL <= 0 {
		t.FinishedTTL = d.FinishedTTL
	}
	return t
}
