package mint

import (
	"time"

	"github.com/DragonX2024888/DragonX/internal/chain"
)

// WindowConfig parameterizes the enrollment window and the decaying
// conversion ratio. The effective ratio is full before the decay
// begins, then steps down by StepBps every RatioStep, never dropping
// below FloorBps.
type WindowConfig struct {
	Begin time.Time
	End   time.Time

	// RatioStep is the width of one ladder step.
	RatioStep time.Duration
	// FullRatioSteps is the number of initial steps served at the
	// full 1:1 ratio before decay starts.
	FullRatioSteps int
	// StepBps is the decrement applied per step once decay starts.
	StepBps uint16
	// FloorBps is the lowest ratio the ladder ever reaches.
	FloorBps uint16

	// GenesisShareBps is the owner skim applied independently to the
	// deposited asset and to the minted supply.
	GenesisShareBps uint16
}

// DefaultWindowConfig is the production schedule: a 12-step weekly
// ladder, full ratio for the first two weeks, then -5% per week down
// to a 50% floor, with an 8% genesis skim.
func DefaultWindowConfig(begin time.Time) WindowConfig {
	const week = 7 * 24 * time.Hour
	return WindowConfig{
		Begin:           begin,
		End:             begin.Add(12 * week),
		RatioStep:       week,
		FullRatioSteps:  2,
		StepBps:         500,
		FloorBps:        5000,
		GenesisShareBps: 800,
	}
}

// RatioBps returns the effective conversion ratio at now. It is 10000
// before the ladder starts and monotonically non-increasing afterwards.
func (c WindowConfig) RatioBps(now time.Time) uint16 {
	if now.Before(c.Begin) {
		return chain.Basis
	}
	step := int(now.Sub(c.Begin) / c.RatioStep)
	if step < c.FullRatioSteps {
		return chain.Basis
	}
	decay := uint64(c.StepBps) * uint64(step-c.FullRatioSteps+1)
	if decay >= uint64(chain.Basis-c.FloorBps) {
		return c.FloorBps
	}
	return chain.Basis - uint16(decay)
}
