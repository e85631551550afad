package training

import (
	"fmt"
	"math"
)

// ScheduleKind names one of the supported learning-rate schedules. Unknown
// kinds are rejected when the run configuration is validated, not at first
// use.
type ScheduleKind string

const (
	ScheduleConstant ScheduleKind = "constant"
	ScheduleCosine   ScheduleKind = "cosine"
)

// Schedule maps a training-progress signal to a learning rate. Schedules are
// pure functions of their configuration; cyclic bookkeeping lives in RunState.
type Schedule interface {
	// LR returns the learning rate at the given position within a period.
	// Non-cyclic schedules ignore both arguments.
	LR(position, period float64) float64

	// Cyclic reports whether the schedule consumes per-cycle progress and
	// requires warm-restart bookkeeping.
	Cyclic() bool

	Name() string
}

// NewSchedule builds the schedule for the given kind.
func NewSchedule(kind ScheduleKind, lrInit float64) (Schedule, error) {
	switch kind {
	case ScheduleConstant:
		return ConstantSchedule{LRInit: lrInit}, nil
	case ScheduleCosine:
		return CosineSchedule{LRInit: lrInit}, nil
	default:
		return nil, fmt.Errorf("unsupported lr schedule %q", kind)
	}
}

// ConstantSchedule returns the initial learning rate for any progress value.
type ConstantSchedule struct {
	LRInit float64
}

func (s ConstantSchedule) LR(position, period float64) float64 { return s.LRInit }

func (s ConstantSchedule) Cyclic() bool { return false }

func (s ConstantSchedule) Name() string { return string(ScheduleConstant) }

// CosineSchedule implements cosine annealing with warm restarts. Within one
// cycle the rate decays from LRInit toward zero along a half-cosine as the
// position advances from 0 to the period length; restarts are driven by the
// trainer's per-epoch cycle bookkeeping, not by the schedule itself.
type CosineSchedule struct {
	LRInit float64
}

func (s CosineSchedule) LR(position, period float64) float64 {
	return s.LRInit * 0.5 * (1 + math.Cos(math.Pi*position/period))
}

func (s CosineSchedule) Cyclic() bool { return true }

func (s CosineSchedule) Name() string { return string(ScheduleCosine) }
