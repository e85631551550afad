package training

import "time"

// Snapshot records the best validation outcome observed so far. It is
// immutable once created and replaced wholesale when a strictly better
// validation round is observed.
type Snapshot struct {
	Epoch       int     `json:"epoch"`
	ValLoss     float64 `json:"val_loss"`
	ValMetrics  Metrics `json:"val_metric"`
	TestMetrics Metrics `json:"test_metric"`
}

// improves applies the two-key lexicographic comparison: accuracy dominates,
// validation loss breaks ties. A nil best always improves.
func improves(best *Snapshot, acc, valLoss float64) bool {
	if best == nil {
		return true
	}
	if acc > best.ValMetrics.Accuracy {
		return true
	}
	return acc == best.ValMetrics.Accuracy && valLoss < best.ValLoss
}

// RunState is the complete mutable state of a training run, owned exclusively
// by the Trainer. It serializes to JSON so a run can be resumed from a saved
// state.
type RunState struct {
	Epoch     int        `json:"epoch"`
	Tolerance int        `json:"tolerance"`
	Best      *Snapshot  `json:"best,omitempty"`
	Cycle     CycleState `json:"cycle"`
	StartTime time.Time  `json:"start_time"`
}

// RunStatus is the terminal state of a run. Early stopping is a normal
// outcome, distinct from failure.
type RunStatus string

const (
	RunCompleted    RunStatus = "completed"
	RunStoppedEarly RunStatus = "stopped_early"
	RunFailed       RunStatus = "failed"
)

// RunResult summarizes a finished run. Best is nil when no evaluation round
// ever improved on the initial sentinel.
type RunResult struct {
	Status RunStatus `json:"status"`
	Epochs int       `json:"epochs"`
	Best   *Snapshot `json:"best,omitempty"`
}
