package training

import (
	"gonum.org/v1/gonum/mat"
)

// SplitMode identifies which slice of the dataset an iteration draws from.
type SplitMode int

const (
	TrainSplit SplitMode = iota
	ValSplit
	TestSplit
)

func (m SplitMode) String() string {
	switch m {
	case TrainSplit:
		return "train"
	case ValSplit:
		return "val"
	case TestSplit:
		return "test"
	default:
		return "unknown"
	}
}

// Batch is one group of examples produced by a Problem iteration. Progress is
// the fractional position of the batch within the epoch, in [0, 1), strictly
// increasing across a single iteration pass. The cyclic learning-rate schedule
// uses it to interpolate within an epoch.
type Batch struct {
	IDs      []int
	Targets  []int
	Progress float64
}

// BatchIterator yields batches until the split is exhausted. Each call to
// Problem.Iterate produces a fresh iterator covering the split exactly once.
type BatchIterator interface {
	Next() (*Batch, bool)
}

// Prediction is the output of a model forward pass. Attention carries the
// model's diagnostic attention weights when it produces them and is nil
// otherwise; it never affects control flow.
type Prediction struct {
	Logits    *mat.Dense
	Attention []float64
}

// Problem supplies data iteration, the loss function, and the metric
// function. The trainer never touches dataset storage directly.
type Problem interface {
	// Iterate returns a finite, restartable batch sequence over the split.
	// Order is randomized per call when shuffle is true.
	Iterate(mode SplitMode, shuffle bool, batchSize int) (BatchIterator, error)

	// Loss returns the scalar loss and its gradient with respect to the
	// logits. It fails if prediction and target shapes disagree.
	Loss(logits *mat.Dense, targets []int) (float64, *mat.Dense, error)

	// Metrics computes evaluation metrics over full stacked prediction and
	// target arrays, not batch-by-batch averages.
	Metrics(actuals []int, logits *mat.Dense) (Metrics, error)
}

// Model is the stateful predictor driven by the trainer. Parameter updates
// happen only through the optimizer; the trainer interacts with the model
// solely via the mode switch and the forward/backward contract.
type Model interface {
	Forward(ids []int, train bool) (*Prediction, error)
	Backward(gradLogits *mat.Dense) error
	SetMode(train bool)
}

// Optimizer is the parameter-update engine. The trainer only sets its
// learning rate and triggers zero/step around each batch.
type Optimizer interface {
	Step() error
	ZeroGrad()
	GetLR() float64
	SetLR(lr float64)
}
