package training

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Config holds the immutable run configuration, supplied once at start.
type Config struct {
	MaxEpochs      int          `json:"max_epochs"`
	BatchSize      int          `json:"batch_size"`
	LRInit         float64      `json:"lr_init"`
	Schedule       ScheduleKind `json:"lr_schedule"`
	ToleranceLimit int          `json:"tolerance"`
	LogInterval    int          `json:"log_interval"`
	PeriodMult     int          `json:"period_mult"`
}

// Validate checks the configuration before the loop starts. Configuration
// errors fail fast and are never retried.
func (c *Config) Validate() error {
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("max epochs must be positive, got %d", c.MaxEpochs)
	}
	if c.BatchSize <= 1 {
		return fmt.Errorf("batch size must be > 1, got %d", c.BatchSize)
	}
	if c.LRInit <= 0 {
		return fmt.Errorf("initial learning rate must be positive, got %g", c.LRInit)
	}
	if c.ToleranceLimit < 0 {
		return fmt.Errorf("tolerance limit must be non-negative, got %d", c.ToleranceLimit)
	}
	if c.LogInterval <= 0 {
		c.LogInterval = 1
	}
	if c.PeriodMult <= 0 {
		c.PeriodMult = 2
	}
	if _, err := NewSchedule(c.Schedule, c.LRInit); err != nil {
		return err
	}
	return nil
}

// Trainer drives the epoch loop: batch iteration, learning-rate scheduling,
// evaluation rounds, best-result selection, and early stopping. It owns the
// RunState exclusively; model and optimizer state are mutated only through
// their own contracts.
type Trainer struct {
	problem  Problem
	model    Model
	opt      Optimizer
	sched    Schedule
	cfg      Config
	reporter Reporter
	state    RunState
}

// Option configures a Trainer beyond the required collaborators.
type Option func(*Trainer)

// WithReporter attaches a reporter for the run's observable records.
func WithReporter(r Reporter) Option {
	return func(t *Trainer) { t.reporter = r }
}

// WithInitialState resumes the run from a previously serialized RunState.
func WithInitialState(state RunState) Option {
	return func(t *Trainer) { t.state = state }
}

// NewTrainer validates the configuration and assembles a trainer.
func NewTrainer(problem Problem, model Model, opt Optimizer, cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training configuration: %v", err)
	}
	sched, err := NewSchedule(cfg.Schedule, cfg.LRInit)
	if err != nil {
		return nil, err
	}

	t := &Trainer{
		problem:  problem,
		model:    model,
		opt:      opt,
		sched:    sched,
		cfg:      cfg,
		reporter: nopReporter{},
		state: RunState{
			Cycle: NewCycleState(cfg.PeriodMult),
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// State returns a copy of the current run state, suitable for serialization
// and later resumption.
func (t *Trainer) State() RunState {
	return t.state
}

// Run executes the training loop until the tolerance limit is exceeded or
// MaxEpochs is reached. Collaborator contract violations terminate the run
// as a failure; early stopping is a normal terminal status.
func (t *Trainer) Run() (*RunResult, error) {
	st := &t.state
	if st.StartTime.IsZero() {
		st.StartTime = time.Now()
	}

	status := RunCompleted
	for ; st.Epoch < t.cfg.MaxEpochs; st.Epoch++ {
		// The limit itself is still tolerated: the loop halts only once
		// the counter exceeds it.
		if st.Tolerance > t.cfg.ToleranceLimit {
			status = RunStoppedEarly
			break
		}

		trainLoss, err := t.trainEpoch()
		if err != nil {
			t.reporter.RunDone(RunResult{Status: RunFailed, Epochs: st.Epoch})
			return nil, fmt.Errorf("training epoch %d failed: %v", st.Epoch, err)
		}

		t.reporter.EpochDone(EpochRecord{
			Epoch:     st.Epoch,
			Elapsed:   time.Since(st.StartTime).Seconds(),
			TrainLoss: trainLoss,
		})

		// Cycle bookkeeping advances once per epoch, after all batches.
		if t.sched.Cyclic() {
			st.Cycle.Advance()
		}

		if st.Epoch%t.cfg.LogInterval == 0 {
			if err := t.evalRound(); err != nil {
				t.reporter.RunDone(RunResult{Status: RunFailed, Epochs: st.Epoch})
				return nil, fmt.Errorf("evaluation at epoch %d failed: %v", st.Epoch, err)
			}
		}
	}

	res := &RunResult{
		Status: status,
		Epochs: st.Epoch,
		Best:   st.Best,
	}
	t.reporter.RunDone(*res)
	return res, nil
}

// trainEpoch consumes one shuffled pass over the training split and returns
// the summed batch loss.
func (t *Trainer) trainEpoch() (float64, error) {
	t.model.SetMode(true)

	it, err := t.problem.Iterate(TrainSplit, true, t.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	trainLoss := 0.0
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}

		t.opt.SetLR(t.learningRate(batch.Progress))
		t.opt.ZeroGrad()

		pred, err := t.model.Forward(batch.IDs, true)
		if err != nil {
			return 0, err
		}

		loss, grad, err := t.problem.Loss(pred.Logits, batch.Targets)
		if err != nil {
			return 0, err
		}
		if err := t.model.Backward(grad); err != nil {
			return 0, err
		}
		if err := t.opt.Step(); err != nil {
			return 0, err
		}

		trainLoss += loss
	}
	return trainLoss, nil
}

// learningRate computes the rate for the current batch. Cyclic schedules see
// the position within the current restart period; others see monotonic
// overall-run progress.
func (t *Trainer) learningRate(progress float64) float64 {
	if t.sched.Cyclic() {
		return t.sched.LR(float64(t.state.Cycle.Pos)+progress, float64(t.state.Cycle.Period))
	}
	overall := (float64(t.state.Epoch) + progress) / float64(t.cfg.MaxEpochs)
	return t.sched.LR(overall, 1)
}

// evalRound evaluates validation and test splits, updates the best snapshot
// and tolerance counter, and emits the round's record.
func (t *Trainer) evalRound() error {
	st := &t.state

	valLoss, valMetrics, err := t.Evaluate(ValSplit)
	if err != nil {
		return err
	}
	_, testMetrics, err := t.Evaluate(TestSplit)
	if err != nil {
		return err
	}

	improved := improves(st.Best, valMetrics.Accuracy, valLoss)
	if improved {
		st.Tolerance = 0
		st.Best = &Snapshot{
			Epoch:       st.Epoch,
			ValLoss:     valLoss,
			ValMetrics:  valMetrics,
			TestMetrics: testMetrics,
		}
	} else {
		st.Tolerance++
	}

	t.reporter.EvalDone(EvalRecord{
		Epoch:       st.Epoch,
		ValLoss:     valLoss,
		ValMetrics:  valMetrics,
		TestMetrics: testMetrics,
		Tolerance:   st.Tolerance,
		Improved:    improved,
	})
	return nil
}

// Evaluate runs the model in evaluation mode over an unshuffled split and
// returns the summed loss plus metrics computed once over the concatenated
// predictions and targets. It performs no gradient steps.
func (t *Trainer) Evaluate(split SplitMode) (float64, Metrics, error) {
	t.model.SetMode(false)

	it, err := t.problem.Iterate(split, false, t.cfg.BatchSize)
	if err != nil {
		return 0, Metrics{}, err
	}

	lossSum := 0.0
	var parts []*mat.Dense
	var actuals []int
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}

		pred, err := t.model.Forward(batch.IDs, false)
		if err != nil {
			return 0, Metrics{}, err
		}
		loss, _, err := t.problem.Loss(pred.Logits, batch.Targets)
		if err != nil {
			return 0, Metrics{}, err
		}

		lossSum += loss
		parts = append(parts, pred.Logits)
		actuals = append(actuals, batch.Targets...)
	}

	stacked, err := vstack(parts)
	if err != nil {
		return 0, Metrics{}, err
	}
	metrics, err := t.problem.Metrics(actuals, stacked)
	if err != nil {
		return 0, Metrics{}, err
	}
	return lossSum, metrics, nil
}

// vstack concatenates row blocks into one dense matrix.
func vstack(parts []*mat.Dense) (*mat.Dense, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("cannot stack an empty split")
	}

	_, cols := parts[0].Dims()
	totalRows := 0
	for _, p := range parts {
		r, c := p.Dims()
		if c != cols {
			return nil, fmt.Errorf("column mismatch while stacking: %d vs %d", cols, c)
		}
		totalRows += r
	}

	out := mat.NewDense(totalRows, cols, nil)
	row := 0
	for _, p := range parts {
		r, _ := p.Dims()
		for i := 0; i < r; i++ {
			out.SetRow(row, p.RawRowView(i))
			row++
		}
	}
	return out, nil
}
