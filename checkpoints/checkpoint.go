// Package checkpoints persists run state and model parameters as JSON so a
// training run can be inspected, resumed, and its best model recovered.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hingraph/hingraph/optimizer"
	"github.com/hingraph/hingraph/training"
)

// WeightTensor is one serialized parameter.
type WeightTensor struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// Checkpoint bundles parameter tensors with the snapshot that produced them.
type Checkpoint struct {
	SavedAt  time.Time          `json:"saved_at"`
	Snapshot *training.Snapshot `json:"snapshot,omitempty"`
	Weights  []WeightTensor     `json:"weights"`
}

// SaveRunState writes the trainer's state to path.
func SaveRunState(path string, state training.RunState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write run state: %v", err)
	}
	return nil
}

// LoadRunState reads a previously saved run state.
func LoadRunState(path string) (training.RunState, error) {
	var state training.RunState
	raw, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("failed to read run state: %v", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("failed to parse run state %s: %v", path, err)
	}
	return state, nil
}

// SaveWeights writes a checkpoint of the given parameters.
func SaveWeights(path string, params []*optimizer.Param, snapshot *training.Snapshot) error {
	cp := Checkpoint{
		SavedAt:  time.Now(),
		Snapshot: snapshot,
		Weights:  make([]WeightTensor, 0, len(params)),
	}
	for _, p := range params {
		rows, cols := p.Dims()
		data := make([]float64, rows*cols)
		copy(data, p.Value.RawMatrix().Data)
		cp.Weights = append(cp.Weights, WeightTensor{
			Name: p.Name,
			Rows: rows,
			Cols: cols,
			Data: data,
		})
	}

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %v", err)
	}
	return nil
}

// LoadWeights restores parameter values from a checkpoint, matched by name.
// Every parameter must be present with its exact shape.
func LoadWeights(path string, params []*optimizer.Param) (*Checkpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %v", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %v", path, err)
	}

	byName := make(map[string]WeightTensor, len(cp.Weights))
	for _, w := range cp.Weights {
		byName[w.Name] = w
	}
	for _, p := range params {
		w, ok := byName[p.Name]
		if !ok {
			return nil, fmt.Errorf("checkpoint is missing parameter %s", p.Name)
		}
		rows, cols := p.Dims()
		if w.Rows != rows || w.Cols != cols {
			return nil, fmt.Errorf("parameter %s shape mismatch: checkpoint (%d,%d), model (%d,%d)",
				p.Name, w.Rows, w.Cols, rows, cols)
		}
		copy(p.Value.RawMatrix().Data, w.Data)
	}
	return &cp, nil
}

// BestKeeper is a training.Reporter that saves a full parameter checkpoint
// whenever an evaluation round improves the best result, so the improving
// model itself is preserved alongside the metrics snapshot.
type BestKeeper struct {
	dir    string
	params []*optimizer.Param
	err    error
}

// NewBestKeeper creates a keeper writing into dir.
func NewBestKeeper(dir string, params []*optimizer.Param) (*BestKeeper, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir: %v", err)
	}
	return &BestKeeper{dir: dir, params: params}, nil
}

// BestPath returns the location of the best-model checkpoint.
func (bk *BestKeeper) BestPath() string {
	return filepath.Join(bk.dir, "best.json")
}

// Err reports the first write failure, if any. Checkpoint failures do not
// interrupt training; the run's results still stream to other reporters.
func (bk *BestKeeper) Err() error {
	return bk.err
}

func (bk *BestKeeper) EpochDone(training.EpochRecord) {}

func (bk *BestKeeper) EvalDone(rec training.EvalRecord) {
	if !rec.Improved {
		return
	}
	snapshot := &training.Snapshot{
		Epoch:       rec.Epoch,
		ValLoss:     rec.ValLoss,
		ValMetrics:  rec.ValMetrics,
		TestMetrics: rec.TestMetrics,
	}
	if err := SaveWeights(bk.BestPath(), bk.params, snapshot); err != nil && bk.err == nil {
		bk.err = err
	}
}

func (bk *BestKeeper) RunDone(training.RunResult) {}
