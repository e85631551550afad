// Package problem supplies the dataset side of a training run: split
// storage, batch iteration, the loss function, and the metric function.
package problem

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hingraph/hingraph/training"
)

// NodeProblem is a node-classification dataset over a heterogeneous graph:
// dense node features, integer class labels, per-metapath adjacency, and
// fixed train/val/test index splits.
type NodeProblem struct {
	Features   *mat.Dense
	Labels     []int
	NumClasses int

	// Metapaths holds one adjacency list per metapath scheme:
	// Metapaths[m][node] lists the node's neighbors reachable along scheme m.
	Metapaths [][][]int

	splits map[training.SplitMode][]int
	rng    *rand.Rand
}

// New assembles a NodeProblem and validates that splits and labels are
// consistent with the feature matrix.
func New(features *mat.Dense, labels []int, numClasses int, metapaths [][][]int, train, val, test []int, seed int64) (*NodeProblem, error) {
	n, _ := features.Dims()
	if len(labels) != n {
		return nil, fmt.Errorf("labels length %d does not match %d nodes", len(labels), n)
	}
	if numClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	for m, adj := range metapaths {
		if len(adj) != n {
			return nil, fmt.Errorf("metapath %d adjacency covers %d nodes, want %d", m, len(adj), n)
		}
	}
	splits := map[training.SplitMode][]int{
		training.TrainSplit: train,
		training.ValSplit:   val,
		training.TestSplit:  test,
	}
	for mode, idx := range splits {
		if len(idx) == 0 {
			return nil, fmt.Errorf("%s split is empty", mode)
		}
		for _, i := range idx {
			if i < 0 || i >= n {
				return nil, fmt.Errorf("%s split index %d out of range [0, %d)", mode, i, n)
			}
		}
	}

	return &NodeProblem{
		Features:   features,
		Labels:     labels,
		NumClasses: numClasses,
		Metapaths:  metapaths,
		splits:     splits,
		rng:        rand.New(rand.NewSource(seed)),
	}, nil
}

// Iterate returns a fresh pass over the split. When shuffle is set the order
// is re-randomized per call; otherwise it is the stored split order. The
// final batch may be smaller than batchSize.
func (p *NodeProblem) Iterate(mode training.SplitMode, shuffle bool, batchSize int) (training.BatchIterator, error) {
	if batchSize <= 1 {
		return nil, fmt.Errorf("batch size must be > 1, got %d", batchSize)
	}
	split, ok := p.splits[mode]
	if !ok {
		return nil, fmt.Errorf("unknown split mode %v", mode)
	}

	indices := make([]int, len(split))
	copy(indices, split)
	if shuffle {
		for i := len(indices) - 1; i > 0; i-- {
			j := p.rng.Intn(i + 1)
			indices[i], indices[j] = indices[j], indices[i]
		}
	}

	return &batchIterator{
		problem:   p,
		indices:   indices,
		batchSize: batchSize,
	}, nil
}

type batchIterator struct {
	problem   *NodeProblem
	indices   []int
	batchSize int
	pos       int
}

func (it *batchIterator) Next() (*training.Batch, bool) {
	if it.pos >= len(it.indices) {
		return nil, false
	}

	end := it.pos + it.batchSize
	if end > len(it.indices) {
		end = len(it.indices)
	}

	ids := it.indices[it.pos:end]
	targets := make([]int, len(ids))
	for i, id := range ids {
		targets[i] = it.problem.Labels[id]
	}

	batch := &training.Batch{
		IDs:      ids,
		Targets:  targets,
		Progress: float64(it.pos) / float64(len(it.indices)),
	}
	it.pos = end
	return batch, true
}

// Loss computes mean softmax cross-entropy over the batch and its gradient
// with respect to the logits. Shape mismatches are contract violations and
// surface immediately.
func (p *NodeProblem) Loss(logits *mat.Dense, targets []int) (float64, *mat.Dense, error) {
	rows, cols := logits.Dims()
	if rows != len(targets) {
		return 0, nil, fmt.Errorf("loss shape mismatch: %d predictions, %d targets", rows, len(targets))
	}
	if cols != p.NumClasses {
		return 0, nil, fmt.Errorf("loss shape mismatch: %d logit columns, %d classes", cols, p.NumClasses)
	}

	grad := mat.NewDense(rows, cols, nil)
	loss := 0.0
	inv := 1.0 / float64(rows)
	for i := 0; i < rows; i++ {
		target := targets[i]
		if target < 0 || target >= cols {
			return 0, nil, fmt.Errorf("target %d out of range [0, %d)", target, cols)
		}

		// Shifted softmax for numerical stability.
		maxLogit := logits.At(i, 0)
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > maxLogit {
				maxLogit = v
			}
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += math.Exp(logits.At(i, j) - maxLogit)
		}

		logProb := logits.At(i, target) - maxLogit - math.Log(sum)
		loss -= logProb * inv

		for j := 0; j < cols; j++ {
			prob := math.Exp(logits.At(i, j)-maxLogit) / sum
			if j == target {
				prob -= 1
			}
			grad.Set(i, j, prob*inv)
		}
	}
	return loss, grad, nil
}

// Metrics reduces stacked logits against stacked true labels: accuracy plus
// macro and micro F1, computed once over the whole array.
func (p *NodeProblem) Metrics(actuals []int, logits *mat.Dense) (training.Metrics, error) {
	cm := training.NewConfusionMatrix(p.NumClasses)
	if err := cm.Update(actuals, logits); err != nil {
		return training.Metrics{}, err
	}
	return cm.Summary(), nil
}
