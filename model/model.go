// Package model implements the predictor consumed by the training loop: a
// metapath-aggregating node classifier with a learned gate over metapaths.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hingraph/hingraph/optimizer"
	"github.com/hingraph/hingraph/training"
)

// Metapath classifies graph nodes from per-metapath neighborhood views. For
// each metapath the node's representation is the mean of its own features and
// its neighbors' features along that path (precomputed, since graph and
// features are fixed). A learned softmax gate fuses the views; the gate
// weights double as the diagnostic attention output. Dropout applies to the
// fused representation in training mode only, and a linear head produces
// class logits.
//
// Gradients are computed analytically by Backward and accumulated into the
// parameters; the optimizer owns the actual updates.
type Metapath struct {
	agg        []*mat.Dense // per metapath: nodes x dim aggregated features
	gate       *optimizer.Param
	weight     *optimizer.Param
	bias       *optimizer.Param
	dim        int
	numClasses int
	dropout    float64
	training   bool
	rng        *rand.Rand

	// forward cache consumed by the next Backward call
	lastViews   []*mat.Dense
	lastFused   *mat.Dense
	lastMask    []float64
	lastWeights []float64
}

// NewMetapath builds the model from fixed node features and one adjacency
// list per metapath.
func NewMetapath(features *mat.Dense, metapaths [][][]int, numClasses int, dropout float64, seed int64) (*Metapath, error) {
	if len(metapaths) == 0 {
		return nil, fmt.Errorf("need at least one metapath")
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("dropout must be in [0, 1), got %g", dropout)
	}

	nodes, dim := features.Dims()
	agg := make([]*mat.Dense, len(metapaths))
	for m, adj := range metapaths {
		if len(adj) != nodes {
			return nil, fmt.Errorf("metapath %d adjacency covers %d nodes, want %d", m, len(adj), nodes)
		}
		agg[m] = aggregateMean(features, adj)
	}

	rng := rand.New(rand.NewSource(seed))

	// Xavier-uniform head, zero bias, uniform gate.
	weight := optimizer.NewParam("weight", dim, numClasses)
	bound := math.Sqrt(6.0 / float64(dim+numClasses))
	wData := weight.Value.RawMatrix().Data
	for i := range wData {
		wData[i] = (rng.Float64()*2 - 1) * bound
	}

	return &Metapath{
		agg:        agg,
		gate:       optimizer.NewParam("gate", 1, len(metapaths)),
		weight:     weight,
		bias:       optimizer.NewParam("bias", 1, numClasses),
		dim:        dim,
		numClasses: numClasses,
		dropout:    dropout,
		training:   true,
		rng:        rng,
	}, nil
}

// aggregateMean averages each node's features with its neighbors' along one
// metapath.
func aggregateMean(features *mat.Dense, adj [][]int) *mat.Dense {
	nodes, dim := features.Dims()
	out := mat.NewDense(nodes, dim, nil)
	row := make([]float64, dim)
	for i := 0; i < nodes; i++ {
		copy(row, features.RawRowView(i))
		for _, nb := range adj[i] {
			for j, v := range features.RawRowView(nb) {
				row[j] += v
			}
		}
		scale := 1.0 / float64(len(adj[i])+1)
		for j := range row {
			row[j] *= scale
		}
		out.SetRow(i, row)
	}
	return out
}

// SetMode toggles training mode. Only stochastic regularization (dropout)
// depends on it; learned parameters are untouched.
func (m *Metapath) SetMode(train bool) {
	m.training = train
}

// Parameters returns the trainable parameters for optimizer wiring.
func (m *Metapath) Parameters() []*optimizer.Param {
	return []*optimizer.Param{m.gate, m.weight, m.bias}
}

// Forward computes class logits for the given node ids. In training mode the
// prediction carries the gate's attention weights for diagnostics; in
// evaluation mode Attention is nil.
func (m *Metapath) Forward(ids []int, train bool) (*training.Prediction, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("empty id batch")
	}
	nodes, _ := m.agg[0].Dims()
	for _, id := range ids {
		if id < 0 || id >= nodes {
			return nil, fmt.Errorf("node id %d out of range [0, %d)", id, nodes)
		}
	}

	weights := softmax(m.gate.Value.RawRowView(0))

	views := make([]*mat.Dense, len(m.agg))
	fused := mat.NewDense(len(ids), m.dim, nil)
	for v, aggregated := range m.agg {
		view := mat.NewDense(len(ids), m.dim, nil)
		for i, id := range ids {
			view.SetRow(i, aggregated.RawRowView(id))
		}
		views[v] = view

		fusedData := fused.RawMatrix().Data
		for j, x := range view.RawMatrix().Data {
			fusedData[j] += weights[v] * x
		}
	}

	var mask []float64
	if m.training && m.dropout > 0 {
		keep := 1.0 - m.dropout
		fusedData := fused.RawMatrix().Data
		mask = make([]float64, len(fusedData))
		for j := range mask {
			if m.rng.Float64() < keep {
				mask[j] = 1.0 / keep
			}
			fusedData[j] *= mask[j]
		}
	}

	logits := mat.NewDense(len(ids), m.numClasses, nil)
	logits.Mul(fused, m.weight.Value)
	logitData := logits.RawMatrix().Data
	biasRow := m.bias.Value.RawRowView(0)
	for i := 0; i < len(ids); i++ {
		for j := 0; j < m.numClasses; j++ {
			logitData[i*m.numClasses+j] += biasRow[j]
		}
	}

	m.lastViews = views
	m.lastFused = fused
	m.lastMask = mask
	m.lastWeights = weights

	pred := &training.Prediction{Logits: logits}
	if train {
		attn := make([]float64, len(weights))
		copy(attn, weights)
		pred.Attention = attn
	}
	return pred, nil
}

// Backward accumulates parameter gradients from the loss gradient with
// respect to the logits of the most recent Forward call.
func (m *Metapath) Backward(gradLogits *mat.Dense) error {
	if m.lastFused == nil {
		return fmt.Errorf("backward called before forward")
	}
	rows, cols := gradLogits.Dims()
	fr, _ := m.lastFused.Dims()
	if rows != fr || cols != m.numClasses {
		return fmt.Errorf("gradient shape (%d,%d) does not match forward output (%d,%d)", rows, cols, fr, m.numClasses)
	}

	// Head gradients: dW += fused^T * dLogits, db += column sums.
	var dW mat.Dense
	dW.Mul(m.lastFused.T(), gradLogits)
	m.weight.Grad.Add(m.weight.Grad, &dW)

	biasGrad := m.bias.Grad.RawRowView(0)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			biasGrad[j] += gradLogits.At(i, j)
		}
	}

	// Back through the head and dropout mask to the fused representation.
	var dFused mat.Dense
	dFused.Mul(gradLogits, m.weight.Value.T())
	dFusedData := dFused.RawMatrix().Data
	if m.lastMask != nil {
		for j := range dFusedData {
			dFusedData[j] *= m.lastMask[j]
		}
	}

	// Gate gradient through the softmax: s_v = <dFused, view_v>,
	// dGate_v = w_v * (s_v - sum_u w_u s_u).
	scores := make([]float64, len(m.lastViews))
	for v, view := range m.lastViews {
		viewData := view.RawMatrix().Data
		s := 0.0
		for j := range dFusedData {
			s += dFusedData[j] * viewData[j]
		}
		scores[v] = s
	}
	weighted := 0.0
	for v, w := range m.lastWeights {
		weighted += w * scores[v]
	}
	gateGrad := m.gate.Grad.RawRowView(0)
	for v, w := range m.lastWeights {
		gateGrad[v] += w * (scores[v] - weighted)
	}

	return nil
}

func softmax(x []float64) []float64 {
	maxVal := x[0]
	for _, v := range x[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		out[i] = math.Exp(v - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
