package model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hingraph/hingraph/problem"
)

func newTestModel(t *testing.T, dropout float64) (*Metapath, *problem.NodeProblem) {
	t.Helper()
	prob, err := problem.Synthetic(60, 6, 2, 2, 3)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}
	mdl, err := NewMetapath(prob.Features, prob.Metapaths, prob.NumClasses, dropout, 3)
	if err != nil {
		t.Fatalf("NewMetapath failed: %v", err)
	}
	return mdl, prob
}

func TestForwardShapes(t *testing.T) {
	mdl, _ := newTestModel(t, 0)

	ids := []int{0, 5, 12, 33}
	pred, err := mdl.Forward(ids, true)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	rows, cols := pred.Logits.Dims()
	if rows != len(ids) || cols != 2 {
		t.Errorf("expected logits (%d, 2), got (%d, %d)", len(ids), rows, cols)
	}
}

func TestAttentionWeightsDiagnostic(t *testing.T) {
	mdl, _ := newTestModel(t, 0)

	pred, err := mdl.Forward([]int{1, 2}, true)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if pred.Attention == nil {
		t.Fatal("expected attention weights in training mode")
	}
	if len(pred.Attention) != 2 {
		t.Fatalf("expected one weight per metapath, got %d", len(pred.Attention))
	}
	sum := 0.0
	for _, w := range pred.Attention {
		if w <= 0 {
			t.Errorf("attention weight %f not positive", w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("attention weights sum to %f, want 1", sum)
	}

	evalPred, err := mdl.Forward([]int{1, 2}, false)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if evalPred.Attention != nil {
		t.Error("expected no attention weights in evaluation mode")
	}
}

func TestForwardRejectsBadIDs(t *testing.T) {
	mdl, _ := newTestModel(t, 0)

	if _, err := mdl.Forward(nil, true); err == nil {
		t.Error("expected error for empty batch")
	}
	if _, err := mdl.Forward([]int{-1}, true); err == nil {
		t.Error("expected error for negative id")
	}
	if _, err := mdl.Forward([]int{10000}, true); err == nil {
		t.Error("expected error for out-of-range id")
	}
}

func TestBackwardBeforeForward(t *testing.T) {
	mdl, _ := newTestModel(t, 0)
	if err := mdl.Backward(mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected error for backward before forward")
	}
}

func TestBackwardGradientMatchesFiniteDifference(t *testing.T) {
	mdl, prob := newTestModel(t, 0) // dropout off: forward must be deterministic
	mdl.SetMode(true)

	ids := []int{0, 3, 7, 11, 20}
	targets := make([]int, len(ids))
	for i, id := range ids {
		targets[i] = prob.Labels[id]
	}

	lossAt := func() float64 {
		pred, err := mdl.Forward(ids, true)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		loss, _, err := prob.Loss(pred.Logits, targets)
		if err != nil {
			t.Fatalf("Loss failed: %v", err)
		}
		return loss
	}

	// Analytic gradients.
	pred, err := mdl.Forward(ids, true)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	_, gradLogits, err := prob.Loss(pred.Logits, targets)
	if err != nil {
		t.Fatalf("Loss failed: %v", err)
	}
	for _, p := range mdl.Parameters() {
		p.ZeroGrad()
	}
	if err := mdl.Backward(gradLogits); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	const eps = 1e-6
	for _, p := range mdl.Parameters() {
		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		// Probe a few entries of each parameter.
		probes := []int{0, len(value) / 2, len(value) - 1}
		for _, idx := range probes {
			orig := value[idx]
			value[idx] = orig + eps
			up := lossAt()
			value[idx] = orig - eps
			down := lossAt()
			value[idx] = orig

			numeric := (up - down) / (2 * eps)
			if math.Abs(numeric-grad[idx]) > 1e-5 {
				t.Errorf("%s[%d]: analytic %g, numeric %g", p.Name, idx, grad[idx], numeric)
			}
		}
	}
}

func TestAggregateMeanIncludesSelf(t *testing.T) {
	features := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	adj := [][]int{{1, 2}, {0}, {}}

	agg := aggregateMean(features, adj)

	// Node 0 averages itself with nodes 1 and 2.
	if got := agg.At(0, 0); math.Abs(got-3.0) > 1e-12 {
		t.Errorf("agg[0][0]: expected 3, got %f", got)
	}
	// Node 2 has no neighbors: mean of itself only.
	if got := agg.At(2, 1); math.Abs(got-6.0) > 1e-12 {
		t.Errorf("agg[2][1]: expected 6, got %f", got)
	}
}

func TestNewMetapathValidation(t *testing.T) {
	features := mat.NewDense(4, 2, nil)
	adj := [][][]int{{{1}, {0}, {3}, {2}}}

	if _, err := NewMetapath(features, nil, 2, 0, 0); err == nil {
		t.Error("expected error for zero metapaths")
	}
	if _, err := NewMetapath(features, adj, 2, 1.0, 0); err == nil {
		t.Error("expected error for dropout >= 1")
	}
	if _, err := NewMetapath(features, [][][]int{{{1}}}, 2, 0, 0); err == nil {
		t.Error("expected error for adjacency node-count mismatch")
	}
}
