package optimizer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAdamFirstStepMagnitude(t *testing.T) {
	p := singleParam([]float64{1.0, -1.0}, []float64{0.5, -0.5})
	adam := NewAdam([]*Param{p}, 0.001, 0.9, 0.999, 1e-8, 0)

	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	// After bias correction the first update is lr * g/(|g| + eps),
	// so each parameter moves by roughly lr against its gradient.
	for j, g := range []float64{0.5, -0.5} {
		start := []float64{1.0, -1.0}[j]
		got := p.Value.RawMatrix().Data[j]
		moved := got - start
		wantMove := -0.001 * g / (math.Abs(g) + 1e-8)
		if math.Abs(moved-wantMove) > 1e-9 {
			t.Errorf("value[%d]: expected move %g, got %g", j, wantMove, moved)
		}
	}
}

func TestAdamDescendsQuadratic(t *testing.T) {
	// Minimize f(w) = w^2 from w = 1; gradient is 2w.
	p := singleParam([]float64{1.0}, nil)
	adam := NewAdam([]*Param{p}, 0.05, 0.9, 0.999, 1e-8, 0)

	for i := 0; i < 200; i++ {
		adam.ZeroGrad()
		w := p.Value.At(0, 0)
		p.Grad.Set(0, 0, 2*w)
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	if w := math.Abs(p.Value.At(0, 0)); w > 0.05 {
		t.Errorf("expected convergence near 0, got %f", p.Value.At(0, 0))
	}
}

func TestAdamDefaultFixups(t *testing.T) {
	adam := NewAdam(nil, 0.001, -1, 2, 0, 0)
	if adam.beta1 != 0.9 {
		t.Errorf("expected beta1 default 0.9, got %f", adam.beta1)
	}
	if adam.beta2 != 0.999 {
		t.Errorf("expected beta2 default 0.999, got %f", adam.beta2)
	}
	if adam.eps != 1e-8 {
		t.Errorf("expected eps default 1e-8, got %g", adam.eps)
	}
}

func TestAdamLearningRateAccessors(t *testing.T) {
	adam := NewAdam(nil, 0.001, 0.9, 0.999, 1e-8, 0)
	if adam.GetLR() != 0.001 {
		t.Errorf("expected lr 0.001, got %f", adam.GetLR())
	}
	adam.SetLR(0.1)
	if adam.GetLR() != 0.1 {
		t.Errorf("expected lr 0.1 after SetLR, got %f", adam.GetLR())
	}
}

func TestAdamShapeMismatch(t *testing.T) {
	p := NewParam("w", 2, 2)
	p.Grad = mat.NewDense(1, 2, nil)
	adam := NewAdam([]*Param{p}, 0.001, 0.9, 0.999, 1e-8, 0)

	if err := adam.Step(); err == nil {
		t.Error("expected error for value/gradient shape mismatch")
	}
}
