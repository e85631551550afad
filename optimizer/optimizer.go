// Package optimizer provides gradient-based parameter-update engines for
// dense model parameters.
package optimizer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable parameter tensor paired with its gradient
// accumulator. Grad always has the same shape as Value.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// NewParam allocates a zero-valued parameter of the given shape.
func NewParam(name string, rows, cols int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, nil),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// Dims returns the parameter's shape.
func (p *Param) Dims() (int, int) {
	return p.Value.Dims()
}

// ZeroGrad clears the gradient accumulator.
func (p *Param) ZeroGrad() {
	data := p.Grad.RawMatrix().Data
	for i := range data {
		data[i] = 0
	}
}

// Optimizer is the update contract the training loop drives each batch.
type Optimizer interface {
	Step() error
	ZeroGrad()
	GetLR() float64
	SetLR(lr float64)
}

func checkShapes(p *Param) error {
	vr, vc := p.Value.Dims()
	gr, gc := p.Grad.Dims()
	if vr != gr || vc != gc {
		return fmt.Errorf("parameter %s: gradient shape (%d,%d) does not match value shape (%d,%d)",
			p.Name, gr, gc, vr, vc)
	}
	return nil
}
