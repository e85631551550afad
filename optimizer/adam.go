package optimizer

import "math"

// Adam implements the Adam optimizer with bias-corrected moment estimates
// and optional L2 weight decay.
type Adam struct {
	params      []*Param
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	step        int64
	m           [][]float64
	v           [][]float64
}

// NewAdam creates an Adam optimizer over the given parameters. Non-positive
// betas and epsilon fall back to the conventional defaults.
func NewAdam(params []*Param, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	if beta1 <= 0 || beta1 >= 1 {
		beta1 = 0.9
	}
	if beta2 <= 0 || beta2 >= 1 {
		beta2 = 0.999
	}
	if eps <= 0 {
		eps = 1e-8
	}

	adam := &Adam{
		params:      params,
		lr:          lr,
		beta1:       beta1,
		beta2:       beta2,
		eps:         eps,
		weightDecay: weightDecay,
		m:           make([][]float64, len(params)),
		v:           make([][]float64, len(params)),
	}
	for i, p := range params {
		n := len(p.Value.RawMatrix().Data)
		adam.m[i] = make([]float64, n)
		adam.v[i] = make([]float64, n)
	}
	return adam
}

// Step applies one Adam update to every parameter.
func (adam *Adam) Step() error {
	adam.step++
	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for i, p := range adam.params {
		if err := checkShapes(p); err != nil {
			return err
		}

		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		for j := range value {
			g := grad[j]
			if adam.weightDecay > 0 {
				g += adam.weightDecay * value[j]
			}

			adam.m[i][j] = adam.beta1*adam.m[i][j] + (1-adam.beta1)*g
			adam.v[i][j] = adam.beta2*adam.v[i][j] + (1-adam.beta2)*g*g

			mHat := adam.m[i][j] / bias1
			vHat := adam.v[i][j] / bias2
			value[j] -= adam.lr * mHat / (math.Sqrt(vHat) + adam.eps)
		}
	}
	return nil
}

// ZeroGrad resets all gradient accumulators.
func (adam *Adam) ZeroGrad() {
	for _, p := range adam.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (adam *Adam) GetLR() float64 {
	return adam.lr
}

// SetLR sets the learning rate.
func (adam *Adam) SetLR(lr float64) {
	adam.lr = lr
}
