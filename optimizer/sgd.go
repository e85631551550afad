package optimizer

// SGD implements stochastic gradient descent with optional momentum and L2
// weight decay.
type SGD struct {
	params       []*Param
	learningRate float64
	momentum     float64
	weightDecay  float64
	velocities   [][]float64
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(params []*Param, lr, momentum, weightDecay float64) *SGD {
	sgd := &SGD{
		params:       params,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
	}
	if momentum > 0 {
		sgd.velocities = make([][]float64, len(params))
		for i, p := range params {
			sgd.velocities[i] = make([]float64, len(p.Value.RawMatrix().Data))
		}
	}
	return sgd
}

// Step applies one descent update to every parameter.
func (sgd *SGD) Step() error {
	for i, p := range sgd.params {
		if err := checkShapes(p); err != nil {
			return err
		}

		value := p.Value.RawMatrix().Data
		grad := p.Grad.RawMatrix().Data
		for j := range value {
			g := grad[j]
			if sgd.weightDecay > 0 {
				g += sgd.weightDecay * value[j]
			}
			if sgd.momentum > 0 {
				v := sgd.momentum*sgd.velocities[i][j] + g
				sgd.velocities[i][j] = v
				g = v
			}
			value[j] -= sgd.learningRate * g
		}
	}
	return nil
}

// ZeroGrad resets all gradient accumulators.
func (sgd *SGD) ZeroGrad() {
	for _, p := range sgd.params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (sgd *SGD) GetLR() float64 {
	return sgd.learningRate
}

// SetLR sets the learning rate.
func (sgd *SGD) SetLR(lr float64) {
	sgd.learningRate = lr
}
