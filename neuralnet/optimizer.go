package neuralnet

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Optimizer defines interface to apply a gradient to a parameter matrix in place.
type Optimizer interface {
	Apply(param, grad *mat.Dense) error
}

// SGD implements plain gradient descent with a fixed learning rate.
type SGD struct {
	Lr float64
}

// Apply performs param -= Lr * grad.
func (o *SGD) Apply(param, grad *mat.Dense) error {
	if o.Lr <= 0 {
		return errors.Errorf("invalid learning rate %v", o.Lr)
	}
	pr, pc := param.Dims()
	gr, gc := grad.Dims()
	if pr != gr || pc != gc {
		return errors.Wrapf(ErrShape, "param %dx%d, gradient %dx%d", pr, pc, gr, gc)
	}
	var step mat.Dense
	step.Scale(o.Lr, grad)
	param.Sub(param, &step)
	return nil
}
