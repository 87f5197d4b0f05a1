package neuralnet

import (
	"math"

	"github.com/pkg/errors"
)

// ActivationFunction is an element-wise nonlinearity and its derivative
// with respect to the pre-activation value.
type ActivationFunction interface {
	Activate(x float64) float64
	Derivative(x float64) float64
}

// ReLU clamps negatives to zero.
type ReLU struct{}

func (r ReLU) Activate(x float64) float64 {
	return math.Max(x, 0)
}

func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// LeakyReLU scales negatives by alpha instead of zeroing them.
type LeakyReLU struct {
	alpha float64
}

// NewLeakyReLU returns a LeakyReLU with the given negative slope.
func NewLeakyReLU(alpha float64) LeakyReLU {
	return LeakyReLU{alpha: alpha}
}

// Alpha is the slope applied to negative inputs.
func (l LeakyReLU) Alpha() float64 {
	return l.alpha
}

func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.alpha * x
}

func (l LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.alpha
}

// Sigmoid squashes into (0, 1).
type Sigmoid struct{}

func (s Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func (s Sigmoid) Derivative(x float64) float64 {
	sigmoid := s.Activate(x)
	return sigmoid * (1 - sigmoid)
}

// Tanh squashes into (-1, 1).
type Tanh struct{}

func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

func (t Tanh) Derivative(x float64) float64 {
	tanh := t.Activate(x)
	return 1 - tanh*tanh
}

// Linear is the identity.
type Linear struct{}

func (t Linear) Activate(x float64) float64 {
	return x
}

func (t Linear) Derivative(x float64) float64 {
	return 1
}

const defaultLeakyAlpha = 0.01

// ActivationByName resolves the names used on the command line. leaky_relu
// gets a 0.01 slope.
func ActivationByName(name string) (ActivationFunction, error) {
	return restoreActivation(name, nil)
}

// restoreActivation rebuilds a persisted activation; alpha, when set,
// overrides the LeakyReLU slope.
func restoreActivation(name string, alpha *float64) (ActivationFunction, error) {
	switch name {
	case "relu":
		return ReLU{}, nil
	case "leaky_relu":
		if alpha != nil {
			return NewLeakyReLU(*alpha), nil
		}
		return NewLeakyReLU(defaultLeakyAlpha), nil
	case "sigmoid":
		return Sigmoid{}, nil
	case "tanh":
		return Tanh{}, nil
	case "linear":
		return Linear{}, nil
	}
	return nil, errors.Errorf("unknown activation %q", name)
}

// activationName is the inverse of ActivationByName. Activations defined
// outside this package cannot be persisted.
func activationName(f ActivationFunction) (string, error) {
	switch f.(type) {
	case ReLU:
		return "relu", nil
	case LeakyReLU:
		return "leaky_relu", nil
	case Sigmoid:
		return "sigmoid", nil
	case Tanh:
		return "tanh", nil
	case Linear:
		return "linear", nil
	}
	return "", errors.Errorf("activation %T has no persisted form", f)
}
