package neuralnet

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DefaultLearningRate is used by dense layers built without an explicit rate.
const DefaultLearningRate = 0.01

// Layer is one stage of a Sequential model. Inputs are row-major batches,
// one example per row.
type Layer interface {
	// Forward computes the layer output. training enables stochastic
	// behavior such as dropout and records what Backward needs.
	Forward(x *mat.Dense, training bool) *mat.Dense
	// Backward takes ∂L/∂output of the last Forward, updates any
	// parameters and returns ∂L/∂input.
	Backward(grad *mat.Dense) (*mat.Dense, error)
	// Shape reports input and output widths; zero means width preserving.
	Shape() (in, out int)
	// Spec exports the layer for persistence.
	Spec() (LayerSpec, error)
}

// LayerSpec is the persisted form of a layer.
type LayerSpec struct {
	Type         string    `json:"type"`
	Inputs       int       `json:"inputs,omitempty"`
	Outputs      int       `json:"outputs,omitempty"`
	LearningRate float64   `json:"learning_rate,omitempty"`
	Weights      []float64 `json:"weights,omitempty"`
	Bias         []float64 `json:"bias,omitempty"`
	Activation   string    `json:"activation,omitempty"`
	Alpha        *float64  `json:"alpha,omitempty"`
	Units        int       `json:"units,omitempty"`
	Drop         int       `json:"drop,omitempty"`
	Total        int       `json:"total,omitempty"`
	Seed         int64     `json:"seed,omitempty"`
	Steps        int64     `json:"steps,omitempty"`
}

const (
	typeDense      = "dense"
	typeActivation = "activation"
	typeDropout    = "dropout"
)

// Dense is a fully-connected layer computing x·W + b.
type Dense struct {
	weights *mat.Dense // in x out
	bias    *mat.Dense // 1 x out
	lr      float64
	opt     Optimizer
	input   *mat.Dense
}

// NewDense builds a dense layer with xavier initialised weights and zero bias.
func NewDense(in, out int, lr float64, rng *rand.Rand) *Dense {
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	w := make([]float64, in*out)
	for i := range w {
		w[i] = xavierInit(in, out, rng)
	}
	return &Dense{
		weights: mat.NewDense(in, out, w),
		bias:    mat.NewDense(1, out, nil),
		lr:      lr,
		opt:     &SGD{Lr: lr},
	}
}

func (d *Dense) Forward(x *mat.Dense, training bool) *mat.Dense {
	rows, _ := x.Dims()
	_, out := d.weights.Dims()
	y := mat.NewDense(rows, out, nil)
	y.Mul(x, d.weights)
	b := d.bias.RawRowView(0)
	for i := 0; i < rows; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += b[j]
		}
	}
	if training {
		d.input = x
	}
	return y
}

func (d *Dense) Backward(grad *mat.Dense) (*mat.Dense, error) {
	if d.input == nil {
		return nil, errors.New("dense: backward called before training forward pass")
	}
	in, out := d.weights.Dims()
	rows, _ := grad.Dims()

	// gradient w.r.t. the input uses the weights before this update
	dx := mat.NewDense(rows, in, nil)
	dx.Mul(grad, d.weights.T())

	dw := mat.NewDense(in, out, nil)
	dw.Mul(d.input.T(), grad)

	db := mat.NewDense(1, out, nil)
	sums := db.RawRowView(0)
	for i := 0; i < rows; i++ {
		for j, v := range grad.RawRowView(i) {
			sums[j] += v
		}
	}

	if err := d.opt.Apply(d.weights, dw); err != nil {
		return nil, errors.Wrap(err, "dense weights")
	}
	if err := d.opt.Apply(d.bias, db); err != nil {
		return nil, errors.Wrap(err, "dense bias")
	}
	d.input = nil
	return dx, nil
}

func (d *Dense) Shape() (int, int) {
	return d.weights.Dims()
}

func (d *Dense) Spec() (LayerSpec, error) {
	in, out := d.weights.Dims()
	return LayerSpec{
		Type:         typeDense,
		Inputs:       in,
		Outputs:      out,
		LearningRate: d.lr,
		Weights:      append([]float64(nil), d.weights.RawMatrix().Data...),
		Bias:         append([]float64(nil), d.bias.RawMatrix().Data...),
	}, nil
}

func restoreDense(s LayerSpec) (*Dense, error) {
	if s.Inputs <= 0 || s.Outputs <= 0 {
		return nil, errors.Wrapf(ErrShape, "dense %dx%d", s.Inputs, s.Outputs)
	}
	if len(s.Weights) != s.Inputs*s.Outputs || len(s.Bias) != s.Outputs {
		return nil, errors.Wrapf(ErrShape, "dense %dx%d with %d weights and %d biases",
			s.Inputs, s.Outputs, len(s.Weights), len(s.Bias))
	}
	lr := s.LearningRate
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	return &Dense{
		weights: mat.NewDense(s.Inputs, s.Outputs, append([]float64(nil), s.Weights...)),
		bias:    mat.NewDense(1, s.Outputs, append([]float64(nil), s.Bias...)),
		lr:      lr,
		opt:     &SGD{Lr: lr},
	}, nil
}

// Activation applies an ActivationFunction element-wise.
type Activation struct {
	fn    ActivationFunction
	input *mat.Dense
}

func NewActivation(fn ActivationFunction) *Activation {
	return &Activation{fn: fn}
}

func NewReLU() *Activation {
	return NewActivation(ReLU{})
}

func (a *Activation) Forward(x *mat.Dense, training bool) *mat.Dense {
	var y mat.Dense
	y.Apply(func(_, _ int, v float64) float64 {
		return a.fn.Activate(v)
	}, x)
	if training {
		a.input = x
	}
	return &y
}

func (a *Activation) Backward(grad *mat.Dense) (*mat.Dense, error) {
	if a.input == nil {
		return nil, errors.New("activation: backward called before training forward pass")
	}
	var dx mat.Dense
	dx.Apply(func(i, j int, v float64) float64 {
		return v * a.fn.Derivative(a.input.At(i, j))
	}, grad)
	a.input = nil
	return &dx, nil
}

func (a *Activation) Shape() (int, int) {
	return 0, 0
}

func (a *Activation) Spec() (LayerSpec, error) {
	name, err := activationName(a.fn)
	if err != nil {
		return LayerSpec{}, err
	}
	s := LayerSpec{Type: typeActivation, Activation: name}
	if l, ok := a.fn.(LeakyReLU); ok {
		alpha := l.Alpha()
		s.Alpha = &alpha
	}
	return s, nil
}

// Dropout zeroes drop out of every total activations while training and
// rescales the survivors so the expected activation is unchanged.
//
// The mask of the n-th training pass is drawn from a source seeded with
// seed+n, so a restored layer continues the sequence where the saved one
// stopped.
type Dropout struct {
	units int
	drop  int
	total int
	seed  int64
	steps int64
	mask  *mat.Dense
}

// NewDropout returns a dropout layer over units activations with rate drop/total.
func NewDropout(units, drop, total int, seed int64) *Dropout {
	return &Dropout{
		units: units,
		drop:  drop,
		total: total,
		seed:  seed,
	}
}

// Rate is the probability of zeroing a single activation.
func (d *Dropout) Rate() float64 {
	if d.total <= 0 {
		return 0
	}
	return float64(d.drop) / float64(d.total)
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	rate := d.Rate()
	if !training || rate <= 0 {
		return x
	}
	rows, cols := x.Dims()
	keep := 1 - rate
	rng := rand.New(rand.NewSource(d.seed + d.steps))
	d.steps++
	mask := mat.NewDense(rows, cols, nil)
	m := mask.RawMatrix().Data
	for i := range m {
		if rng.Float64() >= rate {
			m[i] = 1 / keep
		}
	}
	d.mask = mask
	var y mat.Dense
	y.MulElem(x, mask)
	return &y
}

func (d *Dropout) Backward(grad *mat.Dense) (*mat.Dense, error) {
	if d.Rate() <= 0 {
		return grad, nil
	}
	if d.mask == nil {
		return nil, errors.New("dropout: backward called before training forward pass")
	}
	var dx mat.Dense
	dx.MulElem(grad, d.mask)
	d.mask = nil
	return &dx, nil
}

func (d *Dropout) Shape() (int, int) {
	return d.units, d.units
}

func (d *Dropout) Spec() (LayerSpec, error) {
	return LayerSpec{
		Type:  typeDropout,
		Units: d.units,
		Drop:  d.drop,
		Total: d.total,
		Seed:  d.seed,
		Steps: d.steps,
	}, nil
}

func restoreLayer(s LayerSpec) (Layer, error) {
	switch s.Type {
	case typeDense:
		return restoreDense(s)
	case typeActivation:
		fn, err := restoreActivation(s.Activation, s.Alpha)
		if err != nil {
			return nil, err
		}
		return NewActivation(fn), nil
	case typeDropout:
		if s.Units <= 0 || s.Drop < 0 || s.Total <= 0 || s.Drop > s.Total {
			return nil, errors.Errorf("dropout: invalid units=%d drop=%d total=%d", s.Units, s.Drop, s.Total)
		}
		if s.Steps < 0 {
			return nil, errors.Errorf("dropout: negative step count %d", s.Steps)
		}
		d := NewDropout(s.Units, s.Drop, s.Total, s.Seed)
		d.steps = s.Steps
		return d, nil
	}
	return nil, errors.Errorf("unknown layer type %q", s.Type)
}

func xavierInit(numInputs int, numOutputs int, rng *rand.Rand) float64 {
	limit := math.Sqrt(6.0 / float64(numInputs+numOutputs))
	return 2*rng.Float64()*limit - limit
}
