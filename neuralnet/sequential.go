package neuralnet

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape reports a dimension mismatch between data and the model.
	ErrShape = errors.New("shape mismatch")
	// ErrNoLoss is returned when training or scoring a model without a loss function.
	ErrNoLoss = errors.New("loss function not set")
	// ErrEmpty is returned when the model has no layers.
	ErrEmpty = errors.New("model has no layers")
)

// Sequential is an ordered stack of layers with an attached loss.
type Sequential struct {
	layers   []Layer
	loss     LossFunction
	metadata map[string]string
}

func NewSequential() *Sequential {
	return &Sequential{metadata: make(map[string]string)}
}

func (s *Sequential) Add(l Layer) {
	s.layers = append(s.layers, l)
}

func (s *Sequential) SetLoss(l LossFunction) {
	s.loss = l
}

// SetMetadata attaches a key/value pair that is persisted with the model.
func (s *Sequential) SetMetadata(key, value string) {
	if s.metadata == nil {
		s.metadata = make(map[string]string)
	}
	s.metadata[key] = value
}

func (s *Sequential) Metadata(key string) string {
	return s.metadata[key]
}

func (s *Sequential) Layers() int {
	return len(s.layers)
}

// Widths walks the layer chain and returns the input and output widths.
func (s *Sequential) Widths() (in, out int, err error) {
	if len(s.layers) == 0 {
		return 0, 0, ErrEmpty
	}
	for i, l := range s.layers {
		lin, lout := l.Shape()
		if lin == 0 && lout == 0 {
			continue
		}
		if in == 0 {
			in = lin
		} else if lin != out {
			return 0, 0, errors.Wrapf(ErrShape, "layer %d expects %d inputs, previous layer yields %d", i, lin, out)
		}
		out = lout
	}
	if in == 0 {
		return 0, 0, errors.Wrap(ErrShape, "no layer fixes the input width")
	}
	return in, out, nil
}

func (s *Sequential) checkInput(x *mat.Dense) error {
	in, _, err := s.Widths()
	if err != nil {
		return err
	}
	if _, cols := x.Dims(); cols != in {
		return errors.Wrapf(ErrShape, "input has %d columns, model expects %d", cols, in)
	}
	return nil
}

func (s *Sequential) checkTarget(x, y *mat.Dense) error {
	if s.loss == nil {
		return ErrNoLoss
	}
	if err := s.checkInput(x); err != nil {
		return err
	}
	_, out, _ := s.Widths()
	xr, _ := x.Dims()
	yr, yc := y.Dims()
	if xr != yr {
		return errors.Wrapf(ErrShape, "%d input rows, %d target rows", xr, yr)
	}
	if yc != out {
		return errors.Wrapf(ErrShape, "target has %d columns, model yields %d", yc, out)
	}
	return nil
}

func (s *Sequential) forward(x *mat.Dense, training bool) *mat.Dense {
	out := x
	for _, l := range s.layers {
		out = l.Forward(out, training)
	}
	return out
}

// Fit runs one optimisation step on the batch: forward pass, loss
// gradient, backward pass and parameter update.
func (s *Sequential) Fit(x, y *mat.Dense) error {
	if err := s.checkTarget(x, y); err != nil {
		return err
	}
	grad := s.loss.Gradient(s.forward(x, true), y)
	for i := len(s.layers) - 1; i >= 0; i-- {
		var err error
		grad, err = s.layers[i].Backward(grad)
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}
	return nil
}

// Predict returns the raw model output in inference mode.
func (s *Sequential) Predict(x *mat.Dense) (*mat.Dense, error) {
	if err := s.checkInput(x); err != nil {
		return nil, err
	}
	return s.forward(x, false), nil
}

func (s *Sequential) Loss(x, y *mat.Dense) (float64, error) {
	if err := s.checkTarget(x, y); err != nil {
		return 0, err
	}
	return s.loss.Compute(s.forward(x, false), y), nil
}

// Accuracy is the fraction of rows whose predicted argmax matches the target argmax.
func (s *Sequential) Accuracy(x, y *mat.Dense) (float64, error) {
	if err := s.checkTarget(x, y); err != nil {
		return 0, err
	}
	out := s.forward(x, false)
	rows, _ := out.Dims()
	if rows == 0 {
		return 0, nil
	}
	correct := 0
	for i := 0; i < rows; i++ {
		if floats.MaxIdx(out.RawRowView(i)) == floats.MaxIdx(y.RawRowView(i)) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// Define the String() method for the Sequential type
func (s *Sequential) String() string {
	var sb strings.Builder

	for i, l := range s.layers {
		spec, err := l.Spec()
		if err != nil {
			sb.WriteString(fmt.Sprintf("Layer %d: %T\n", i, l))
			continue
		}
		switch spec.Type {
		case typeDense:
			sb.WriteString(fmt.Sprintf("Layer %d: dense %d -> %d lr=%g\n", i, spec.Inputs, spec.Outputs, spec.LearningRate))
		case typeActivation:
			sb.WriteString(fmt.Sprintf("Layer %d: %s\n", i, spec.Activation))
		case typeDropout:
			sb.WriteString(fmt.Sprintf("Layer %d: dropout %d/%d of %d\n", i, spec.Drop, spec.Total, spec.Units))
		}
	}
	if s.loss != nil {
		name, err := lossName(s.loss)
		if err != nil {
			name = fmt.Sprintf("%T", s.loss)
		}
		sb.WriteString(fmt.Sprintf("Loss: %s\n", name))
	}

	return sb.String()
}
