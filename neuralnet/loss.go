package neuralnet

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const probFloor = 1e-15

// LossFunction defines the interface for computing loss and its gradient.
type LossFunction interface {
	// Compute returns the loss averaged over the rows of output.
	Compute(output, target *mat.Dense) float64
	// Gradient returns ∂L/∂output, already divided by the row count.
	Gradient(output, target *mat.Dense) *mat.Dense
}

// SparseCategoricalCrossEntropy applies softmax to raw logits and scores
// them against one-hot targets.
type SparseCategoricalCrossEntropy struct{}

// Compute returns the mean cross-entropy of softmax(output).
func (ce *SparseCategoricalCrossEntropy) Compute(output, target *mat.Dense) float64 {
	probs := Softmax(output)
	rows, cols := probs.Dims()
	if rows == 0 {
		return 0
	}
	var loss float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p := math.Max(probs.At(i, j), probFloor)
			loss -= target.At(i, j) * math.Log(p)
		}
	}
	return loss / float64(rows)
}

// Gradient returns (softmax(output) - target) / rows.
func (ce *SparseCategoricalCrossEntropy) Gradient(output, target *mat.Dense) *mat.Dense {
	grad := Softmax(output)
	rows, _ := grad.Dims()
	grad.Sub(grad, target)
	if rows > 0 {
		grad.Scale(1/float64(rows), grad)
	}
	return grad
}

// MeanSquaredError sums squared differences per row and averages over rows.
type MeanSquaredError struct{}

func (m *MeanSquaredError) Compute(output, target *mat.Dense) float64 {
	rows, _ := output.Dims()
	if rows == 0 {
		return 0
	}
	var diff mat.Dense
	diff.Sub(output, target)
	var loss float64
	for i := 0; i < rows; i++ {
		row := diff.RawRowView(i)
		loss += floats.Dot(row, row)
	}
	return loss / float64(rows)
}

func (m *MeanSquaredError) Gradient(output, target *mat.Dense) *mat.Dense {
	rows, cols := output.Dims()
	grad := mat.NewDense(rows, cols, nil)
	grad.Sub(output, target)
	if rows > 0 {
		grad.Scale(2/float64(rows), grad)
	}
	return grad
}

// Softmax returns a new matrix holding the row-wise softmax of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	rows, cols := logits.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		copy(row, logits.RawRowView(i))
		floats.AddConst(-floats.Max(row), row)
		for j, v := range row {
			row[j] = math.Exp(v)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}

// LossByName resolves a loss from its persisted name.
func LossByName(name string) (LossFunction, error) {
	switch name {
	case "scce":
		return &SparseCategoricalCrossEntropy{}, nil
	case "mse":
		return &MeanSquaredError{}, nil
	}
	return nil, errors.Errorf("unknown loss %q", name)
}

func lossName(l LossFunction) (string, error) {
	switch l.(type) {
	case *SparseCategoricalCrossEntropy:
		return "scce", nil
	case *MeanSquaredError:
		return "mse", nil
	}
	return "", errors.Errorf("loss %T has no persisted form", l)
}
