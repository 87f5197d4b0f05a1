package trainer

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// NumBatches is floor(rows / batchSize); trailing rows are never trained on.
func NumBatches(rows, batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return rows / batchSize
}

// Rows copies rows [start, end) out of a 2D tensor.
func Rows(t *tensor.Dense, start, end int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a matrix, got shape %v", shape)
	}
	if start < 0 || end > shape[0] || start >= end {
		return nil, errors.Errorf("rows [%d, %d) out of range for %d rows", start, end, shape[0])
	}
	view, err := t.Slice(tensor.S(start, end))
	if err != nil {
		return nil, errors.Wrapf(err, "slice rows [%d, %d)", start, end)
	}
	out, ok := view.Materialize().(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("unexpected materialized type %T", view)
	}
	// a single-row slice drops the leading dimension
	if len(out.Shape()) != 2 {
		if err := out.Reshape(end-start, shape[1]); err != nil {
			return nil, errors.Wrap(err, "reshape batch")
		}
	}
	return out, nil
}

// toMatrix wraps the tensor's backing array in a gonum matrix without copying.
func toMatrix(t *tensor.Dense) (*mat.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a matrix, got shape %v", shape)
	}
	data, ok := t.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("expected float64 backing, got %T", t.Data())
	}
	return mat.NewDense(shape[0], shape[1], data), nil
}

// batch slices rows [start, end) from both tensors and returns gonum views of the copies.
func batch(x, y *tensor.Dense, start, end int) (*mat.Dense, *mat.Dense, error) {
	xb, err := Rows(x, start, end)
	if err != nil {
		return nil, nil, errors.Wrap(err, "samples")
	}
	yb, err := Rows(y, start, end)
	if err != nil {
		return nil, nil, errors.Wrap(err, "labels")
	}
	xm, err := toMatrix(xb)
	if err != nil {
		return nil, nil, err
	}
	ym, err := toMatrix(yb)
	if err != nil {
		return nil, nil, err
	}
	return xm, ym, nil
}
