package mnist

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrLabelRange is returned for a label outside [0, numClasses).
var ErrLabelRange = errors.New("label out of range")

// OneHotEncode returns a (len(labels), numClasses) tensor with a single 1.0
// per row at the label's column. numClasses <= 0 infers max(label)+1.
func OneHotEncode(labels []int, numClasses int) (*tensor.Dense, error) {
	if len(labels) == 0 {
		return nil, errors.New("no labels to encode")
	}
	if numClasses <= 0 {
		for _, label := range labels {
			if label+1 > numClasses {
				numClasses = label + 1
			}
		}
	}
	if numClasses <= 0 {
		return nil, errors.Wrap(ErrLabelRange, "all labels negative")
	}
	numLabels := len(labels)
	norm := make([]float64, numLabels*numClasses)

	for i, label := range labels {
		if label < 0 || label >= numClasses {
			return nil, errors.Wrapf(ErrLabelRange, "row %d: label %d, classes %d", i, label, numClasses)
		}
		norm[i*numClasses+label] = 1.0
	}

	return tensor.New(tensor.WithShape(numLabels, numClasses), tensor.WithBacking(norm)), nil
}
