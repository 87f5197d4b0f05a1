package neuralnet

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropyCompute(t *testing.T) {
	ce := &SparseCategoricalCrossEntropy{}
	// equal logits give a uniform softmax
	output := mat.NewDense(1, 2, []float64{0.3, 0.3})
	target := mat.NewDense(1, 2, []float64{1.0, 0.0})
	loss := ce.Compute(output, target)
	want := -math.Log(0.5)
	if !floatEquals(loss, want, 1e-9) {
		t.Errorf("SparseCategoricalCrossEntropy.Compute = %v; want approx %v", loss, want)
	}
}

func TestCrossEntropyGradient(t *testing.T) {
	ce := &SparseCategoricalCrossEntropy{}
	output := mat.NewDense(2, 2, []float64{0, 0, 0, 0})
	target := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	grad := ce.Gradient(output, target)
	want := []float64{-0.25, 0.25, 0.25, -0.25}
	for i, w := range want {
		if got := grad.RawMatrix().Data[i]; !floatEquals(got, w, 1e-12) {
			t.Errorf("SparseCategoricalCrossEntropy.Gradient[%d] = %v; want %v", i, got, w)
		}
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	logits := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, -1000})
	probs := Softmax(logits)
	for i := 0; i < 2; i++ {
		var sum float64
		for _, p := range probs.RawRowView(i) {
			if math.IsNaN(p) || p < 0 || p > 1 {
				t.Fatalf("row %d has invalid probability %v", i, p)
			}
			sum += p
		}
		if !floatEquals(sum, 1, 1e-12) {
			t.Errorf("row %d sums to %v; want 1", i, sum)
		}
	}
}

func TestMeanSquaredError(t *testing.T) {
	m := &MeanSquaredError{}
	output := mat.NewDense(2, 1, []float64{1, 3})
	target := mat.NewDense(2, 1, []float64{0, 1})
	if got := m.Compute(output, target); !floatEquals(got, 2.5, 1e-12) {
		t.Errorf("MeanSquaredError.Compute = %v; want 2.5", got)
	}
	grad := m.Gradient(output, target)
	if got := grad.At(1, 0); !floatEquals(got, 2, 1e-12) {
		t.Errorf("MeanSquaredError.Gradient[1] = %v; want 2", got)
	}
}
