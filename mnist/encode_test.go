package mnist

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestOneHotEncode(t *testing.T) {
	labels := []int{3, 0, 9, 5}
	oh, err := OneHotEncode(labels, NumClasses)
	if err != nil {
		t.Fatalf("OneHotEncode: %v", err)
	}
	if shape := oh.Shape(); shape[0] != len(labels) || shape[1] != NumClasses {
		t.Fatalf("shape %v; want (%d, %d)", shape, len(labels), NumClasses)
	}
	data := oh.Data().([]float64)
	for i, label := range labels {
		row := data[i*NumClasses : (i+1)*NumClasses]
		ones := 0
		for j, v := range row {
			switch v {
			case 1:
				ones++
				if j != label {
					t.Errorf("row %d: 1.0 at column %d; want %d", i, j, label)
				}
			case 0:
			default:
				t.Errorf("row %d: unexpected value %v", i, v)
			}
		}
		if ones != 1 {
			t.Errorf("row %d has %d ones; want 1", i, ones)
		}
	}
}

func TestOneHotEncodeTwoClasses(t *testing.T) {
	oh, err := OneHotEncode([]int{0, 1}, 2)
	if err != nil {
		t.Fatalf("OneHotEncode: %v", err)
	}
	want := []float64{1, 0, 0, 1}
	if got := oh.Data().([]float64); !reflect.DeepEqual(got, want) {
		t.Errorf("OneHotEncode([0 1], 2) = %v; want %v", got, want)
	}
}

func TestOneHotEncodeInfersClasses(t *testing.T) {
	oh, err := OneHotEncode([]int{0, 4, 2}, 0)
	if err != nil {
		t.Fatalf("OneHotEncode: %v", err)
	}
	if cols := oh.Shape()[1]; cols != 5 {
		t.Errorf("inferred %d classes; want 5", cols)
	}
}

func TestOneHotEncodeOutOfRange(t *testing.T) {
	for _, labels := range [][]int{{0, 10}, {-1}} {
		if _, err := OneHotEncode(labels, NumClasses); !errors.Is(err, ErrLabelRange) {
			t.Errorf("OneHotEncode(%v) err = %v; want ErrLabelRange", labels, err)
		}
	}
	if _, err := OneHotEncode(nil, NumClasses); err == nil {
		t.Error("OneHotEncode(nil) did not return error")
	}
}
