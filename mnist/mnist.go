// Package mnist reads the MNIST handwritten digit dataset from IDX files
// into gorgonia tensors.
package mnist

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	ImgSize    = 28
	ImageWidth = ImgSize * ImgSize
	NumClasses = 10
)

// Paths names the four dataset files.
type Paths struct {
	TrainImages string
	TrainLabels string
	TestImages  string
	TestLabels  string
}

// DefaultPaths returns the conventional uncompressed file names under dir.
func DefaultPaths(dir string) Paths {
	return Paths{
		TrainImages: filepath.Join(dir, "train-images.idx3-ubyte"),
		TrainLabels: filepath.Join(dir, "train-labels.idx1-ubyte"),
		TestImages:  filepath.Join(dir, "t10k-images.idx3-ubyte"),
		TestLabels:  filepath.Join(dir, "t10k-labels.idx1-ubyte"),
	}
}

// Dataset holds normalized images as (rows, 784) tensors and raw integer labels.
type Dataset struct {
	TrainImages *tensor.Dense
	TrainLabels []int
	TestImages  *tensor.Dense
	TestLabels  []int
}

// Load reads and validates all four files.
func Load(p Paths) (*Dataset, error) {
	var ds Dataset
	var err error
	if ds.TrainImages, err = ReadImages(p.TrainImages); err != nil {
		return nil, err
	}
	if ds.TrainLabels, err = ReadLabels(p.TrainLabels); err != nil {
		return nil, err
	}
	if ds.TestImages, err = ReadImages(p.TestImages); err != nil {
		return nil, err
	}
	if ds.TestLabels, err = ReadLabels(p.TestLabels); err != nil {
		return nil, err
	}
	if n := ds.TrainImages.Shape()[0]; n != len(ds.TrainLabels) {
		return nil, errors.Wrapf(ErrShape, "%d train images, %d train labels", n, len(ds.TrainLabels))
	}
	if n := ds.TestImages.Shape()[0]; n != len(ds.TestLabels) {
		return nil, errors.Wrapf(ErrShape, "%d test images, %d test labels", n, len(ds.TestLabels))
	}
	return &ds, nil
}

// ReadImages loads an idx3 image file as a (rows, 784) tensor scaled to [0,1].
func ReadImages(path string) (*tensor.Dense, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	dims, payload, err := parseIDX(data, imageMagic)
	if err != nil {
		return nil, errors.Wrapf(err, "images '%s'", path)
	}
	if dims[1]*dims[2] != ImageWidth || len(payload)%ImageWidth != 0 {
		return nil, errors.Wrapf(ErrShape, "images '%s': %d bytes are not rows of %d pixels", path, len(payload), ImageWidth)
	}
	rows := len(payload) / ImageWidth
	if rows == 0 {
		return nil, errors.Wrapf(ErrShape, "images '%s': no rows", path)
	}
	return tensor.New(tensor.WithShape(rows, ImageWidth), tensor.WithBacking(Normalize(payload))), nil
}

// ReadLabels loads an idx1 label file.
func ReadLabels(path string) ([]int, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	_, payload, err := parseIDX(data, labelMagic)
	if err != nil {
		return nil, errors.Wrapf(err, "labels '%s'", path)
	}
	labels := make([]int, len(payload))
	for i, b := range payload {
		labels[i] = int(b)
	}
	return labels, nil
}

// Normalize maps raw pixel intensities to v/255.
func Normalize(raw []byte) []float64 {
	norm := make([]float64, len(raw))
	for i, v := range raw {
		norm[i] = float64(v) / 255.0
	}
	return norm
}
