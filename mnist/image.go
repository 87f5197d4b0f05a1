package mnist

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// SavePNG writes row i of images as a 28x28 grayscale PNG named after its
// label into dir and returns the file path.
func SavePNG(images *tensor.Dense, labels []int, i int, dir string) (string, error) {
	if i < 0 || i >= len(labels) || i >= images.Shape()[0] {
		return "", errors.Errorf("image index %d out of range", i)
	}
	img := image.NewGray(image.Rect(0, 0, ImgSize, ImgSize))
	for y := 0; y < ImgSize; y++ {
		for x := 0; x < ImgSize; x++ {
			v, err := images.At(i, y*ImgSize+x)
			if err != nil {
				return "", errors.Wrap(err, "read pixel")
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v.(float64)*255.0 + 0.5)})
		}
	}

	name := filepath.Join(dir, fmt.Sprintf("digit_%d_%d.png", labels[i], i))
	file, err := os.Create(name)
	if err != nil {
		return "", errors.Wrap(err, "create png")
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", errors.Wrap(err, "encode png")
	}
	return name, nil
}
