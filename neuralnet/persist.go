package neuralnet

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const formatVersion = 1

type modelFile struct {
	Version  int               `json:"version"`
	Loss     string            `json:"loss,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Layers   []LayerSpec       `json:"layers"`
}

// Encode writes the architecture, parameters and loss as JSON.
func (s *Sequential) Encode(w io.Writer) error {
	file := modelFile{
		Version:  formatVersion,
		Metadata: s.metadata,
		Layers:   make([]LayerSpec, len(s.layers)),
	}
	if s.loss != nil {
		name, err := lossName(s.loss)
		if err != nil {
			return err
		}
		file.Loss = name
	}
	for i, l := range s.layers {
		spec, err := l.Spec()
		if err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
		file.Layers[i] = spec
	}
	return json.NewEncoder(w).Encode(&file)
}

// Decode reads a model written by Encode.
func Decode(r io.Reader) (*Sequential, error) {
	var file modelFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode model")
	}
	if file.Version != formatVersion {
		return nil, errors.Errorf("unsupported model version %d", file.Version)
	}
	s := NewSequential()
	for k, v := range file.Metadata {
		s.SetMetadata(k, v)
	}
	for i, spec := range file.Layers {
		l, err := restoreLayer(spec)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		s.Add(l)
	}
	if file.Loss != "" {
		loss, err := LossByName(file.Loss)
		if err != nil {
			return nil, err
		}
		s.SetLoss(loss)
	}
	if _, _, err := s.Widths(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the model to path, creating parent directories. A ".gz"
// suffix gzip-compresses the JSON.
func (s *Sequential) Save(path string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create model directory")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create model file")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close model file")
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return s.Encode(f)
	}
	gz := gzip.NewWriter(f)
	if err := s.Encode(gz); err != nil {
		gz.Close()
		return err
	}
	return errors.Wrap(gz.Close(), "flush gzip")
}

// Load reads a model saved with Save into a new, independent instance.
func Load(path string) (*Sequential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open model file")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gzip model file %s", path)
		}
		defer gz.Close()
		r = gz
	}
	return Decode(r)
}
