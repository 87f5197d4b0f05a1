package trainer

import (
	"path/filepath"

	"github.com/pkg/errors"

	"densemnist/neuralnet"
)

// Config captures the knobs for a training run.
type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Hidden       int
	// DropNum out of every DropDen hidden activations are dropped while training.
	DropNum    int
	DropDen    int
	Activation string
	Seed       int64
	DataDir    string
	ModelPath  string
	VerifyRows int
	EvalTest   bool
}

// Overrides captures CLI supplied values. Seed is a pointer because zero is
// a valid seed.
type Overrides struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Hidden       int
	Activation   string
	Seed         *int64
	DataDir      string
	ModelPath    string
	EvalTest     bool
}

// DefaultConfig returns the reference MNIST run: 20 epochs of 10000-row
// batches at learning rate 0.1 through an 800 unit hidden layer.
func DefaultConfig() Config {
	return Config{
		Epochs:       20,
		BatchSize:    10000,
		LearningRate: 0.1,
		Hidden:       800,
		DropNum:      1,
		DropDen:      10,
		Activation:   "relu",
		Seed:         42,
		DataDir:      filepath.Join("data", "mnist"),
		ModelPath:    filepath.Join("data", "models", "mnist.json"),
		VerifyRows:   4,
	}
}

// ApplyOverrides updates c using any non-zero override and any non-nil seed.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Hidden > 0 {
		c.Hidden = o.Hidden
	}
	if o.Activation != "" {
		c.Activation = o.Activation
	}
	if o.Seed != nil {
		c.Seed = *o.Seed
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.EvalTest {
		c.EvalTest = true
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Epochs <= 0 {
		return errors.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Hidden <= 0 {
		return errors.Errorf("hidden units must be > 0 (got %d)", c.Hidden)
	}
	if c.DropDen <= 0 || c.DropNum < 0 || c.DropNum >= c.DropDen {
		return errors.Errorf("dropout ratio %d/%d must be in [0, 1)", c.DropNum, c.DropDen)
	}
	if _, err := neuralnet.ActivationByName(c.Activation); err != nil {
		return err
	}
	if c.ModelPath == "" {
		return errors.New("model path must be set")
	}
	if c.VerifyRows <= 0 {
		return errors.Errorf("verify rows must be > 0 (got %d)", c.VerifyRows)
	}
	return nil
}
