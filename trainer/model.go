package trainer

import (
	"math/rand"

	"densemnist/neuralnet"
)

// BuildModel assembles dense(in→hidden) → activation → dropout → dense(hidden→out)
// with a sparse categorical cross-entropy loss.
func BuildModel(cfg Config, inputWidth, outputWidth int) (*neuralnet.Sequential, error) {
	act, err := neuralnet.ActivationByName(cfg.Activation)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	model := neuralnet.NewSequential()
	model.Add(neuralnet.NewDense(inputWidth, cfg.Hidden, cfg.LearningRate, rng))
	model.Add(neuralnet.NewActivation(act))
	model.Add(neuralnet.NewDropout(cfg.Hidden, cfg.DropNum, cfg.DropDen, cfg.Seed))
	model.Add(neuralnet.NewDense(cfg.Hidden, outputWidth, cfg.LearningRate, rng))
	model.SetLoss(&neuralnet.SparseCategoricalCrossEntropy{})

	if _, _, err := model.Widths(); err != nil {
		return nil, err
	}
	return model, nil
}
