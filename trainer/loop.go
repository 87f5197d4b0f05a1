package trainer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"densemnist/metrics"
	"densemnist/mnist"
	"densemnist/neuralnet"
)

// Summary reports what a training run did.
type Summary struct {
	RunID        string
	Batches      int
	Steps        int
	LastLoss     float64
	LastAccuracy float64
	LoadedAcc    float64
}

// Run loads the dataset from cfg.DataDir, trains a fresh model, saves it to
// cfg.ModelPath and checks that the saved copy loads back.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	ds, err := mnist.Load(mnist.DefaultPaths(cfg.DataDir))
	if err != nil {
		return Summary{}, errors.Wrap(err, "load mnist")
	}
	yTrain, err := mnist.OneHotEncode(ds.TrainLabels, mnist.NumClasses)
	if err != nil {
		return Summary{}, errors.Wrap(err, "encode train labels")
	}
	yTest, err := mnist.OneHotEncode(ds.TestLabels, mnist.NumClasses)
	if err != nil {
		return Summary{}, errors.Wrap(err, "encode test labels")
	}
	log.Printf("x_train: %v, y_train: %v", ds.TrainImages.Shape(), yTrain.Shape())
	log.Printf("x_test: %v, y_test: %v", ds.TestImages.Shape(), yTest.Shape())

	model, err := BuildModel(cfg, ds.TrainImages.Shape()[1], yTrain.Shape()[1])
	if err != nil {
		return Summary{}, errors.Wrap(err, "build model")
	}
	runID := uuid.New().String()
	model.SetMetadata("run_id", runID)
	log.Printf("run=%s model:\n%s", runID, model)

	summary, err := Train(ctx, model, ds.TrainImages, yTrain, cfg)
	if err != nil {
		return summary, err
	}
	summary.RunID = runID

	if cfg.EvalTest {
		if err := evaluate(model, ds.TestImages, yTest); err != nil {
			return summary, err
		}
	}

	if err := model.Save(cfg.ModelPath); err != nil {
		return summary, errors.Wrapf(err, "save model to %s", cfg.ModelPath)
	}
	log.Printf("saved model to %s", cfg.ModelPath)

	summary.LoadedAcc, err = Verify(cfg.ModelPath, ds.TrainImages, yTrain, cfg.VerifyRows)
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// Train runs cfg.Epochs passes over floor(rows/BatchSize) contiguous batches,
// in order, logging loss and accuracy of every batch after its update.
func Train(ctx context.Context, model *neuralnet.Sequential, x, y *tensor.Dense, cfg Config) (Summary, error) {
	if cfg.Epochs <= 0 {
		return Summary{}, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Summary{}, errors.New("trainer: batch size must be > 0")
	}
	rows := x.Shape()[0]
	if yr := y.Shape()[0]; yr != rows {
		return Summary{}, errors.Errorf("trainer: %d sample rows, %d label rows", rows, yr)
	}

	summary := Summary{Batches: NumBatches(rows, cfg.BatchSize)}
	if summary.Batches == 0 {
		return summary, errors.Errorf("trainer: %d rows is less than one batch of %d", rows, cfg.BatchSize)
	}
	log.Printf("Training data has %d datapoints.", rows)
	log.Printf("Will train %d epochs each with %d batches of size %d", cfg.Epochs, summary.Batches, cfg.BatchSize)

	var window metrics.Window
	for e := 0; e < cfg.Epochs; e++ {
		log.Printf("Epoch: %d", e+1)

		for i := 0; i < summary.Batches; i++ {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			start := i * cfg.BatchSize
			end := start + cfg.BatchSize

			startData := time.Now()
			xb, yb, err := batch(x, y, start, end)
			if err != nil {
				return summary, errors.Wrapf(err, "batch %d", i)
			}
			dataTime := time.Since(startData)

			startCompute := time.Now()
			if err := model.Fit(xb, yb); err != nil {
				return summary, errors.Wrapf(err, "fit epoch %d batch %d", e+1, i)
			}
			computeTime := time.Since(startCompute)

			loss, err := model.Loss(xb, yb)
			if err != nil {
				return summary, err
			}
			acc, err := model.Accuracy(xb, yb)
			if err != nil {
				return summary, err
			}
			summary.Steps++
			summary.LastLoss, summary.LastAccuracy = loss, acc
			window.Record(cfg.BatchSize, dataTime, computeTime, loss, acc)

			log.Printf("[%d/%d]: loss: %.4f acc: %.4f", end, rows, loss, acc)
		}

		snap := window.Snapshot()
		log.Printf("epoch=%d %s", e+1, snap)
	}
	return summary, nil
}

// Verify loads the model at path and reports its accuracy on the first rows
// of x and y. It does not compare against the in-memory model.
func Verify(path string, x, y *tensor.Dense, rows int) (float64, error) {
	loaded, err := neuralnet.Load(path)
	if err != nil {
		return 0, errors.Wrapf(err, "load model from %s", path)
	}
	if n := x.Shape()[0]; rows > n {
		rows = n
	}
	xb, yb, err := batch(x, y, 0, rows)
	if err != nil {
		return 0, err
	}
	acc, err := loaded.Accuracy(xb, yb)
	if err != nil {
		return 0, err
	}
	log.Printf("loaded model acc: %.4f", acc)
	return acc, nil
}

func evaluate(model *neuralnet.Sequential, x, y *tensor.Dense) error {
	xm, err := toMatrix(x)
	if err != nil {
		return err
	}
	ym, err := toMatrix(y)
	if err != nil {
		return err
	}
	loss, err := model.Loss(xm, ym)
	if err != nil {
		return errors.Wrap(err, "test loss")
	}
	acc, err := model.Accuracy(xm, ym)
	if err != nil {
		return errors.Wrap(err, "test accuracy")
	}
	log.Printf("test loss: %.4f acc: %.4f", loss, acc)
	return nil
}
