package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/cpuid/v2"

	"densemnist/mnist"
	"densemnist/trainer"
)

func main() {
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Rows per batch")
	lr := flag.Float64("lr", 0, "Learning rate of both dense layers")
	hidden := flag.Int("hidden", 0, "Hidden layer width")
	activation := flag.String("activation", "", "Hidden activation: relu, leaky_relu, sigmoid, tanh or linear")
	seed := flag.Int64("seed", 0, "PRNG seed (default 42)")
	dataDir := flag.String("data", "", "Directory holding the four MNIST idx files")
	modelPath := flag.String("model", "", "Model output path (.json or .json.gz)")
	evalTest := flag.Bool("eval-test", false, "Report loss and accuracy on the test set after training")
	dump := flag.Int("dump", -1, "Write training image N as a PNG and exit")

	flag.Parse()

	overrides := trainer.Overrides{
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		LearningRate: *lr,
		Hidden:       *hidden,
		Activation:   *activation,
		DataDir:      *dataDir,
		ModelPath:    *modelPath,
		EvalTest:     *evalTest,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			overrides.Seed = seed
		}
	})

	cfg := trainer.DefaultConfig()
	cfg.ApplyOverrides(overrides)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if *dump >= 0 {
		dumpImage(cfg.DataDir, *dump)
		return
	}

	log.Printf("cpu=%q cores=%d avx2=%v avx512f=%v",
		cpuid.CPU.BrandName,
		cpuid.CPU.PhysicalCores,
		cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.AVX512F),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := trainer.Run(ctx, cfg)
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("run=%s steps=%d loss=%.4f acc=%.4f", summary.RunID, summary.Steps, summary.LastLoss, summary.LastAccuracy)
}

func dumpImage(dir string, i int) {
	paths := mnist.DefaultPaths(dir)
	images, err := mnist.ReadImages(paths.TrainImages)
	if err != nil {
		log.Fatalf("load images: %v", err)
	}
	labels, err := mnist.ReadLabels(paths.TrainLabels)
	if err != nil {
		log.Fatalf("load labels: %v", err)
	}
	name, err := mnist.SavePNG(images, labels, i, ".")
	if err != nil {
		log.Fatalf("save image: %v", err)
	}
	log.Printf("Image saved as %s", name)
}
