package trainer

import (
	"bytes"
	"context"
	"encoding/binary"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorgonia.org/tensor"

	"densemnist/mnist"
	"densemnist/neuralnet"
)

func smallConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 2
	cfg.Hidden = 8
	cfg.LearningRate = 0.5
	cfg.ModelPath = filepath.Join(t.TempDir(), "models", "mnist.json")
	return cfg
}

func TestTrainTwoRowDataset(t *testing.T) {
	x := tensor.New(tensor.WithShape(2, 4), tensor.WithBacking([]float64{
		1, 1, 0, 0,
		0, 0, 1, 1,
	}))
	y, err := mnist.OneHotEncode([]int{0, 1}, 2)
	if err != nil {
		t.Fatalf("OneHotEncode: %v", err)
	}
	cfg := smallConfig(t)
	cfg.Epochs = 3
	model, err := BuildModel(cfg, 4, 2)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	summary, err := Train(context.Background(), model, x, y, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if summary.Batches != 1 {
		t.Fatalf("batches per epoch = %d; want 1", summary.Batches)
	}
	if summary.Steps != cfg.Epochs {
		t.Fatalf("steps = %d; want %d", summary.Steps, cfg.Epochs)
	}
	if summary.LastAccuracy < 0 || summary.LastAccuracy > 1 {
		t.Fatalf("accuracy out of range: %v", summary.LastAccuracy)
	}
}

func TestTrainLogsEpochSummary(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	x := sequentialTensor(4, 4)
	y, _ := mnist.OneHotEncode([]int{0, 1, 0, 1}, 2)
	cfg := smallConfig(t)
	model, err := BuildModel(cfg, 4, 2)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if _, err := Train(context.Background(), model, x, y, cfg); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var epochs []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "epoch=") {
			epochs = append(epochs, line)
		}
	}
	if len(epochs) != cfg.Epochs {
		t.Fatalf("got %d epoch summaries; want %d:\n%s", len(epochs), cfg.Epochs, buf.String())
	}
	for _, want := range []string{"epoch=2", "steps=2", "loss=", "acc="} {
		if !strings.Contains(epochs[1], want) {
			t.Errorf("epoch summary %q missing %q", epochs[1], want)
		}
	}
}

func TestTrainDropsRemainderRows(t *testing.T) {
	x := sequentialTensor(5, 4)
	y, _ := mnist.OneHotEncode([]int{0, 1, 0, 1, 0}, 2)
	cfg := smallConfig(t)
	model, err := BuildModel(cfg, 4, 2)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	summary, err := Train(context.Background(), model, x, y, cfg)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if summary.Batches != 2 || summary.Steps != 4 {
		t.Fatalf("batches=%d steps=%d; want 2 and 4", summary.Batches, summary.Steps)
	}
}

func TestTrainRejectsMismatchedRows(t *testing.T) {
	x := sequentialTensor(4, 4)
	y, _ := mnist.OneHotEncode([]int{0, 1}, 2)
	cfg := smallConfig(t)
	model, _ := BuildModel(cfg, 4, 2)
	if _, err := Train(context.Background(), model, x, y, cfg); err == nil {
		t.Fatal("Train accepted 4 sample rows with 2 label rows")
	}
}

func TestTrainStopsOnCancel(t *testing.T) {
	x := sequentialTensor(4, 4)
	y, _ := mnist.OneHotEncode([]int{0, 1, 0, 1}, 2)
	cfg := smallConfig(t)
	model, _ := BuildModel(cfg, 4, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := Train(ctx, model, x, y, cfg)
	if err != context.Canceled {
		t.Fatalf("Train err = %v; want context.Canceled", err)
	}
	if summary.Steps != 0 {
		t.Fatalf("ran %d steps after cancel", summary.Steps)
	}
}

func TestBuildModelTopology(t *testing.T) {
	cfg := DefaultConfig()
	model, err := BuildModel(cfg, mnist.ImageWidth, mnist.NumClasses)
	if err != nil {
		t.Fatalf("BuildModel: %v", err)
	}
	if model.Layers() != 4 {
		t.Fatalf("layers = %d; want 4", model.Layers())
	}
	in, out, err := model.Widths()
	if err != nil || in != mnist.ImageWidth || out != mnist.NumClasses {
		t.Fatalf("widths %d -> %d (%v); want %d -> %d", in, out, err, mnist.ImageWidth, mnist.NumClasses)
	}
}

func TestVerifyMatchesInMemoryModel(t *testing.T) {
	x := sequentialTensor(6, 4)
	y, _ := mnist.OneHotEncode([]int{0, 1, 1, 0, 1, 0}, 2)
	cfg := smallConfig(t)
	model, _ := BuildModel(cfg, 4, 2)
	if _, err := Train(context.Background(), model, x, y, cfg); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if err := model.Save(cfg.ModelPath); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Verify(cfg.ModelPath, x, y, 4)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	xb, yb, _ := batch(x, y, 0, 4)
	want, _ := model.Accuracy(xb, yb)
	if d := got - want; d < -1e-6 || d > 1e-6 {
		t.Fatalf("reloaded accuracy %v; in-memory %v", got, want)
	}
}

func writeIDX(t *testing.T, path string, magic uint32, dims []uint32, payload []byte) {
	t.Helper()
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, magic)
	for _, d := range dims {
		binary.Write(buf, binary.BigEndian, d)
	}
	buf.Write(payload)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeSyntheticMNIST(t *testing.T, dir string, trainRows, testRows int) {
	t.Helper()
	p := mnist.DefaultPaths(dir)
	write := func(imgPath, lblPath string, rows int) {
		images := make([]byte, rows*mnist.ImageWidth)
		labels := make([]byte, rows)
		for i := 0; i < rows; i++ {
			labels[i] = byte(i % mnist.NumClasses)
			// light up a band of pixels that depends on the digit
			for j := 0; j < 20; j++ {
				images[i*mnist.ImageWidth+int(labels[i])*70+j] = 255
			}
		}
		writeIDX(t, imgPath, 0x00000803, []uint32{uint32(rows), mnist.ImgSize, mnist.ImgSize}, images)
		writeIDX(t, lblPath, 0x00000801, []uint32{uint32(rows)}, labels)
	}
	write(p.TrainImages, p.TrainLabels, trainRows)
	write(p.TestImages, p.TestLabels, testRows)
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticMNIST(t, dir, 23, 10)

	cfg := smallConfig(t)
	cfg.DataDir = dir
	cfg.BatchSize = 5
	cfg.Hidden = 16
	cfg.EvalTest = true
	cfg.ModelPath = filepath.Join(dir, "models", "mnist.json.gz")

	summary, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Batches != 4 || summary.Steps != 8 {
		t.Fatalf("batches=%d steps=%d; want 4 and 8", summary.Batches, summary.Steps)
	}
	if summary.LoadedAcc < 0 || summary.LoadedAcc > 1 {
		t.Fatalf("loaded accuracy out of range: %v", summary.LoadedAcc)
	}
	loaded, err := neuralnet.Load(cfg.ModelPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if summary.RunID == "" || loaded.Metadata("run_id") != summary.RunID {
		t.Fatalf("saved run id %q; summary %q", loaded.Metadata("run_id"), summary.RunID)
	}
}

func TestRunMissingData(t *testing.T) {
	cfg := smallConfig(t)
	cfg.DataDir = t.TempDir()
	if _, err := Run(context.Background(), cfg); err == nil {
		t.Fatal("Run without dataset files did not return error")
	}
}
