// Command train_mnist trains a differentiable logic-gate network on MNIST,
// reports soft and binarized accuracy throughout, and persists the final
// snapshot under a filename encoding the run's key results.
package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/openfluke/gatenet/config"
	"github.com/openfluke/gatenet/datasets/mnist"
	"github.com/openfluke/gatenet/gpu"
	"github.com/openfluke/gatenet/nn"
	"github.com/openfluke/gatenet/telemetry"
)

const settingsFile = "settings.json"

func main() {
	cfg, err := config.Load(settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := telemetry.NewLogger(cfg.LogName, cfg.Timezone, cfg.SyslogHost, cfg.SyslogPort)
	fatal := func(err error) {
		log.Log("FATAL %v", err)
		os.Exit(1)
	}

	tracker := telemetry.NewTracker(cfg.TrackerURL, cfg.TrackerKey, cfg.TrackerProject,
		fmt.Sprintf("%s_%d", cfg.LogName, cfg.Seed))

	printout, err := cfg.Printout()
	if err != nil {
		fatal(err)
	}
	if tracker.Enabled() {
		tracker.LogConfig(printout)
	} else {
		keys := make([]string, 0, len(printout))
		for k := range printout {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		log.Log("--------------------------------------------------------------------------------")
		for _, k := range keys {
			log.Log("%s=%v", k, printout[k])
		}
		log.Log("--------------------------------------------------------------------------------")
	}

	raw, err := mnist.Load(cfg.DataDir)
	if err != nil {
		fatal(err)
	}
	ds, err := mnist.Prepare(raw, mnist.Options{
		ImgWidth:          cfg.ImgWidth,
		BinarizeThreshold: cfg.BinarizeThreshold,
		TrainFraction:     cfg.TrainFraction,
		SplitSeed:         cfg.DataSplitSeed,
		Categories:        cfg.Categories,
		Subset:            cfg.OnlyDataSubset,
	})
	if err != nil {
		fatal(err)
	}
	log.Log("loaded %d train / %d val / %d test samples", ds.Train.Samples, ds.Val.Samples, ds.Test.Samples)

	network, err := nn.NewNetwork(cfg.InputSize(), cfg.Architecture, cfg.Categories, cfg.Seed)
	if err != nil {
		fatal(err)
	}

	valLoss, valAcc, err := nn.Evaluate(network, ds, "val", cfg.BatchSize)
	if err != nil {
		fatal(err)
	}
	log.Log("INIT VAL loss=%.3f acc=%.2f%%", valLoss, valAcc*100)

	if cfg.ConnectionReg > 0 && cfg.GateWeightReg > 0 {
		log.Log("REGULARIZATING")
	}

	trainer := nn.NewTrainer(network, ds, nn.TrainerConfig{
		Epochs:         cfg.Epochs,
		BatchSize:      cfg.BatchSize,
		LearningRate:   cfg.LearningRate,
		CEStrength:     cfg.CEStrength,
		PassthroughReg: cfg.PassthroughReg,
		ConnectionReg:  cfg.ConnectionReg,
		GateWeightReg:  cfg.GateWeightReg,
		ConstGateDecay: cfg.ConstGateDecay,
		PrintEvery:     cfg.PrintoutEvery,
		ValidateEvery:  cfg.ValidateEvery,
		SampleSeed:     cfg.Seed,
	})
	trainer.Logf = log.Log
	if tracker.Enabled() {
		trainer.Metrics = tracker.LogMetrics
	}

	result, err := trainer.Run()
	if err != nil {
		fatal(err)
	}
	log.Log("Network architecture: %v", cfg.Architecture)

	testLoss, testAcc, err := nn.Evaluate(network, ds, "test", cfg.BatchSize)
	if err != nil {
		fatal(err)
	}
	log.Log("TEST loss=%.3f acc=%.2f%%", testLoss, testAcc*100)

	circuit := nn.Binarize(network, 1)
	binTestLoss, binTestAcc, err := evaluateCircuit(cfg, log, circuit, ds)
	if err != nil {
		fatal(err)
	}
	log.Log("BIN TEST loss=%.3f acc=%.2f%%", binTestLoss, binTestAcc*100)

	snapshot, err := network.Snapshot()
	if err != nil {
		fatal(err)
	}
	filename := nn.SnapshotFilename(time.Now().In(cfg.Location()), float64(binTestAcc), cfg.Seed,
		cfg.Epochs, cfg.Architecture, cfg.BatchSize, cfg.LearningRate)
	if err := snapshot.Save(filename); err != nil {
		fatal(err)
	}
	log.Log("Saved to %s", filename)

	if tracker.Enabled() {
		tracker.LogMetrics(result.Steps, map[string]float64{
			"final_test_loss":     float64(testLoss),
			"final_test_acc":      float64(testAcc) * 100,
			"final_bin_test_loss": float64(binTestLoss),
			"final_bin_test_acc":  float64(binTestAcc) * 100,
		})
	}
}

// evaluateCircuit runs the binarized test evaluation, on the GPU when
// configured. A device failure logs and falls back to the CPU path.
func evaluateCircuit(cfg *config.Config, log *telemetry.Logger, circuit *nn.Network, ds *nn.Dataset) (float32, float32, error) {
	if cfg.UseGPU {
		loss, acc, err := gpu.Evaluate(circuit, ds, "test", cfg.BatchSize)
		if err == nil {
			log.Log("BIN TEST evaluated on GPU")
			return loss, acc, nil
		}
		log.Log("GPU evaluation unavailable (%v), falling back to CPU", err)
	}
	return nn.Evaluate(circuit, ds, "test", cfg.BatchSize)
}
