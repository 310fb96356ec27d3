package nn

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// TrainerConfig holds the knobs of the training loop.
type TrainerConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float32

	// CEStrength weights the cross-entropy term; the combined
	// regularization term is scaled by 1 - CEStrength.
	CEStrength float32

	// Regularization coefficients: passthrough penalty on gate weights,
	// one-hot distance on connection weights, one-hot distance on gate
	// weights. All zero makes the total loss exactly the scaled
	// cross-entropy.
	PassthroughReg float32
	ConnectionReg  float32
	GateWeightReg  float32

	// ConstGateDecay shrinks the constant-0 and constant-1 gate logits by
	// a factor of (1 - LearningRate*ConstGateDecay) after every optimizer
	// step, suppressing collapse into constant gates.
	ConstGateDecay float32

	// BinValue is the hardened selection value used when periodically
	// binarizing for evaluation. Defaults to 1.
	BinValue float32

	// PrintEvery and ValidateEvery are step cadences; 0 derives them from
	// the epoch length (a quarter epoch and one epoch respectively).
	PrintEvery    int
	ValidateEvery int

	// SampleSeed seeds minibatch sampling.
	SampleSeed int64
}

// TrainingResult reports what the loop did.
type TrainingResult struct {
	Steps      int
	EpochSteps int
	FinalLoss  float32
	TotalTime  time.Duration
}

// Trainer drives minibatch gradient descent on a soft gate network. The
// network passed in is the only object mutated across steps; periodic
// binarized evaluations run on independent hardened copies.
type Trainer struct {
	Config TrainerConfig

	// Logf receives progress lines. Defaults to fmt.Printf with newline.
	Logf func(format string, args ...interface{})

	// Metrics, when set, receives run-scoped key/value series for an
	// external tracker. Best effort; failures must stay inside the hook.
	Metrics func(step int, values map[string]float64)

	net *Network
	ds  *Dataset
	opt Optimizer
	rng *rand.Rand
}

// NewTrainer creates a trainer with an AdamW optimizer (zero weight decay,
// matching the reference setup).
func NewTrainer(net *Network, ds *Dataset, cfg TrainerConfig) *Trainer {
	if cfg.BinValue == 0 {
		cfg.BinValue = 1
	}
	return &Trainer{
		Config: cfg,
		net:    net,
		ds:     ds,
		opt:    NewAdamWOptimizerDefault(),
		rng:    rand.New(rand.NewSource(cfg.SampleSeed)),
	}
}

func (t *Trainer) logf(format string, args ...interface{}) {
	if t.Logf != nil {
		t.Logf(format, args...)
		return
	}
	fmt.Printf(format+"\n", args...)
}

func (t *Trainer) metrics(step int, values map[string]float64) {
	if t.Metrics != nil {
		t.Metrics(step, values)
	}
}

// Run executes the full training loop: per step it samples a minibatch
// uniformly with replacement, runs forward/backward, applies the optimizer,
// then the constant-gate decay. Every PrintEvery steps it logs loss and
// passthrough diagnostics; every ValidateEvery steps it evaluates the soft
// network and a freshly binarized copy on the train and val splits, logging
// the accuracy gap between them.
func (t *Trainer) Run() (*TrainingResult, error) {
	cfg := t.Config
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("invalid batch size %d", cfg.BatchSize)
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("invalid epoch count %d", cfg.Epochs)
	}
	if t.ds.Train.Samples == 0 {
		return nil, fmt.Errorf("empty train split")
	}

	epochSteps := (t.ds.Train.Samples + cfg.BatchSize/2) / cfg.BatchSize
	if epochSteps < 1 {
		epochSteps = 1
	}
	steps := cfg.Epochs * epochSteps
	printEvery := cfg.PrintEvery
	if printEvery <= 0 {
		printEvery = epochSteps / 4
		if printEvery < 1 {
			printEvery = 1
		}
	}
	validateEvery := cfg.ValidateEvery
	if validateEvery <= 0 {
		validateEvery = epochSteps
	}

	t.logf("EPOCH_STEPS=%d, will train for %d EPOCHS", epochSteps, cfg.Epochs)

	inputSize := t.ds.InputSize
	k := t.ds.Categories
	x := make([]float32, cfg.BatchSize*inputSize)
	y := make([]float32, cfg.BatchSize*k)

	start := time.Now()
	var loss, ce float32
	for step := 0; step < steps; step++ {
		for b := 0; b < cfg.BatchSize; b++ {
			idx := t.rng.Intn(t.ds.Train.Samples)
			copy(x[b*inputSize:(b+1)*inputSize], t.ds.Train.Inputs[idx*inputSize:(idx+1)*inputSize])
			copy(y[b*k:(b+1)*k], t.ds.Train.Labels[idx*k:(idx+1)*k])
		}

		var regParts regTerms
		loss, ce, regParts = t.trainStep(x, y, cfg.BatchSize)

		if (step+1)%printEvery == 0 {
			regFraction := float64(0)
			if loss > 0 {
				regFraction = float64(1-ce*cfg.CEStrength/loss) * 100
			}
			t.logf("Iteration %10d - Loss %.3f - RegLoss %.0f%% - Pass %s",
				step+1, loss, regFraction, formatFractions(t.net.PassthroughFractions()))
			t.metrics(step, map[string]float64{
				"loss":                            float64(loss),
				"passthrough_regularization_loss": float64(regParts.passthrough),
				"connection_regularization_loss":  float64(regParts.connection),
				"gate_weight_regularization_loss": float64(regParts.gateWeight),
				"regularization_loss_fraction":    regFraction,
			})
		}

		if (step+1)%validateEvery == 0 {
			epoch := (step + 1) / epochSteps
			if err := t.validate(step, epoch); err != nil {
				return nil, err
			}
		}
	}

	elapsed := time.Since(start)
	t.logf("Training took %.2f seconds, per iteration: %.2f milliseconds",
		elapsed.Seconds(), elapsed.Seconds()/float64(steps)*1000)

	return &TrainingResult{
		Steps:      steps,
		EpochSteps: epochSteps,
		FinalLoss:  loss,
		TotalTime:  elapsed,
	}, nil
}

type regTerms struct {
	passthrough float32
	connection  float32
	gateWeight  float32
}

// trainStep runs one forward/backward/update cycle on a prepared minibatch
// and returns the total loss, the unscaled mean cross-entropy, and the
// per-term regularization values (averaged over layers, unweighted).
func (t *Trainer) trainStep(x, y []float32, batch int) (float32, float32, regTerms) {
	cfg := t.Config
	k := t.ds.Categories

	probs := t.net.Forward(x, batch)
	ce := crossEntropy(probs, y, batch, k) / float32(batch)

	// Regularization terms reuse the softmaxed distributions cached by the
	// forward pass.
	numLayers := float32(len(t.net.Layers))
	var reg regTerms
	for _, layer := range t.net.Layers {
		reg.passthrough += PassthroughPenalty(layer.gateProbs, layer.Gates)
		reg.connection += OneHotDistance(layer.connProbs, layer.Inputs, layer.Gates*2)
		reg.gateWeight += OneHotDistance(layer.gateProbs, NumGateFuncs, layer.Gates)
	}
	reg.passthrough /= numLayers
	reg.connection /= numLayers
	reg.gateWeight /= numLayers

	regLoss := (1 - cfg.CEStrength) * (cfg.PassthroughReg*reg.passthrough +
		cfg.ConnectionReg*reg.connection +
		cfg.GateWeightReg*reg.gateWeight)
	loss := ce*cfg.CEStrength + regLoss

	// Backward: cross-entropy over the softmaxed group sums gives the
	// usual (p - y) gradient, averaged over the batch and scaled by the
	// classification strength.
	t.net.ZeroGrads()
	gradScores := make([]float32, batch*k)
	scale := cfg.CEStrength / float32(batch)
	for i := range gradScores {
		gradScores[i] = (probs[i] - y[i]) * scale
	}
	t.net.Backward(gradScores, batch)

	regScale := (1 - cfg.CEStrength) / numLayers
	for _, layer := range t.net.Layers {
		if cfg.PassthroughReg != 0 {
			passthroughPenaltyGrad(layer.gateProbs, layer.Gates, regScale*cfg.PassthroughReg, layer.GradW)
		}
		if cfg.ConnectionReg != 0 {
			oneHotDistanceGrad(layer.connProbs, layer.Inputs, layer.Gates*2, regScale*cfg.ConnectionReg, layer.GradC)
		}
		if cfg.GateWeightReg != 0 {
			oneHotDistanceGrad(layer.gateProbs, NumGateFuncs, layer.Gates, regScale*cfg.GateWeightReg, layer.GradW)
		}
	}

	t.opt.Step(t.net, cfg.LearningRate)
	t.decayConstGates()

	return loss, ce, reg
}

// decayConstGates shrinks the always-0 and always-1 gate logits toward zero
// after every optimizer step. The factor is coupled to the learning rate and
// deliberately applied outside the optimizer's own weight-decay path.
// TODO: rewrite this as regularization.
func (t *Trainer) decayConstGates() {
	factor := 1 - t.Config.LearningRate*t.Config.ConstGateDecay
	for _, layer := range t.net.Layers {
		gates := layer.Gates
		for _, f := range [2]int{GateFalse, GateTrue} {
			row := layer.W[f*gates : f*gates+gates]
			for g := range row {
				row[g] *= factor
			}
		}
	}
}

// validate evaluates the soft network and a fresh binarized copy on the
// train and val splits, reporting the soft/binarized accuracy gap as a
// health signal for the relaxation.
func (t *Trainer) validate(step, epoch int) error {
	cfg := t.Config

	trainLoss, trainAcc, err := Evaluate(t.net, t.ds, "train", cfg.BatchSize)
	if err != nil {
		return err
	}
	hard := Binarize(t.net, cfg.BinValue)
	_, binTrainAcc, err := Evaluate(hard, t.ds, "train", cfg.BatchSize)
	if err != nil {
		return err
	}
	t.logf("EPOCH=%d/%d BIN TRN acc=%.2f%%, train_acc_diff=%.2f%%",
		epoch, cfg.Epochs, binTrainAcc*100, (trainAcc-binTrainAcc)*100)

	valLoss, valAcc, err := Evaluate(t.net, t.ds, "val", cfg.BatchSize)
	if err != nil {
		return err
	}
	_, binValAcc, err := Evaluate(hard, t.ds, "val", cfg.BatchSize)
	if err != nil {
		return err
	}
	t.logf("EPOCH=%d/%d BIN VAL acc=%.2f%%,   val_acc_diff=%.2f%%",
		epoch, cfg.Epochs, binValAcc*100, (valAcc-binValAcc)*100)

	t.metrics(step, map[string]float64{
		"epoch":          float64(epoch),
		"train_loss":     float64(trainLoss),
		"train_acc":      float64(trainAcc) * 100,
		"val_loss":       float64(valLoss),
		"val_acc":        float64(valAcc) * 100,
		"bin_train_acc":  float64(binTrainAcc) * 100,
		"train_acc_diff": float64(trainAcc-binTrainAcc) * 100,
		"bin_val_acc":    float64(binValAcc) * 100,
		"val_acc_diff":   float64(valAcc-binValAcc) * 100,
	})
	return nil
}

// formatFractions renders per-layer fractions as "12.3%, 4.5%".
func formatFractions(fractions []float32) string {
	parts := make([]string, len(fractions))
	for i, f := range fractions {
		parts[i] = fmt.Sprintf("%.1f%%", f*100)
	}
	return strings.Join(parts, ", ")
}
