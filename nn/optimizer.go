package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Optimizer applies accumulated gradients to a network's parameters.
type Optimizer interface {
	// Step consumes the layers' GradW/GradC buffers and updates W/C.
	Step(network *Network, learningRate float32)

	// Reset clears optimizer state (moment estimates, step count).
	Reset()

	// Name returns the optimizer name.
	Name() string
}

// AdamWOptimizer is Adam with decoupled weight decay. The reference training
// setup runs it with weightDecay 0: shrinking gate logits uniformly would
// flatten the selection distributions the regularizers work to sharpen, so
// the only decay applied during training is the targeted constant-gate decay
// in the trainer.
type AdamWOptimizer struct {
	beta1       float32
	beta2       float32
	epsilon     float32
	weightDecay float32
	step        int

	// First and second moment estimates, keyed per parameter tensor.
	m map[string][]float32
	v map[string][]float32
}

func NewAdamWOptimizer(beta1, beta2, epsilon, weightDecay float32) *AdamWOptimizer {
	return &AdamWOptimizer{
		beta1:       beta1,
		beta2:       beta2,
		epsilon:     epsilon,
		weightDecay: weightDecay,
		m:           make(map[string][]float32),
		v:           make(map[string][]float32),
	}
}

// NewAdamWOptimizerDefault returns AdamW with the standard betas and zero
// weight decay.
func NewAdamWOptimizerDefault() *AdamWOptimizer {
	return NewAdamWOptimizer(0.9, 0.999, 1e-8, 0)
}

func (opt *AdamWOptimizer) Step(network *Network, learningRate float32) {
	opt.step++

	biasCorrection1 := 1 - math32.Pow(opt.beta1, float32(opt.step))
	biasCorrection2 := 1 - math32.Pow(opt.beta2, float32(opt.step))

	for i, layer := range network.Layers {
		opt.update(fmt.Sprintf("w_%d", i), layer.W, layer.GradW, learningRate, biasCorrection1, biasCorrection2)
		opt.update(fmt.Sprintf("c_%d", i), layer.C, layer.GradC, learningRate, biasCorrection1, biasCorrection2)
	}
}

func (opt *AdamWOptimizer) update(key string, params, grads []float32, lr, bc1, bc2 float32) {
	if opt.m[key] == nil {
		opt.m[key] = make([]float32, len(params))
		opt.v[key] = make([]float32, len(params))
	}
	m := opt.m[key]
	v := opt.v[key]

	for j := range params {
		grad := grads[j]

		m[j] = opt.beta1*m[j] + (1-opt.beta1)*grad
		v[j] = opt.beta2*v[j] + (1-opt.beta2)*grad*grad

		mHat := m[j] / bc1
		vHat := v[j] / bc2

		params[j] -= lr * (mHat/(math32.Sqrt(vHat)+opt.epsilon) + opt.weightDecay*params[j])
	}
}

func (opt *AdamWOptimizer) Reset() {
	opt.step = 0
	opt.m = make(map[string][]float32)
	opt.v = make(map[string][]float32)
}

func (opt *AdamWOptimizer) Name() string {
	return "AdamW"
}
