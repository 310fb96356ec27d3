package nn

import (
	"math"
	"math/rand"
	"testing"
)

func TestOneHotDistance(t *testing.T) {
	// Two one-hot columns: distance 0.
	oneHot := []float32{
		1, 0,
		0, 0,
		0, 1,
		0, 0,
	}
	if d := OneHotDistance(oneHot, 4, 2); d != 0 {
		t.Errorf("one-hot distance = %v, want 0", d)
	}

	// Uniform columns: 1 - max = 1 - 1/choices.
	uniform := make([]float32, 4*2)
	for i := range uniform {
		uniform[i] = 0.25
	}
	want := float32(1 - 0.25)
	if d := OneHotDistance(uniform, 4, 2); math.Abs(float64(d-want)) > 1e-6 {
		t.Errorf("uniform distance = %v, want %v", d, want)
	}

	// Random softmaxed columns stay within [0, 1).
	rng := rand.New(rand.NewSource(3))
	logits := make([]float32, 16*5)
	probs := make([]float32, len(logits))
	for i := range logits {
		logits[i] = float32(rng.NormFloat64())
	}
	for d := 0; d < 5; d++ {
		softmaxStrided(logits, probs, d, 16, 5)
	}
	if d := OneHotDistance(probs, 16, 5); d < 0 || d >= 1 {
		t.Errorf("distance %v outside [0, 1)", d)
	}
}

func TestPassthroughPenalty(t *testing.T) {
	dists := 3
	probs := make([]float32, NumGateFuncs*dists)

	// All mass on a passthrough function.
	for d := 0; d < dists; d++ {
		probs[GatePassA*dists+d] = 1
	}
	if p := PassthroughPenalty(probs, dists); p != 1 {
		t.Errorf("all-passthrough penalty = %v, want 1", p)
	}

	// All mass on a non-passthrough function.
	for i := range probs {
		probs[i] = 0
	}
	for d := 0; d < dists; d++ {
		probs[GateXor*dists+d] = 1
	}
	if p := PassthroughPenalty(probs, dists); p != 0 {
		t.Errorf("no-passthrough penalty = %v, want 0", p)
	}

	// Uniform: 4 of 16 functions are passthrough.
	for i := range probs {
		probs[i] = 1.0 / NumGateFuncs
	}
	if p := PassthroughPenalty(probs, dists); math.Abs(float64(p-0.25)) > 1e-6 {
		t.Errorf("uniform penalty = %v, want 0.25", p)
	}
}

// regFiniteDiff numerically differentiates fn, a scalar over per-column
// softmaxed logits, at logits and compares against analytic.
func regFiniteDiff(t *testing.T, logits []float32, choices, dists int,
	fn func(probs []float32) float32, analytic []float32) {
	t.Helper()
	const eps = 1e-2
	probs := make([]float32, len(logits))
	eval := func() float32 {
		for d := 0; d < dists; d++ {
			softmaxStrided(logits, probs, d, choices, dists)
		}
		return fn(probs)
	}
	for i := range logits {
		orig := logits[i]
		logits[i] = orig + eps
		plus := eval()
		logits[i] = orig - eps
		minus := eval()
		logits[i] = orig
		numeric := (plus - minus) / (2 * eps)
		if diff := math.Abs(float64(numeric - analytic[i])); diff > 2e-3 {
			t.Errorf("logit %d: numeric %v, analytic %v", i, numeric, analytic[i])
		}
	}
}

func TestOneHotDistanceGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	choices, dists := 16, 3
	logits := make([]float32, choices*dists)
	for i := range logits {
		logits[i] = float32(rng.NormFloat64())
	}

	probs := make([]float32, len(logits))
	for d := 0; d < dists; d++ {
		softmaxStrided(logits, probs, d, choices, dists)
	}
	coef := float32(0.7)
	grad := make([]float32, len(logits))
	oneHotDistanceGrad(probs, choices, dists, coef, grad)

	regFiniteDiff(t, logits, choices, dists, func(p []float32) float32 {
		return coef * OneHotDistance(p, choices, dists)
	}, grad)
}

func TestPassthroughPenaltyGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	dists := 4
	logits := make([]float32, NumGateFuncs*dists)
	for i := range logits {
		logits[i] = float32(rng.NormFloat64())
	}

	probs := make([]float32, len(logits))
	for d := 0; d < dists; d++ {
		softmaxStrided(logits, probs, d, NumGateFuncs, dists)
	}
	coef := float32(1.3)
	grad := make([]float32, len(logits))
	passthroughPenaltyGrad(probs, dists, coef, grad)

	regFiniteDiff(t, logits, NumGateFuncs, dists, func(p []float32) float32 {
		return coef * PassthroughPenalty(p, dists)
	}, grad)
}
