package nn

import (
	"math/rand"
)

// NewGateLayer creates a soft gate layer with Gaussian(0, 1) initialized
// logits. Only Gaussian initialization is supported.
func NewGateLayer(inputs, gates int, rng *rand.Rand) *GateLayer {
	l := &GateLayer{
		Inputs: inputs,
		Gates:  gates,
		State:  StateSoft,
		W:      make([]float32, NumGateFuncs*gates),
		C:      make([]float32, inputs*gates*2),
		GradW:  make([]float32, NumGateFuncs*gates),
		GradC:  make([]float32, inputs*gates*2),
	}
	for i := range l.W {
		l.W[i] = float32(rng.NormFloat64())
	}
	for i := range l.C {
		l.C[i] = float32(rng.NormFloat64())
	}
	return l
}

// GateWeights returns the gate-selection weights actually used by the
// forward pass: softmax over the 16-function axis in the soft state, the
// stored one-hot values in the binarized state. Layout [NumGateFuncs*Gates],
// one independent distribution per gate column.
func (l *GateLayer) GateWeights() []float32 {
	if l.State == StateBinarized {
		return l.W
	}
	probs := make([]float32, len(l.W))
	for g := 0; g < l.Gates; g++ {
		softmaxStrided(l.W, probs, g, NumGateFuncs, l.Gates)
	}
	return probs
}

// ConnectionWeights returns the connection weights used by the forward pass:
// softmax over the input axis per (gate, slot) in the soft state, the stored
// one-hot values in the binarized state. Layout [Inputs*Gates*2].
func (l *GateLayer) ConnectionWeights() []float32 {
	if l.State == StateBinarized {
		return l.C
	}
	probs := make([]float32, len(l.C))
	cols := l.Gates * 2
	for col := 0; col < cols; col++ {
		softmaxStrided(l.C, probs, col, l.Inputs, cols)
	}
	return probs
}

// Forward computes the gate outputs for a batch of input vectors.
// x is [batch*Inputs] row-major; the result is [batch*Gates], every value in
// [0,1] for inputs in [0,1]. Intermediate activations are cached for
// Backward.
func (l *GateLayer) Forward(x []float32, batch int) []float32 {
	numGates := l.Gates
	numIn := l.Inputs

	conn := l.ConnectionWeights()
	gateW := l.GateWeights()

	// Slot values: A and B are weighted sums of the previous layer's
	// outputs under the per-slot connection distributions.
	slotA := make([]float32, batch*numGates)
	slotB := make([]float32, batch*numGates)
	for b := 0; b < batch; b++ {
		row := x[b*numIn : (b+1)*numIn]
		out := b * numGates
		for i, xv := range row {
			if xv == 0 {
				continue
			}
			base := i * numGates * 2
			for g := 0; g < numGates; g++ {
				slotA[out+g] += xv * conn[base+g*2]
				slotB[out+g] += xv * conn[base+g*2+1]
			}
		}
	}

	// Mix the 16 relaxed gate functions under the selection distribution.
	output := make([]float32, batch*numGates)
	for b := 0; b < batch; b++ {
		for g := 0; g < numGates; g++ {
			idx := b*numGates + g
			a, bv := slotA[idx], slotB[idx]
			var sum float32
			for f := 0; f < NumGateFuncs; f++ {
				if w := gateW[f*numGates+g]; w != 0 {
					sum += w * gateValue(f, a, bv)
				}
			}
			output[idx] = sum
		}
	}

	l.batch = batch
	l.input = x
	l.slotA = slotA
	l.slotB = slotB
	l.connProbs = conn
	l.gateProbs = gateW
	return output
}

// Backward propagates gradOut ([batch*Gates]) through the layer,
// accumulating parameter gradients into GradW and GradC and returning the
// gradient with respect to the layer input ([batch*Inputs]). Requires a
// preceding Forward call in the soft state.
func (l *GateLayer) Backward(gradOut []float32) []float32 {
	batch := l.batch
	numGates := l.Gates
	numIn := l.Inputs
	conn := l.connProbs
	gateW := l.gateProbs

	// Gradients w.r.t. the gate-selection probabilities and slot values.
	dQ := make([]float32, NumGateFuncs*numGates)
	dA := make([]float32, batch*numGates)
	dB := make([]float32, batch*numGates)
	for b := 0; b < batch; b++ {
		for g := 0; g < numGates; g++ {
			idx := b*numGates + g
			grad := gradOut[idx]
			if grad == 0 {
				continue
			}
			a, bv := l.slotA[idx], l.slotB[idx]
			for f := 0; f < NumGateFuncs; f++ {
				dQ[f*numGates+g] += grad * gateValue(f, a, bv)
				da, db := gateGrad(f, a, bv)
				w := gateW[f*numGates+g]
				dA[idx] += grad * w * da
				dB[idx] += grad * w * db
			}
		}
	}

	// Through the gate-selection softmax: one Jacobian per gate column.
	for g := 0; g < numGates; g++ {
		var dot float32
		for f := 0; f < NumGateFuncs; f++ {
			dot += gateW[f*numGates+g] * dQ[f*numGates+g]
		}
		for f := 0; f < NumGateFuncs; f++ {
			i := f*numGates + g
			l.GradW[i] += gateW[i] * (dQ[i] - dot)
		}
	}

	// Input gradient through the slot matrix products.
	gradIn := make([]float32, batch*numIn)
	for b := 0; b < batch; b++ {
		for i := 0; i < numIn; i++ {
			base := i * numGates * 2
			var sum float32
			for g := 0; g < numGates; g++ {
				idx := b*numGates + g
				sum += dA[idx]*conn[base+g*2] + dB[idx]*conn[base+g*2+1]
			}
			gradIn[b*numIn+i] = sum
		}
	}

	// Gradients w.r.t. the connection probabilities, then through the
	// per-(gate, slot) softmax over the input axis.
	dP := make([]float32, numIn*numGates*2)
	for b := 0; b < batch; b++ {
		row := l.input[b*numIn : (b+1)*numIn]
		for i, xv := range row {
			if xv == 0 {
				continue
			}
			base := i * numGates * 2
			for g := 0; g < numGates; g++ {
				idx := b*numGates + g
				dP[base+g*2] += xv * dA[idx]
				dP[base+g*2+1] += xv * dB[idx]
			}
		}
	}
	cols := numGates * 2
	for col := 0; col < cols; col++ {
		var dot float32
		for i := 0; i < numIn; i++ {
			dot += conn[i*cols+col] * dP[i*cols+col]
		}
		for i := 0; i < numIn; i++ {
			idx := i*cols + col
			l.GradC[idx] += conn[idx] * (dP[idx] - dot)
		}
	}

	return gradIn
}

// ZeroGrads clears the accumulated parameter gradients.
func (l *GateLayer) ZeroGrads() {
	for i := range l.GradW {
		l.GradW[i] = 0
	}
	for i := range l.GradC {
		l.GradC[i] = 0
	}
}

// Clone returns a deep copy of the layer. Forward caches are not copied.
func (l *GateLayer) Clone() *GateLayer {
	c := &GateLayer{
		Inputs: l.Inputs,
		Gates:  l.Gates,
		State:  l.State,
		W:      make([]float32, len(l.W)),
		C:      make([]float32, len(l.C)),
		GradW:  make([]float32, len(l.GradW)),
		GradC:  make([]float32, len(l.GradC)),
	}
	copy(c.W, l.W)
	copy(c.C, l.C)
	return c
}
