package nn

import (
	"fmt"
	"math/rand"
)

// NewNetwork builds a soft gate network from an ordered list of layer
// widths. The last width must be exactly divisible by categories; the
// quotient is the number of gate outputs summed per category score.
// All parameters are initialized from a rand source seeded with seed, so the
// same configuration always produces the same network.
func NewNetwork(inputSize int, architecture []int, categories int, seed int64) (*Network, error) {
	if inputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", inputSize)
	}
	if len(architecture) == 0 {
		return nil, fmt.Errorf("empty architecture")
	}
	for i, w := range architecture {
		if w <= 0 {
			return nil, fmt.Errorf("invalid width %d for layer %d", w, i)
		}
	}
	if categories <= 0 {
		return nil, fmt.Errorf("invalid category count %d", categories)
	}
	last := architecture[len(architecture)-1]
	if last%categories != 0 {
		return nil, fmt.Errorf("last layer width %d not divisible by %d categories", last, categories)
	}

	rng := rand.New(rand.NewSource(seed))
	n := &Network{
		Layers:             make([]*GateLayer, 0, len(architecture)),
		InputSize:          inputSize,
		Categories:         categories,
		OutputsPerCategory: last / categories,
		Architecture:       append([]int(nil), architecture...),
		Seed:               seed,
	}
	prev := inputSize
	for _, width := range architecture {
		n.Layers = append(n.Layers, NewGateLayer(prev, width, rng))
		prev = width
	}
	return n, nil
}

// Forward runs a batch of input vectors ([batch*InputSize]) through every
// layer, sums the last layer's outputs in contiguous groups of
// OutputsPerCategory, and softmaxes the group sums. The result is
// [batch*Categories], each row a probability distribution.
func (n *Network) Forward(x []float32, batch int) []float32 {
	for _, layer := range n.Layers {
		x = layer.Forward(x, batch)
	}
	return n.Probabilities(x, batch)
}

// Probabilities converts a batch of last-layer gate outputs
// ([batch*lastWidth]) into category probability rows: contiguous groups of
// OutputsPerCategory are summed and each row softmaxed. Forward paths that
// run the layer stack elsewhere (the GPU sequence) finish through here.
func (n *Network) Probabilities(gateOut []float32, batch int) []float32 {
	k := n.Categories
	opc := n.OutputsPerCategory
	scores := make([]float32, batch*k)
	for b := 0; b < batch; b++ {
		for c := 0; c < k; c++ {
			var sum float32
			base := b*k*opc + c*opc
			for j := 0; j < opc; j++ {
				sum += gateOut[base+j]
			}
			scores[b*k+c] = sum
		}
		softmaxRow(scores[b*k : (b+1)*k])
	}
	return scores
}

// Backward propagates a gradient with respect to the category group sums
// ([batch*Categories]) back through the grouping step and every layer,
// accumulating parameter gradients. The gradient of a group sum distributes
// unchanged to each gate output in the group.
func (n *Network) Backward(gradScores []float32, batch int) {
	k := n.Categories
	opc := n.OutputsPerCategory
	last := n.Layers[len(n.Layers)-1]

	grad := make([]float32, batch*last.Gates)
	for b := 0; b < batch; b++ {
		for c := 0; c < k; c++ {
			g := gradScores[b*k+c]
			base := b*k*opc + c*opc
			for j := 0; j < opc; j++ {
				grad[base+j] = g
			}
		}
	}

	for i := len(n.Layers) - 1; i >= 0; i-- {
		grad = n.Layers[i].Backward(grad)
	}
}

// ZeroGrads clears the accumulated gradients of every layer.
func (n *Network) ZeroGrads() {
	for _, layer := range n.Layers {
		layer.ZeroGrads()
	}
}

// PassthroughFractions reports, per layer, the fraction of total
// gate-selection probability mass on the four passthrough functions
// (A, B, NOT A, NOT B). High values mean the layer mostly behaves as wiring
// rather than logic.
func (n *Network) PassthroughFractions() []float32 {
	fractions := make([]float32, len(n.Layers))
	for i, layer := range n.Layers {
		fractions[i] = PassthroughPenalty(layer.GateWeights(), layer.Gates)
	}
	return fractions
}

// Clone returns a deep copy of the network sharing no parameter storage.
func (n *Network) Clone() *Network {
	c := &Network{
		Layers:             make([]*GateLayer, len(n.Layers)),
		InputSize:          n.InputSize,
		Categories:         n.Categories,
		OutputsPerCategory: n.OutputsPerCategory,
		Architecture:       append([]int(nil), n.Architecture...),
		Seed:               n.Seed,
	}
	for i, layer := range n.Layers {
		c.Layers[i] = layer.Clone()
	}
	return c
}
