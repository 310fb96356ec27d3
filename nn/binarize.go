package nn

// Binarize produces an independent, discrete copy of a trained network.
// For every layer the gate-selection logits collapse to a one-hot over the
// 16-function axis at their arg-max, the connection logits collapse to a
// one-hot over the input axis per (gate, slot), and the layer state flips to
// StateBinarized so the forward pass consumes the stored values directly.
// The arg-max entries are set to binValue (1 in the reference setup).
//
// The source network is never touched, and binarizing an already binarized
// network returns an identical copy: with exactly one positive entry per
// distribution, the arg-max reproduces the same selection.
func Binarize(n *Network, binValue float32) *Network {
	hard := n.Clone()
	for _, layer := range hard.Layers {
		gates := layer.Gates

		for g := 0; g < gates; g++ {
			m := argmaxStrided(layer.W, g, NumGateFuncs, gates)
			for f := 0; f < NumGateFuncs; f++ {
				layer.W[f*gates+g] = 0
			}
			layer.W[m*gates+g] = binValue
		}

		cols := gates * 2
		for col := 0; col < cols; col++ {
			m := argmaxStrided(layer.C, col, layer.Inputs, cols)
			for i := 0; i < layer.Inputs; i++ {
				layer.C[i*cols+col] = 0
			}
			layer.C[m*cols+col] = binValue
		}

		layer.State = StateBinarized
	}
	return hard
}

// Connections reports, for each layer, the arg-max input index feeding each
// gate's A and B slots. This is the derived wiring summary persisted with a
// snapshot for inspection; it is not used to reconstruct behavior.
func (n *Network) Connections() (slotA, slotB [][]int) {
	slotA = make([][]int, len(n.Layers))
	slotB = make([][]int, len(n.Layers))
	for li, layer := range n.Layers {
		cols := layer.Gates * 2
		a := make([]int, layer.Gates)
		b := make([]int, layer.Gates)
		for g := 0; g < layer.Gates; g++ {
			a[g] = argmaxStrided(layer.C, g*2, layer.Inputs, cols)
			b[g] = argmaxStrided(layer.C, g*2+1, layer.Inputs, cols)
		}
		slotA[li] = a
		slotB[li] = b
	}
	return slotA, slotB
}
