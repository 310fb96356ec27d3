package gpu

import (
	"github.com/openfluke/gatenet/nn"
)

// Evaluate computes mean loss and accuracy over a dataset split with the
// layer stack running on the GPU. The network's selection weights are frozen
// into a sequence once; the category grouping, softmax and loss stay on the
// CPU. Partial final batches are zero-padded up to the sequence's batch size
// and the padding rows discarded. Any device error aborts the evaluation so
// the caller can fall back to the CPU path.
func (s *GateSequence) Evaluate(n *nn.Network, ds *nn.Dataset, split string) (loss, accuracy float32, err error) {
	last := s.Layers[len(s.Layers)-1]
	padded := make([]float32, s.BatchSize*ds.InputSize)

	return nn.EvaluateForward(func(x []float32, batch int) ([]float32, error) {
		input := x
		if batch < s.BatchSize {
			for i := range padded {
				padded[i] = 0
			}
			copy(padded, x)
			input = padded
		}
		out, err := s.Forward(input)
		if err != nil {
			return nil, err
		}
		return n.Probabilities(out[:batch*last.Spec.Gates], batch), nil
	}, ds, split, s.BatchSize)
}

// Evaluate freezes net, builds the device resources, runs the split and
// releases everything. One-shot convenience over GateSequence.Evaluate.
func Evaluate(net *nn.Network, ds *nn.Dataset, split string, batchSize int) (loss, accuracy float32, err error) {
	seq := SequenceFromNetwork(net, batchSize)
	if err := seq.Build(); err != nil {
		return 0, 0, err
	}
	defer seq.Cleanup()
	return seq.Evaluate(net, ds, split)
}
