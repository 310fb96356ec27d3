package nn

import (
	"fmt"

	"github.com/chewxy/math32"
)

// lossEpsilon clamps predicted probabilities away from zero before the log
// in the cross-entropy, preventing -Inf on confident misclassifications.
const lossEpsilon = 1e-7

// crossEntropy returns the summed cross-entropy between predicted
// probability rows and one-hot label rows over a batch.
func crossEntropy(probs, labels []float32, batch, categories int) float32 {
	var sum float32
	for b := 0; b < batch; b++ {
		for c := 0; c < categories; c++ {
			idx := b*categories + c
			if labels[idx] > 0 {
				p := probs[idx]
				if p < lossEpsilon {
					p = lossEpsilon
				}
				sum += -labels[idx] * math32.Log(p)
			}
		}
	}
	return sum
}

// argmaxRow returns the index of the largest value in v.
func argmaxRow(v []float32) int {
	best := 0
	for i, x := range v[1:] {
		if x > v[best] {
			best = i + 1
		}
	}
	return best
}

// Evaluate computes the mean cross-entropy loss and accuracy of a network
// over a full dataset split ("train", "val" or "test"), processed in
// fixed-size batches with no gradient tracking. The network may be soft or
// binarized. An unrecognized split name fails before any computation.
func Evaluate(n *Network, ds *Dataset, split string, batchSize int) (loss, accuracy float32, err error) {
	return EvaluateForward(func(x []float32, batch int) ([]float32, error) {
		return n.Forward(x, batch), nil
	}, ds, split, batchSize)
}

// EvaluateForward is Evaluate with the forward pass supplied by the caller:
// forward receives a [batch*InputSize] slice and must return
// [batch*Categories] probability rows. It is how alternative execution
// backends plug into the evaluation loop.
func EvaluateForward(forward func(x []float32, batch int) ([]float32, error), ds *Dataset, split string, batchSize int) (loss, accuracy float32, err error) {
	var s *Split
	switch split {
	case "train":
		s = &ds.Train
	case "val":
		s = &ds.Val
	case "test":
		s = &ds.Test
	default:
		return 0, 0, fmt.Errorf("unknown dataset split %q", split)
	}
	if batchSize <= 0 {
		return 0, 0, fmt.Errorf("invalid batch size %d", batchSize)
	}

	k := ds.Categories
	var lossSum float32
	correct := 0
	for start := 0; start < s.Samples; start += batchSize {
		end := start + batchSize
		if end > s.Samples {
			end = s.Samples
		}
		batch := end - start

		x := s.Inputs[start*ds.InputSize : end*ds.InputSize]
		y := s.Labels[start*k : end*k]

		probs, err := forward(x, batch)
		if err != nil {
			return 0, 0, err
		}
		lossSum += crossEntropy(probs, y, batch, k)
		for b := 0; b < batch; b++ {
			if argmaxRow(probs[b*k:(b+1)*k]) == argmaxRow(y[b*k:(b+1)*k]) {
				correct++
			}
		}
	}

	samples := float32(s.Samples)
	return lossSum / samples, float32(correct) / samples, nil
}
