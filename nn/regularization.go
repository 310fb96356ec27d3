package nn

// The regularizers below operate on already-softmaxed selection weights laid
// out as [choices*dists]: `dists` independent probability distributions, each
// running over `choices` entries with stride `dists`. For a layer's gate
// weights that is [16*Gates]; for its connection weights [Inputs*(Gates*2)].

// OneHotDistance measures how far the distributions are, on average, from a
// one-hot selection: sum over distributions of (1 - max) divided by the
// number of distributions. 0 when every distribution is one-hot, 1 in the
// uniform limit.
func OneHotDistance(probs []float32, choices, dists int) float32 {
	var nonMax float32
	for d := 0; d < dists; d++ {
		max := probs[d]
		for c := 1; c < choices; c++ {
			if v := probs[c*dists+d]; v > max {
				max = v
			}
		}
		nonMax += 1 - max
	}
	return nonMax / float32(dists)
}

// PassthroughPenalty returns the fraction of total gate-selection mass on
// the four passthrough functions. probs is a softmaxed gate-weight tensor
// [NumGateFuncs*dists].
func PassthroughPenalty(probs []float32, dists int) float32 {
	var pass, total float32
	for f := 0; f < NumGateFuncs; f++ {
		for d := 0; d < dists; d++ {
			total += probs[f*dists+d]
		}
	}
	for _, f := range PassthroughGates {
		for d := 0; d < dists; d++ {
			pass += probs[f*dists+d]
		}
	}
	return pass / total
}

// oneHotDistanceGrad accumulates coef * d(OneHotDistance)/d(logits) into
// grad, backpropagating the (1 - max) terms through the softmax that
// produced probs. Arg-max ties resolve to the lowest index, matching
// OneHotDistance itself.
func oneHotDistanceGrad(probs []float32, choices, dists int, coef float32, grad []float32) {
	scale := -coef / float32(dists)
	for d := 0; d < dists; d++ {
		m := argmaxStrided(probs, d, choices, dists)
		pm := probs[m*dists+d]
		// d(max)/d(logit_c) = pm * (delta(c==m) - p_c)
		for c := 0; c < choices; c++ {
			idx := c*dists + d
			if c == m {
				grad[idx] += scale * pm * (1 - probs[idx])
			} else {
				grad[idx] += scale * -pm * probs[idx]
			}
		}
	}
}

// passthroughPenaltyGrad accumulates coef * d(PassthroughPenalty)/d(logits)
// into grad. The derivative of pass/total is (indicator - ratio)/total per
// probability entry, carried through each column's softmax Jacobian.
func passthroughPenaltyGrad(probs []float32, dists int, coef float32, grad []float32) {
	ratio := PassthroughPenalty(probs, dists)
	total := float32(dists) // each column sums to one

	isPass := [NumGateFuncs]bool{}
	for _, f := range PassthroughGates {
		isPass[f] = true
	}

	dP := make([]float32, NumGateFuncs)
	for d := 0; d < dists; d++ {
		var dot float32
		for f := 0; f < NumGateFuncs; f++ {
			v := -ratio / total
			if isPass[f] {
				v = (1 - ratio) / total
			}
			dP[f] = v
			dot += probs[f*dists+d] * v
		}
		for f := 0; f < NumGateFuncs; f++ {
			idx := f*dists + d
			grad[idx] += coef * probs[idx] * (dP[f] - dot)
		}
	}
}
