package nn

import (
	"github.com/chewxy/math32"
)

// softmaxStrided computes a softmax over the n elements src[offset+k*stride]
// and writes the probabilities to the same positions of dst. The running max
// is subtracted before exponentiation for numerical stability.
func softmaxStrided(src, dst []float32, offset, n, stride int) {
	max := src[offset]
	for k := 1; k < n; k++ {
		if v := src[offset+k*stride]; v > max {
			max = v
		}
	}
	var sum float32
	for k := 0; k < n; k++ {
		e := math32.Exp(src[offset+k*stride] - max)
		dst[offset+k*stride] = e
		sum += e
	}
	inv := 1 / sum
	for k := 0; k < n; k++ {
		dst[offset+k*stride] *= inv
	}
}

// softmaxRow computes an in-place softmax over the contiguous slice v.
func softmaxRow(v []float32) {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float32
	for i, x := range v {
		e := math32.Exp(x - max)
		v[i] = e
		sum += e
	}
	inv := 1 / sum
	for i := range v {
		v[i] *= inv
	}
}

// argmaxStrided returns the index k maximizing src[offset+k*stride].
// Ties resolve to the lowest index.
func argmaxStrided(src []float32, offset, n, stride int) int {
	best := 0
	bestV := src[offset]
	for k := 1; k < n; k++ {
		if v := src[offset+k*stride]; v > bestV {
			best = k
			bestV = v
		}
	}
	return best
}
