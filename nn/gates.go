package nn

// gateValue evaluates the continuous relaxation of gate function f at slot
// values a, b. These are the multilinear extensions of the 16 two-input
// Boolean functions: on {0,1}-valued inputs they reduce exactly to the
// discrete truth tables, and in between they stay polynomial in a and b.
func gateValue(f int, a, b float32) float32 {
	ab := a * b
	switch f {
	case GateFalse:
		return 0
	case GateAnd:
		return ab
	case GateAndNotB:
		return a - ab
	case GatePassA:
		return a
	case GateAndNotA:
		return b - ab
	case GatePassB:
		return b
	case GateXor:
		return a + b - 2*ab
	case GateOr:
		return a + b - ab
	case GateNor:
		return 1 - (a + b - ab)
	case GateXnor:
		return 1 - (a + b - 2*ab)
	case GateNotB:
		return 1 - b
	case GateImplBA:
		return 1 - (b - ab)
	case GateNotA:
		return 1 - a
	case GateImplAB:
		return 1 - (a - ab)
	case GateNand:
		return 1 - ab
	case GateTrue:
		return 1
	}
	return 0
}

// gateGrad returns the partial derivatives of gateValue(f, a, b) with
// respect to a and b. Every relaxation is multilinear, so each partial
// depends only on the other input.
func gateGrad(f int, a, b float32) (da, db float32) {
	switch f {
	case GateFalse:
		return 0, 0
	case GateAnd:
		return b, a
	case GateAndNotB:
		return 1 - b, -a
	case GatePassA:
		return 1, 0
	case GateAndNotA:
		return -b, 1 - a
	case GatePassB:
		return 0, 1
	case GateXor:
		return 1 - 2*b, 1 - 2*a
	case GateOr:
		return 1 - b, 1 - a
	case GateNor:
		return b - 1, a - 1
	case GateXnor:
		return 2*b - 1, 2*a - 1
	case GateNotB:
		return 0, -1
	case GateImplBA:
		return b, a - 1
	case GateNotA:
		return -1, 0
	case GateImplAB:
		return b - 1, a
	case GateNand:
		return -b, -a
	case GateTrue:
		return 0, 0
	}
	return 0, 0
}
