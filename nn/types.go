package nn

// LayerState tells the forward pass how to interpret a layer's parameters.
type LayerState int

const (
	// StateSoft treats the gate and connection parameters as logits and
	// applies softmax, giving the differentiable relaxation used in training.
	StateSoft LayerState = 0
	// StateBinarized treats the parameters as already one-hot selection
	// weights, giving discrete Boolean-circuit behavior.
	StateBinarized LayerState = 1
)

// NumGateFuncs is the number of two-input Boolean functions.
const NumGateFuncs = 16

// Gate function indices, numbered according to the table in
// https://arxiv.org/pdf/2210.08277.
const (
	GateFalse   = 0  // constant 0
	GateAnd     = 1  // A AND B
	GateAndNotB = 2  // A AND NOT B
	GatePassA   = 3  // A
	GateAndNotA = 4  // B AND NOT A
	GatePassB   = 5  // B
	GateXor     = 6  // A XOR B
	GateOr      = 7  // A OR B
	GateNor     = 8  // NOT (A OR B)
	GateXnor    = 9  // NOT (A XOR B)
	GateNotB    = 10 // NOT B
	GateImplBA  = 11 // B IMPLIES A
	GateNotA    = 12 // NOT A
	GateImplAB  = 13 // A IMPLIES B
	GateNand    = 14 // NOT (A AND B)
	GateTrue    = 15 // constant 1
)

// PassthroughGates are the four functions that output one input unchanged or
// negated while ignoring the other: a gate selecting one of these behaves as
// a wire rather than real logic.
var PassthroughGates = [4]int{GatePassA, GatePassB, GateNotB, GateNotA}

// GateLayer is an array of gate units. It owns two trainable parameter
// tensors, both stored as flat row-major float32 slices:
//
//	W [NumGateFuncs * Gates]    gate-selection logits, W[f*Gates+g]
//	C [Inputs * Gates * 2]      connection logits, C[(i*Gates+g)*2+slot]
//
// Slot 0 is input A, slot 1 is input B.
type GateLayer struct {
	Inputs int
	Gates  int
	State  LayerState

	W []float32
	C []float32

	// Gradients accumulated by Backward and the regularizer gradient
	// routines, consumed by the optimizer.
	GradW []float32
	GradC []float32

	// Forward-pass caches reused by Backward.
	batch     int
	input     []float32 // [batch * Inputs]
	slotA     []float32 // [batch * Gates]
	slotB     []float32 // [batch * Gates]
	connProbs []float32 // [Inputs * Gates * 2]
	gateProbs []float32 // [NumGateFuncs * Gates]
}

// Network is an ordered stack of GateLayers followed by a grouping step that
// sums contiguous blocks of the last layer's outputs into category scores.
type Network struct {
	Layers []*GateLayer

	InputSize          int
	Categories         int
	OutputsPerCategory int
	Architecture       []int
	Seed               int64
}

// Split is one dataset partition, fully resident in memory.
type Split struct {
	Inputs  []float32 // [Samples * InputSize]
	Labels  []float32 // [Samples * Categories], one-hot rows
	Samples int
}

// Dataset holds the three standard splits plus their shared dimensions.
type Dataset struct {
	Train Split
	Val   Split
	Test  Split

	InputSize  int
	Categories int
}
