package nn

import (
	"math"
	"math/rand"
	"testing"
)

// corners are the four Boolean input points in (a, b) order.
var corners = [4][2]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}

// TestGateTruthTables verifies that every relaxed gate function reproduces
// its discrete truth table exactly at the Boolean corner points.
func TestGateTruthTables(t *testing.T) {
	truthTables := [NumGateFuncs][4]float32{
		GateFalse:   {0, 0, 0, 0},
		GateAnd:     {0, 0, 0, 1},
		GateAndNotB: {0, 0, 1, 0},
		GatePassA:   {0, 0, 1, 1},
		GateAndNotA: {0, 1, 0, 0},
		GatePassB:   {0, 1, 0, 1},
		GateXor:     {0, 1, 1, 0},
		GateOr:      {0, 1, 1, 1},
		GateNor:     {1, 0, 0, 0},
		GateXnor:    {1, 0, 0, 1},
		GateNotB:    {1, 0, 1, 0},
		GateImplBA:  {1, 0, 1, 1},
		GateNotA:    {1, 1, 0, 0},
		GateImplAB:  {1, 1, 0, 1},
		GateNand:    {1, 1, 1, 0},
		GateTrue:    {1, 1, 1, 1},
	}

	for f := 0; f < NumGateFuncs; f++ {
		for c, corner := range corners {
			got := gateValue(f, corner[0], corner[1])
			if got != truthTables[f][c] {
				t.Errorf("gate %d at (%v,%v): got %v, want %v",
					f, corner[0], corner[1], got, truthTables[f][c])
			}
		}
	}
}

// TestGateValueRange verifies the relaxations stay in [0,1] for inputs in
// the unit square.
func TestGateValueRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 200; trial++ {
		a := rng.Float32()
		b := rng.Float32()
		for f := 0; f < NumGateFuncs; f++ {
			v := gateValue(f, a, b)
			if v < -1e-6 || v > 1+1e-6 {
				t.Fatalf("gate %d at (%v,%v) out of range: %v", f, a, b, v)
			}
		}
	}
}

// TestGateGradients checks the analytic partials against central finite
// differences at random interior points.
func TestGateGradients(t *testing.T) {
	const eps = 1e-3
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 50; trial++ {
		a := 0.1 + 0.8*rng.Float32()
		b := 0.1 + 0.8*rng.Float32()
		for f := 0; f < NumGateFuncs; f++ {
			da, db := gateGrad(f, a, b)

			numDA := (gateValue(f, a+eps, b) - gateValue(f, a-eps, b)) / (2 * eps)
			numDB := (gateValue(f, a, b+eps) - gateValue(f, a, b-eps)) / (2 * eps)

			if math.Abs(float64(da-numDA)) > 1e-2 {
				t.Errorf("gate %d dA at (%v,%v): analytic %v, numeric %v", f, a, b, da, numDA)
			}
			if math.Abs(float64(db-numDB)) > 1e-2 {
				t.Errorf("gate %d dB at (%v,%v): analytic %v, numeric %v", f, a, b, db, numDB)
			}
		}
	}
}
