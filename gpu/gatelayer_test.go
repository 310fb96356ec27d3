package gpu

import (
	"strings"
	"testing"

	"github.com/openfluke/gatenet/nn"
)

func TestSequenceFromNetwork(t *testing.T) {
	network, err := nn.NewNetwork(4, []int{6, 4}, 2, 31)
	if err != nil {
		t.Fatal(err)
	}
	seq := SequenceFromNetwork(network, 8)

	if seq.BatchSize != 8 || len(seq.Layers) != 2 {
		t.Fatalf("sequence shape: batch %d, %d layers", seq.BatchSize, len(seq.Layers))
	}
	spec := seq.Layers[0].Spec
	if spec.Inputs != 4 || spec.Gates != 6 {
		t.Errorf("layer 0 spec %dx%d, want 4x6", spec.Inputs, spec.Gates)
	}
	if len(spec.Connections) != 4*6*2 || len(spec.GateWeights) != 16*6 {
		t.Errorf("layer 0 tensors %d/%d", len(spec.Connections), len(spec.GateWeights))
	}

	// Frozen weights are softmaxed distributions: each gate column sums to 1.
	for g := 0; g < 6; g++ {
		var sum float32
		for f := 0; f < 16; f++ {
			sum += spec.GateWeights[f*6+g]
		}
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("gate %d frozen weights sum to %v", g, sum)
		}
	}

	// Freezing a binarized network keeps the one-hot rows as-is.
	hardSeq := SequenceFromNetwork(nn.Binarize(network, 1), 8)
	for i, v := range hardSeq.Layers[0].Spec.GateWeights {
		if v != 0 && v != 1 {
			t.Fatalf("binarized frozen weight %d = %v", i, v)
		}
	}
}

func TestGenerateShader(t *testing.T) {
	l := &GateLayer{Spec: GateLayerSpec{Inputs: 12, Gates: 7}, BatchSize: 4}
	shader := l.generateShader()

	for _, want := range []string{
		"let n_gates = 7u;",
		"let n_in = 12u;",
		"array<f32, 16>",
		"@workgroup_size(256)",
	} {
		if !strings.Contains(shader, want) {
			t.Errorf("shader missing %q", want)
		}
	}
	if strings.Contains(shader, "%!") {
		t.Errorf("shader has a formatting artifact:\n%s", shader)
	}
	// The modulo for the gate index must survive the Sprintf escaping.
	if !strings.Contains(shader, "idx % n_gates") {
		t.Error("shader missing gate index modulo")
	}
}
