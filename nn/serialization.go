package nn

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is the persisted form of a trained network: architecture, seed,
// per-layer parameter tensors, and a derived connection summary for
// downstream inspection tooling. Serialization is a pure function of this
// value; loading reconstructs a soft network.
type Snapshot struct {
	Type    string `json:"type"`
	Version int    `json:"version"`

	InputSize    int   `json:"input_size"`
	Architecture []int `json:"architecture"`
	Categories   int   `json:"categories"`
	Seed         int64 `json:"seed"`

	Layers []SnapshotLayer `json:"layers"`
}

// SnapshotLayer carries one layer's parameters. W and C are base64-encoded
// JSON float arrays, the encoding the rest of the tooling already reads.
// ConnectionsA/B are the arg-max input index per gate for each slot; they
// are derived data and ignored on load.
type SnapshotLayer struct {
	Inputs int    `json:"inputs"`
	Gates  int    `json:"gates"`
	W      string `json:"w"`
	C      string `json:"c"`

	ConnectionsA []int `json:"connections_a"`
	ConnectionsB []int `json:"connections_b"`
}

const snapshotType = "gatenet"
const snapshotVersion = 1

func encodeFloats(v []float32) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal weights: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeFloats(s string, want int) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode weights: %w", err)
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if len(v) != want {
		return nil, fmt.Errorf("weight tensor has %d values, expected %d", len(v), want)
	}
	return v, nil
}

// Snapshot captures the network's current parameters.
func (n *Network) Snapshot() (*Snapshot, error) {
	connA, connB := n.Connections()
	s := &Snapshot{
		Type:         snapshotType,
		Version:      snapshotVersion,
		InputSize:    n.InputSize,
		Architecture: append([]int(nil), n.Architecture...),
		Categories:   n.Categories,
		Seed:         n.Seed,
		Layers:       make([]SnapshotLayer, 0, len(n.Layers)),
	}
	for i, layer := range n.Layers {
		w, err := encodeFloats(layer.W)
		if err != nil {
			return nil, err
		}
		c, err := encodeFloats(layer.C)
		if err != nil {
			return nil, err
		}
		s.Layers = append(s.Layers, SnapshotLayer{
			Inputs:       layer.Inputs,
			Gates:        layer.Gates,
			W:            w,
			C:            c,
			ConnectionsA: connA[i],
			ConnectionsB: connB[i],
		})
	}
	return s, nil
}

// Network reconstructs a soft network from a snapshot.
func (s *Snapshot) Network() (*Network, error) {
	if s.Type != snapshotType {
		return nil, fmt.Errorf("invalid snapshot type %q", s.Type)
	}
	n, err := NewNetwork(s.InputSize, s.Architecture, s.Categories, s.Seed)
	if err != nil {
		return nil, err
	}
	if len(s.Layers) != len(n.Layers) {
		return nil, fmt.Errorf("snapshot has %d layers, architecture implies %d", len(s.Layers), len(n.Layers))
	}
	for i, sl := range s.Layers {
		layer := n.Layers[i]
		if sl.Inputs != layer.Inputs || sl.Gates != layer.Gates {
			return nil, fmt.Errorf("layer %d shape mismatch: snapshot %dx%d, architecture %dx%d",
				i, sl.Inputs, sl.Gates, layer.Inputs, layer.Gates)
		}
		w, err := decodeFloats(sl.W, len(layer.W))
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		c, err := decodeFloats(sl.C, len(layer.C))
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		layer.W = w
		layer.C = c
	}
	return n, nil
}

// Save writes the snapshot as JSON.
func (s *Snapshot) Save(path string) error {
	data, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file written by Save.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &s, nil
}

// SnapshotFilename encodes the run's key results and hyperparameters into
// the artifact name. Downstream tooling globs result files by this pattern,
// so the layout is a contract:
//
//	20250225-140458_binTestAcc7911_seed982779_epochs100_3x300_b256_lr10.json
func SnapshotFilename(now time.Time, binTestAcc float64, seed int64, epochs int, architecture []int, batchSize int, learningRate float32) string {
	return fmt.Sprintf("%s_binTestAcc%d_seed%d_epochs%d_%dx%d_b%d_lr%.0f.json",
		now.Format("20060102-150405"),
		int(binTestAcc*10000+0.5),
		seed,
		epochs,
		len(architecture),
		architecture[0],
		batchSize,
		learningRate*1000)
}
