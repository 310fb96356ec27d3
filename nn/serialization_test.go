package nn

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"
)

func TestSnapshotRoundTrip(t *testing.T) {
	n, err := NewNetwork(6, []int{8, 4}, 2, 55)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := n.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Type != "gatenet" || snap.Version != 1 {
		t.Errorf("snapshot header %q v%d", snap.Type, snap.Version)
	}

	path := filepath.Join(t.TempDir(), "net.json")
	if err := snap.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	restored, err := loaded.Network()
	if err != nil {
		t.Fatal(err)
	}

	if restored.InputSize != n.InputSize || restored.Categories != n.Categories || restored.Seed != n.Seed {
		t.Errorf("restored header mismatch: %+v", restored)
	}
	for li := range n.Layers {
		for i := range n.Layers[li].W {
			if restored.Layers[li].W[i] != n.Layers[li].W[i] {
				t.Fatalf("layer %d W[%d] changed across round trip", li, i)
			}
		}
		for i := range n.Layers[li].C {
			if restored.Layers[li].C[i] != n.Layers[li].C[i] {
				t.Fatalf("layer %d C[%d] changed across round trip", li, i)
			}
		}
	}

	// Restored and original networks produce identical outputs.
	rng := rand.New(rand.NewSource(2))
	x := make([]float32, 3*n.InputSize)
	for i := range x {
		x[i] = rng.Float32()
	}
	a := n.Forward(x, 3)
	b := restored.Forward(x, 3)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("forward output %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSnapshotValidation(t *testing.T) {
	n, err := NewNetwork(4, []int{4}, 2, 9)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := n.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	bad := *snap
	bad.Type = "other"
	if _, err := bad.Network(); err == nil {
		t.Error("expected error for wrong snapshot type")
	}

	bad = *snap
	bad.Layers = append([]SnapshotLayer(nil), snap.Layers...)
	bad.Layers[0].W = "not base64!"
	if _, err := bad.Network(); err == nil {
		t.Error("expected error for corrupt weight encoding")
	}
}

func TestSnapshotConnections(t *testing.T) {
	n, err := NewNetwork(4, []int{3}, 3, 77)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := n.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	wantA, wantB := n.Connections()
	for g := 0; g < 3; g++ {
		if snap.Layers[0].ConnectionsA[g] != wantA[0][g] || snap.Layers[0].ConnectionsB[g] != wantB[0][g] {
			t.Errorf("gate %d: snapshot wiring (%d, %d), want (%d, %d)", g,
				snap.Layers[0].ConnectionsA[g], snap.Layers[0].ConnectionsB[g], wantA[0][g], wantB[0][g])
		}
	}
}

func TestSnapshotFilename(t *testing.T) {
	now := time.Date(2025, 2, 25, 14, 4, 58, 0, time.UTC)
	got := SnapshotFilename(now, 0.7911, 982779, 100, []int{300, 300, 300}, 256, 0.01)
	want := "20250225-140458_binTestAcc7911_seed982779_epochs100_3x300_b256_lr10.json"
	if got != want {
		t.Errorf("filename\n got %q\nwant %q", got, want)
	}
}
