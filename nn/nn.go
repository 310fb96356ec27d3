// Package nn implements a classifier built from arrays of learnable
// two-input Boolean logic gates instead of weighted-sum neurons.
//
// Each gate unit computes a convex combination over the 16 possible
// two-input Boolean functions, with the two inputs themselves selected by a
// learned convex combination over the previous layer's outputs. Both
// selections are continuous relaxations (softmax over trainable logits), so
// the whole network is differentiable end to end and trains with ordinary
// gradient descent. After training, Binarize hardens every selection to its
// arg-max, yielding a discrete Boolean circuit for inference.
//
// Example usage:
//
//	network, _ := nn.NewNetwork(256, []int{1300, 1300, 1300}, 10, seed)
//
//	trainer := nn.NewTrainer(network, dataset, cfg)
//	trainer.Run()
//
//	circuit := nn.Binarize(network, 1)
//	loss, acc, _ := nn.Evaluate(circuit, dataset, "test", 256)
package nn
