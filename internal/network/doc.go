// Package network implements the composable layers of a sequence recognizer.
//
// Every layer satisfies the Network interface. Leaf layers (Convolve,
// FullyConnected) transform a NetworkIO; composite layers (Series, Parallel)
// own an ordered stack of children and combine them:
//
//	net := network.NewSeries("root")
//	net.AddToStack(network.NewConvolve("conv", 2, 1, 0))
//	par := network.NewParallel("heads")
//	par.AddToStack(network.NewFullyConnected("tanh", 6, 4, network.TypeTanh))
//	par.AddToStack(network.NewFullyConnected("relu", 6, 4, network.TypeRelu))
//	net.AddToStack(par)
//	net.InitWeights(0.1, random.New(42))
//
//	net.Forward(false, input, nil, s, output)
//	net.Backward(false, deltas, s, backDeltas)
//	net.Update(0.01, 0.9, 1)
//
// Misassembled graphs (a child whose input width does not match its place
// in the stack) panic. Serialization failures are returned as errors.
//
// Layers are not safe for concurrent use.
package network
