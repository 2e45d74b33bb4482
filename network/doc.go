// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package network provides composable layers for sequence recognition.
//
// # Overview
//
// This package contains:
//   - Leaves: Convolve, FullyConnected (Logistic, Tanh, Relu, Linear)
//   - Composites: Series, Parallel
//   - Buffers: NetworkIO, StrideMap, Scratch
//   - Persistence: Save, Load, Marshal, Unmarshal
//
// # Basic Usage
//
//	import "github.com/born-ml/seqnet/network"
//
//	func main() {
//	    net := network.NewSeries("root")
//	    net.AddToStack(network.NewConvolve("conv", 2, 1, 0))
//	    net.AddToStack(network.NewFullyConnected("out", 6, 4, network.TypeTanh))
//	    net.InitWeights(0.1, network.NewRand(network.DefaultSeed))
//
//	    input := network.FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
//	    var output network.NetworkIO
//	    net.Forward(false, input, nil, network.NewScratch(), &output)
//	}
//
// # Layer ids
//
// EnumerateLayers names every leaf by its colon-separated path of child
// indices, e.g. "1:0". GetLayer and LayerLearningRatePtr accept those ids and
// return nil for anything else.
package network
