// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"github.com/born-ml/seqnet/internal/network"
	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/scratch"
	"github.com/born-ml/seqnet/internal/serialization"
)

// Network is the capability set shared by every layer.
type Network = network.Network

// Type identifies the kind of a layer.
type Type = network.Type

// Layer kinds.
const (
	TypeConvolve = network.TypeConvolve
	TypeParallel = network.TypeParallel
	TypeSeries   = network.TypeSeries
	TypeLogistic = network.TypeLogistic
	TypeTanh     = network.TypeTanh
	TypeRelu     = network.TypeRelu
	TypeLinear   = network.TypeLinear
)

// TrainingState controls whether a layer learns.
type TrainingState = network.TrainingState

// Training states.
const (
	TrainingDisabled    = network.TrainingDisabled
	TrainingEnabled     = network.TrainingEnabled
	TrainingTempDisable = network.TrainingTempDisable
	TrainingReEnable    = network.TrainingReEnable
)

// Flags is a bitset of per-layer options.
type Flags = network.Flags

// FlagLayerSpecificLR gives each child of a composite its own learning rate.
const FlagLayerSpecificLR = network.FlagLayerSpecificLR

// Alternators counts weight updates that kept or flipped sign.
type Alternators = network.Alternators

// Errors returned when decoding a layer stream.
var (
	ErrUnknownType   = network.ErrUnknownType
	ErrShapeMismatch = network.ErrShapeMismatch
)

// ParseType returns the type with the given persisted name.
func ParseType(name string) (Type, bool) {
	return network.ParseType(name)
}

// Layers

// Convolve stacks the neighborhood of every time-step.
type Convolve = network.Convolve

// NewConvolve creates a Convolve over ni features with a
// (2·halfX+1) × (2·halfY+1) window.
//
// Example:
//
//	conv := network.NewConvolve("conv", 16, 1, 1) // 16 -> 144 features
func NewConvolve(name string, ni, halfX, halfY int) *Convolve {
	return network.NewConvolve(name, ni, halfX, halfY)
}

// FullyConnected maps every time-step through y = act(W·[x; 1]).
type FullyConnected = network.FullyConnected

// NewFullyConnected creates a fully connected layer. typ selects the
// activation and must be TypeLogistic, TypeTanh, TypeRelu or TypeLinear.
func NewFullyConnected(name string, ni, no int, typ Type) *FullyConnected {
	return network.NewFullyConnected(name, ni, no, typ)
}

// Series is a pipeline of layers.
type Series = network.Series

// NewSeries creates an empty Series.
func NewSeries(name string) *Series {
	return network.NewSeries(name)
}

// Parallel runs layers side by side and concatenates their outputs.
type Parallel = network.Parallel

// NewParallel creates an empty Parallel.
func NewParallel(name string) *Parallel {
	return network.NewParallel(name)
}

// Buffers

// NetworkIO is the activation and delta buffer exchanged between layers.
type NetworkIO = networkio.NetworkIO

// StrideMap describes the layout of the time-steps of a NetworkIO.
type StrideMap = networkio.StrideMap

// Size is the height and width of one batch item.
type Size = networkio.Size

// TransposedArray is a feature-major copy of a NetworkIO.
type TransposedArray = networkio.TransposedArray

// NewNetworkIO creates a zeroed buffer over m with depth features.
func NewNetworkIO(m StrideMap, depth int) *NetworkIO {
	return networkio.New(m, depth)
}

// FromRows creates a 1-D sequence with one time-step per row.
func FromRows(rows [][]float64) *NetworkIO {
	return networkio.FromRows(rows)
}

// NewStrideMap creates a map for batch items sharing one height and width.
func NewStrideMap(batch, height, width int) StrideMap {
	return networkio.NewStrideMap(batch, height, width)
}

// NewSequenceStrideMap creates the map of a single sequence of length width.
func NewSequenceStrideMap(width int) StrideMap {
	return networkio.NewSequenceStrideMap(width)
}

// NewVariableStrideMap creates a map for batch items of differing sizes.
func NewVariableStrideMap(sizes []Size) StrideMap {
	return networkio.NewVariableStrideMap(sizes)
}

// Scratch is a reusable arena of temporary buffers.
type Scratch = scratch.Scratch

// NewScratch creates an empty arena.
func NewScratch() *Scratch {
	return scratch.New()
}

// Rand is the deterministic generator lent to layers.
type Rand = random.Rand

// DefaultSeed is the conventional seed for reproducible runs.
const DefaultSeed = random.DefaultSeed

// NewRand creates a Rand seeded with seed.
func NewRand(seed int64) *Rand {
	return random.New(seed)
}

// Persistence

// Header describes a model file.
type Header = serialization.Header

// WriteOptions configures SaveWithOptions.
type WriteOptions = serialization.WriteOptions

// Save writes n to path as a model file.
func Save(path string, n Network, metadata map[string]string) error {
	return network.Save(path, n, metadata)
}

// SaveWithOptions writes n to path as a model file using opts.
func SaveWithOptions(path string, n Network, metadata map[string]string, opts WriteOptions) error {
	return network.SaveWithOptions(path, n, metadata, opts)
}

// Load reads a model file and returns the root layer and the file header.
//
// Example:
//
//	net, header, err := network.Load("model.sqnt")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(header.RootType, net.Spec())
func Load(path string) (Network, *Header, error) {
	return network.Load(path)
}

// Marshal serializes n as a layer stream in native byte order.
func Marshal(n Network) ([]byte, error) {
	return network.Marshal(n)
}

// Unmarshal decodes a layer stream. swap must be true when data was written
// in the opposite byte order.
func Unmarshal(data []byte, swap bool) (Network, error) {
	return network.Unmarshal(data, swap)
}
