package network

import (
	"encoding/binary"

	"github.com/born-ml/seqnet/internal/networkio"
	"github.com/born-ml/seqnet/internal/scratch"
)

// opposite returns the byte order that is not native to this platform.
func opposite() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func forward(n Network, input *networkio.NetworkIO) *networkio.NetworkIO {
	var output networkio.NetworkIO
	n.Forward(false, input, nil, scratch.New(), &output)
	return &output
}

func backward(n Network, deltas *networkio.NetworkIO) (*networkio.NetworkIO, bool) {
	var back networkio.NetworkIO
	ok := n.Backward(false, deltas, scratch.New(), &back)
	return &back, ok
}

func constantRows(width, depth int, v float64) [][]float64 {
	rows := make([][]float64, width)
	for t := range rows {
		rows[t] = make([]float64, depth)
		for i := range rows[t] {
			rows[t][i] = v
		}
	}
	return rows
}
