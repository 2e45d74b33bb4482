package network

import "github.com/pkg/errors"

// Common errors.
var (
	ErrUnknownType   = errors.New("unknown network type")
	ErrShapeMismatch = errors.New("serialized shape does not match layer")
)
