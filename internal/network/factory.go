package network

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/born-ml/seqnet/internal/serialization"
)

// CreateFromReader reads one complete layer, header first, and returns it.
//
// The type recorded in the header selects the concrete layer, which then
// reads its own fields. Composites recurse into their children.
func CreateFromReader(r *serialization.Reader, swap bool) (Network, error) {
	tag, err := r.Int8()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read layer type")
	}
	typ := Type(tag)
	if typ == TypeNone {
		typeName, err := r.String(swap)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read layer type name")
		}
		var ok bool
		if typ, ok = ParseType(typeName); !ok {
			return nil, errors.Wrapf(ErrUnknownType, "%q", typeName)
		}
	} else if typ < 0 || typ >= numTypes {
		return nil, errors.Wrapf(ErrUnknownType, "tag %d", tag)
	}

	var hdr layer
	if err := hdr.deserializeHeader(r, swap); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s header", typ)
	}

	var n Network
	switch typ {
	case TypeConvolve:
		n = NewConvolve(hdr.name, hdr.ni, 0, 0)
	case TypeParallel:
		n = NewParallel(hdr.name)
	case TypeSeries:
		n = NewSeries(hdr.name)
	case TypeLogistic, TypeTanh, TypeRelu, TypeLinear:
		n = newFullyConnectedShell(hdr.name, hdr.ni, hdr.no, typ)
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%s cannot be constructed", typ)
	}

	b := n.base()
	b.training = hdr.training
	b.needsBackprop = hdr.needsBackprop
	b.flags = hdr.flags
	b.numWeights = hdr.numWeights

	if err := n.DeSerialize(r, swap); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s %q", typ, hdr.name)
	}
	return n, nil
}

// deserializeHeader reads the header fields that follow the type.
func (l *layer) deserializeHeader(r *serialization.Reader, swap bool) error {
	training, err := r.Int8()
	if err != nil {
		return err
	}
	needsBackprop, err := r.Int8()
	if err != nil {
		return err
	}
	flags, err := r.Int32(swap)
	if err != nil {
		return err
	}
	var sizes [3]int32
	for i := range sizes {
		if sizes[i], err = r.Int32(swap); err != nil {
			return err
		}
		if sizes[i] < 0 {
			return errors.Wrapf(ErrShapeMismatch, "negative size %d", sizes[i])
		}
	}
	name, err := r.String(swap)
	if err != nil {
		return err
	}

	l.training = TrainingState(training)
	l.needsBackprop = needsBackprop != 0
	l.flags = Flags(flags)
	l.ni = int(sizes[0])
	l.no = int(sizes[1])
	l.numWeights = int(sizes[2])
	l.name = name
	return nil
}

// Marshal serializes n in the platform's native byte order.
func Marshal(n Network) ([]byte, error) {
	return MarshalOrder(n, binary.NativeEndian)
}

// MarshalOrder serializes n in the given byte order.
func MarshalOrder(n Network, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	if err := n.Serialize(serialization.NewWriterOrder(&buf, order)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal reads a network serialized by Marshal. swap must be true when
// data was written in the opposite of the native byte order.
func Unmarshal(data []byte, swap bool) (Network, error) {
	return CreateFromReader(serialization.NewReader(bytes.NewReader(data)), swap)
}
