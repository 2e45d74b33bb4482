package network

import (
	"bytes"
	"maps"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/seqnet/internal/serialization"
)

// MetadataSpec is the metadata key holding the root layer's Spec string.
const MetadataSpec = "spec"

// Save writes n to path as a model file in the native byte order.
func Save(path string, n Network, metadata map[string]string) error {
	return SaveWithOptions(path, n, metadata, serialization.DefaultWriteOptions())
}

// SaveWithOptions writes n to path as a model file using opts.
func SaveWithOptions(path string, n Network, metadata map[string]string, opts serialization.WriteOptions) error {
	if opts.Order == nil {
		opts = serialization.DefaultWriteOptions()
	}
	var payload bytes.Buffer
	if err := n.Serialize(serialization.NewWriterOrder(&payload, opts.Order)); err != nil {
		return errors.Wrapf(err, "failed to serialize %q", n.Name())
	}
	return serialization.SaveFile(path, NewHeader(n, metadata), payload.Bytes(), opts)
}

// NewHeader describes n for a model file. metadata is copied.
func NewHeader(n Network, metadata map[string]string) serialization.Header {
	md := make(map[string]string, len(metadata)+1)
	maps.Copy(md, metadata)
	md[MetadataSpec] = n.Spec()
	return serialization.Header{
		Name:       n.Name(),
		RootType:   n.Type().String(),
		NumWeights: n.NumWeights(),
		CreatedAt:  time.Now().UTC(),
		Metadata:   md,
	}
}

// Load reads a model file written by Save.
func Load(path string) (Network, *serialization.Header, error) {
	m, err := serialization.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	n, err := FromModel(m)
	if err != nil {
		return nil, nil, err
	}
	return n, &m.Header, nil
}

// FromModel decodes the layer tree of a model file and checks it against the
// file header.
func FromModel(m *serialization.Model) (Network, error) {
	n, err := CreateFromReader(m.PayloadReader(), m.Swap)
	if err != nil {
		return nil, err
	}
	if n.Type().String() != m.Header.RootType || n.Name() != m.Header.Name {
		return nil, errors.Wrapf(ErrShapeMismatch, "header describes %s %q, payload holds %s %q",
			m.Header.RootType, m.Header.Name, n.Type(), n.Name())
	}
	return n, nil
}
