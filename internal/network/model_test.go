package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/random"
	"github.com/born-ml/seqnet/internal/serialization"
)

func TestModel_SaveLoad(t *testing.T) {
	root := buildTree()
	root.InitWeights(0.2, random.New(6))
	path := filepath.Join(t.TempDir(), "model.sqnt")

	require.NoError(t, Save(path, root, map[string]string{"author": "test"}))
	n, header, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "root", header.Name)
	assert.Equal(t, "Series", header.RootType)
	assert.Equal(t, 15, header.NumWeights)
	assert.Equal(t, "test", header.Metadata["author"])
	assert.Equal(t, root.Spec(), header.Metadata[MetadataSpec])

	want, err := Marshal(root)
	require.NoError(t, err)
	got, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestModel_LoadOppositeByteOrder(t *testing.T) {
	root := buildTree()
	root.InitWeights(0.2, random.New(6))
	path := filepath.Join(t.TempDir(), "model.sqnt")

	opts := serialization.WriteOptions{Order: opposite()}
	require.NoError(t, SaveWithOptions(path, root, nil, opts))
	n, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, root.Spec(), n.Spec())
	assert.Equal(t, root.EnumerateLayers("", nil), n.(*Series).EnumerateLayers("", nil))
}

func TestModel_LoadCorrupted(t *testing.T) {
	root := buildTree()
	root.InitWeights(0.2, random.New(6))
	path := filepath.Join(t.TempDir(), "model.sqnt")
	require.NoError(t, Save(path, root, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, _, err = Load(path)
	assert.True(t, errors.Is(err, serialization.ErrChecksumMismatch), "got %v", err)

	_, _, err = Load(filepath.Join(t.TempDir(), "missing.sqnt"))
	assert.Error(t, err)
}

func TestModel_HeaderMismatch(t *testing.T) {
	root := buildTree()
	root.InitWeights(0.2, random.New(6))
	payload, err := Marshal(root)
	require.NoError(t, err)

	header := NewHeader(root, nil)
	header.Name = "other"
	_, err = FromModel(&serialization.Model{Header: header, Payload: payload})
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}
