package shadercache

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func sampleCollection() *Collection {
	c := NewCollection()
	c.Put(CollectionEntry{
		Key:      ContentKey([]byte("matA"), featureSet(features.Ssao)),
		Features: featureSet(features.Ssao),
		Flags:    metadata.ProgramFlagGeometryShaderEnabled,
		Stages: []StageBlob{
			{Stage: metadata.ShaderStageVertex, Code: []byte{1, 2, 3, 4}},
			{Stage: metadata.ShaderStageGeometry, Code: []byte{5, 6, 7, 8}},
			{Stage: metadata.ShaderStageFragment, Code: []byte{9, 10, 11, 12}},
		},
	})
	c.Put(CollectionEntry{
		Key: ContentKey([]byte("matB"), features.Set{}),
		Stages: []StageBlob{
			{Stage: metadata.ShaderStageVertex, Code: []byte{0, 0, 0, 0}},
		},
	})
	return c
}

func TestCollectionRoundTrip(t *testing.T) {
	c := sampleCollection()

	var buf bytes.Buffer
	n, err := c.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, CollectionMagic, binary.LittleEndian.Uint32(buf.Bytes()))

	got, err := ReadCollection(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, c.Keys(), got.Keys())

	for _, k := range c.Keys() {
		want, _ := c.Lookup(k)
		have, ok := got.Lookup(k)
		require.True(t, ok)
		assert.Equal(t, want.Flags, have.Flags)
		assert.True(t, want.Features.Equal(have.Features))
		assert.Equal(t, want.Stages, have.Stages)
	}

	// byte stable regardless of insertion order
	var again bytes.Buffer
	_, err = got.WriteTo(&again)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), again.Bytes())
}

func TestCollectionSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.qsbc")
	c := sampleCollection()
	require.NoError(t, c.Save(path))

	got, err := LoadCollection(path)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	_, err = LoadCollection(filepath.Join(t.TempDir(), "missing.qsbc"))
	assert.Error(t, err)
}

func TestReadCollectionRejectsBadInput(t *testing.T) {
	_, err := ReadCollection(bytes.NewReader(nil))
	assert.ErrorIs(t, err, core.ErrCollectionFormat)

	var bad bytes.Buffer
	binary.Write(&bad, binary.LittleEndian, [3]uint32{0xdeadbeef, CollectionVersion, 0})
	_, err = ReadCollection(&bad)
	assert.ErrorIs(t, err, core.ErrCollectionFormat)

	var future bytes.Buffer
	binary.Write(&future, binary.LittleEndian, [3]uint32{CollectionMagic, CollectionVersion + 1, 0})
	_, err = ReadCollection(&future)
	assert.ErrorIs(t, err, core.ErrCollectionVersion)

	var full bytes.Buffer
	_, err = sampleCollection().WriteTo(&full)
	require.NoError(t, err)
	_, err = ReadCollection(bytes.NewReader(full.Bytes()[:full.Len()-3]))
	assert.ErrorIs(t, err, core.ErrCollectionFormat)

	// a stage length far beyond the data must not be allocated up front
	for _, declared := range []uint32{0xfffffff0, MaxStageCodeSize} {
		var huge bytes.Buffer
		binary.Write(&huge, binary.LittleEndian, [3]uint32{CollectionMagic, CollectionVersion, 1})
		binary.Write(&huge, binary.LittleEndian, uint16(1))
		huge.WriteByte('k')
		binary.Write(&huge, binary.LittleEndian, [2]uint32{0, 0})
		huge.WriteByte(1)
		huge.WriteByte(byte(metadata.ShaderStageVertex))
		binary.Write(&huge, binary.LittleEndian, declared)
		huge.Write([]byte{0x03, 0x02, 0x23, 0x07})
		_, err = ReadCollection(&huge)
		assert.ErrorIs(t, err, core.ErrCollectionFormat, "declared %d", declared)
	}
}

func TestCollectionMerge(t *testing.T) {
	a := sampleCollection()
	b := NewCollection()
	b.Put(CollectionEntry{Key: "other"})
	b.Merge(a)
	assert.Equal(t, 3, b.Len())
}
