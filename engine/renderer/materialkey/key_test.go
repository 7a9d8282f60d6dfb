package materialkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
)

func TestPropertyOffsets(t *testing.T) {
	p := NewProperties()
	seen := make(map[string]bool)
	var next uint32
	for _, prop := range p.all {
		assert.False(t, seen[prop.Name()], prop.Name())
		seen[prop.Name()] = true

		var offset uint32
		switch v := prop.(type) {
		case *Boolean:
			offset = v.offset
		case *Unsigned:
			offset = v.offset
		case *TextureChannel:
			offset = v.offset
		}
		assert.GreaterOrEqual(t, offset, next, prop.Name())
		assert.LessOrEqual(t, offset%32+prop.bitWidth(), uint32(32), prop.Name())
		next = offset + prop.bitWidth()
	}
}

func TestKeyValues(t *testing.T) {
	p := NewProperties()
	k := NewKey(features.Set{})

	p.HasLighting.Set(&k, true)
	p.LightCount.Set(&k, 3)
	p.AlphaMode.Set(&k, 2)
	p.ImageMaps[BaseColorMap].Set(&k, true)
	p.TextureChannels[RoughnessChannel].SetChannel(&k, ChannelG)

	assert.True(t, p.HasLighting.Get(&k))
	assert.False(t, p.HasIbl.Get(&k))
	assert.Equal(t, uint32(3), p.LightCount.Get(&k))
	assert.Equal(t, uint32(2), p.AlphaMode.Get(&k))
	assert.True(t, p.ImageMaps[BaseColorMap].Get(&k))
	assert.False(t, p.ImageMaps[DiffuseMap].Get(&k))
	assert.Equal(t, ChannelG, p.TextureChannels[RoughnessChannel].Channel(&k))

	// values wider than the field are truncated without touching neighbours
	p.LightCount.Set(&k, 0x1f)
	assert.Equal(t, uint32(0xf), p.LightCount.Get(&k))
	assert.True(t, p.HasLighting.Get(&k))
	assert.False(t, p.SpecularEnabled.Get(&k))

	p.HasLighting.Set(&k, false)
	assert.False(t, p.HasLighting.Get(&k))
}

func TestKeyString(t *testing.T) {
	p := NewProperties()
	k := NewKey(features.Set{})
	p.HasIbl.Set(&k, true)
	p.LightCount.Set(&k, 2)
	p.ImageMaps[NormalMap].Set(&k, true)
	p.TextureChannels[OcclusionChannel].SetChannel(&k, ChannelA)
	p.Skinning.Set(&k, true)

	assert.Equal(t, "hasIbl=true;lightCount=2;normalMap=true;"+
		"opacityMap_channel=R;roughnessMap_channel=R;metalnessMap_channel=R;occlusionMap_channel=A;"+
		"alphaMode=0;skinning=true", k.ToString(p))
	assert.Equal(t, []byte(k.ToString(p)), k.Identity(p))
}

func TestFromString(t *testing.T) {
	p := NewProperties()
	var f features.Set
	f.Set(features.Ssao, true)

	k := NewKey(f)
	p.HasLighting.Set(&k, true)
	p.VertexColorsEnabled.Set(&k, true)
	p.LightCount.Set(&k, 7)
	p.TextureChannels[MetalnessChannel].SetChannel(&k, ChannelB)
	p.DepthPass.Set(&k, true)

	parsed, err := FromString(k.ToString(p), p, f)
	require.NoError(t, err)
	assert.True(t, k.Equal(&parsed))
	assert.Equal(t, k.Hash(), parsed.Hash())

	other, err := FromString(k.ToString(p), p, features.Set{})
	require.NoError(t, err)
	assert.False(t, k.Equal(&other))

	empty, err := FromString("", p, f)
	require.NoError(t, err)
	assert.False(t, p.HasLighting.Get(&empty))
	assert.Equal(t, "lightCount=0;opacityMap_channel=R;roughnessMap_channel=R;metalnessMap_channel=R;occlusionMap_channel=R;alphaMode=0",
		empty.ToString(p))

	unknown, err := FromString("hasLighting=true;futureFlag=true", p, f)
	require.NoError(t, err)
	assert.True(t, p.HasLighting.Get(&unknown))
}

func TestFromStringErrors(t *testing.T) {
	p := NewProperties()
	tests := []struct {
		name string
		in   string
	}{
		{"no value", "hasLighting"},
		{"bad boolean", "hasLighting=yes"},
		{"bad unsigned", "lightCount=-1"},
		{"bad channel", "opacityMap_channel=X"},
		{"long channel", "opacityMap_channel=RG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromString(tt.in, p, features.Set{})
			assert.ErrorIs(t, err, core.ErrInvalidMaterialKey)
		})
	}
}

func TestKeyBytes(t *testing.T) {
	p := NewProperties()
	k := NewKey(features.Set{})
	p.SpecularEnabled.Set(&k, true)
	p.AlphaMode.Set(&k, 1)

	b := k.Bytes()
	require.Len(t, b, DataWords*4)
	back, err := FromBytes(b, features.Set{})
	require.NoError(t, err)
	assert.True(t, k.Equal(&back))

	_, err = FromBytes(b[:3], features.Set{})
	assert.ErrorIs(t, err, core.ErrInvalidMaterialKey)
}
