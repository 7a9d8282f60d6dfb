package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineTableComplete(t *testing.T) {
	seen := map[string]bool{}
	for i, f := range All() {
		require.Equal(t, i, f.Index())
		name := DefineString(f)
		assert.NotEmpty(t, name, f.String())
		assert.False(t, seen[name], "duplicate define %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, Count)
	assert.Equal(t, 19, Count)
	assert.Empty(t, DefineString(LastFeature))
}

func TestStableIndices(t *testing.T) {
	assert.Equal(t, 0, LightProbe.Index())
	assert.Equal(t, 8, LinearTonemapping.Index())
	assert.Equal(t, 18, ForceIblExposure.Index())
	assert.Equal(t, "QSSG_ENABLE_ACES_TONEMAPPING", DefineString(AcesTonemapping))
}

func TestSetAndQuery(t *testing.T) {
	var s Set
	for _, f := range All() {
		assert.False(t, s.IsSet(f))
	}
	s.Set(Ssao, true)
	s.Set(Lightmap, true)
	assert.True(t, s.IsSet(Ssao))
	assert.True(t, s.IsSet(Lightmap))
	assert.False(t, s.IsSet(Ssm))

	s.Set(Ssao, false)
	assert.False(t, s.IsSet(Ssao))
	assert.True(t, s.IsSet(Lightmap))
	assert.Equal(t, "Lightmap", s.String())
}

func TestDisableTonemapping(t *testing.T) {
	var s Set
	s.Set(FilmicTonemapping, true)
	s.Set(ForceIblExposure, true)
	s.Set(LightProbe, true)
	s.Set(Ssao, true)

	s.DisableTonemapping()

	assert.False(t, s.IsSet(FilmicTonemapping))
	assert.False(t, s.IsSet(ForceIblExposure))
	assert.True(t, s.IsSet(LightProbe))
	assert.True(t, s.IsSet(Ssao))

	var want Set
	want.Set(LightProbe, true)
	want.Set(Ssao, true)
	assert.True(t, want.Equal(s))
}

func TestHashAndBits(t *testing.T) {
	var a, b Set
	a.Set(LightProbe, true)
	a.Set(AcesTonemapping, true)
	b.Set(LightProbe, true)
	b.Set(AcesTonemapping, true)
	assert.Equal(t, a.Hash(), b.Hash())

	b.Set(AcesTonemapping, false)
	b.Set(LinearTonemapping, true)
	assert.NotEqual(t, a.Hash(), b.Hash())

	bits := a.Bits()
	assert.Equal(t, uint32(1<<0|1<<9), bits)
	assert.True(t, FromBits(bits).Equal(a))

	// bits beyond the table are dropped
	assert.True(t, FromBits(1<<31).Equal(Set{}))
}

func TestParse(t *testing.T) {
	f, err := Parse("Ssao")
	require.NoError(t, err)
	assert.Equal(t, Ssao, f)

	f, err = Parse("QSSG_ENABLE_LIGHT_PROBE")
	require.NoError(t, err)
	assert.Equal(t, LightProbe, f)

	_, err = Parse("Bloom")
	assert.Error(t, err)
}
