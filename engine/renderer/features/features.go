package features

import (
	"fmt"
	"strings"
)

/**
 * @brief A single optional shader capability. The low byte of each literal holds
 * its stable table index, the remaining bits hold the flag itself.
 */
type Feature uint32

const IndexMask Feature = 0xff

// Order matters: baked collections store feature bits by index.
const (
	LightProbe            Feature = (1 << 8) | 0
	IblOrientation        Feature = (1 << 9) | 1
	Ssm                   Feature = (1 << 10) | 2
	Ssao                  Feature = (1 << 11) | 3
	DepthPass             Feature = (1 << 12) | 4
	OrthoShadowPass       Feature = (1 << 13) | 5
	CubeShadowPass        Feature = (1 << 14) | 6
	PerspectiveShadowPass Feature = (1 << 15) | 7
	LinearTonemapping     Feature = (1 << 16) | 8
	AcesTonemapping       Feature = (1 << 17) | 9
	HejlDawsonTonemapping Feature = (1 << 18) | 10
	FilmicTonemapping     Feature = (1 << 19) | 11
	RGBELightProbe        Feature = (1 << 20) | 12
	OpaqueDepthPrePass    Feature = (1 << 21) | 13
	ReflectionProbe       Feature = (1 << 22) | 14
	ReduceMaxNumLights    Feature = (1 << 23) | 15
	Lightmap              Feature = (1 << 24) | 16
	DisableMultiView      Feature = (1 << 25) | 17
	ForceIblExposure      Feature = (1 << 26) | 18
	LastFeature           Feature = (1 << 27) | 19
)

// Count is the number of real features, LastFeature excluded.
const Count = int(LastFeature & IndexMask)

var defineNames = [...]string{
	"QSSG_ENABLE_LIGHT_PROBE",
	"QSSG_ENABLE_IBL_ORIENTATION",
	"QSSG_ENABLE_SSM",
	"QSSG_ENABLE_SSAO",
	"QSSG_ENABLE_DEPTH_PASS",
	"QSSG_ENABLE_ORTHO_SHADOW_PASS",
	"QSSG_ENABLE_CUBE_SHADOW_PASS",
	"QSSG_ENABLE_PERSPECTIVE_SHADOW_PASS",
	"QSSG_ENABLE_LINEAR_TONEMAPPING",
	"QSSG_ENABLE_ACES_TONEMAPPING",
	"QSSG_ENABLE_HEJLDAWSON_TONEMAPPING",
	"QSSG_ENABLE_FILMIC_TONEMAPPING",
	"QSSG_ENABLE_RGBE_LIGHT_PROBE",
	"QSSG_ENABLE_OPAQUE_DEPTH_PRE_PASS",
	"QSSG_ENABLE_REFLECTION_PROBE",
	"QSSG_REDUCE_MAX_NUM_LIGHTS",
	"QSSG_ENABLE_LIGHTMAP",
	"QSSG_DISABLE_MULTIVIEW",
	"QSSG_FORCE_IBL_EXPOSURE",
}

var featureNames = [...]string{
	"LightProbe",
	"IblOrientation",
	"Ssm",
	"Ssao",
	"DepthPass",
	"OrthoShadowPass",
	"CubeShadowPass",
	"PerspectiveShadowPass",
	"LinearTonemapping",
	"AcesTonemapping",
	"HejlDawsonTonemapping",
	"FilmicTonemapping",
	"RGBELightProbe",
	"OpaqueDepthPrePass",
	"ReflectionProbe",
	"ReduceMaxNumLights",
	"Lightmap",
	"DisableMultiView",
	"ForceIblExposure",
}

// both tables must have exactly Count entries
var (
	_ [Count - len(defineNames)]struct{}
	_ [len(defineNames) - Count]struct{}
	_ [Count - len(featureNames)]struct{}
	_ [len(featureNames) - Count]struct{}
)

var all = [...]Feature{
	LightProbe, IblOrientation, Ssm, Ssao, DepthPass, OrthoShadowPass,
	CubeShadowPass, PerspectiveShadowPass, LinearTonemapping, AcesTonemapping,
	HejlDawsonTonemapping, FilmicTonemapping, RGBELightProbe, OpaqueDepthPrePass,
	ReflectionProbe, ReduceMaxNumLights, Lightmap, DisableMultiView, ForceIblExposure,
}

var (
	_ [Count - len(all)]struct{}
	_ [len(all) - Count]struct{}
)

// All returns every feature in index order.
func All() []Feature {
	out := make([]Feature, len(all))
	copy(out, all[:])
	return out
}

func (f Feature) Index() int {
	return int(f & IndexMask)
}

func (f Feature) flag() uint32 {
	return uint32(f &^ IndexMask)
}

func (f Feature) String() string {
	if i := f.Index(); i < Count {
		return featureNames[i]
	}
	return "LastFeature"
}

// Parse accepts either the feature name or its define, "Ssao" or "QSSG_ENABLE_SSAO".
func Parse(name string) (Feature, error) {
	for i, f := range all {
		if featureNames[i] == name || defineNames[i] == name {
			return f, nil
		}
	}
	return LastFeature, fmt.Errorf("unknown shader feature %q", name)
}

// DefineString returns the preprocessor symbol of f, empty for LastFeature.
func DefineString(f Feature) string {
	if i := f.Index(); i < Count {
		return defineNames[i]
	}
	return ""
}

/**
 * @brief The bit vector of enabled features for one shader variant.
 * The zero value has every feature disabled.
 */
type Set struct {
	flags uint32
}

func (s *Set) Set(f Feature, on bool) {
	if on {
		s.flags |= f.flag()
	} else {
		s.flags &^= f.flag()
	}
}

func (s Set) IsSet(f Feature) bool {
	return s.flags&f.flag() == f.flag() && f.flag() != 0
}

// DisableTonemapping clears every tonemapping mode and the forced IBL exposure.
func (s *Set) DisableTonemapping() {
	s.Set(LinearTonemapping, false)
	s.Set(AcesTonemapping, false)
	s.Set(HejlDawsonTonemapping, false)
	s.Set(FilmicTonemapping, false)
	s.Set(ForceIblExposure, false)
}

// Hash mixes the flag bits; index bits never take part.
func (s Set) Hash() uint64 {
	h := uint64(s.flags &^ uint32(IndexMask))
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// Bits returns the flags with bit i standing for the feature of index i.
func (s Set) Bits() uint32 {
	return s.flags >> 8
}

func FromBits(bits uint32) Set {
	mask := uint32(1)<<Count - 1
	return Set{flags: (bits & mask) << 8}
}

func (s Set) Equal(other Set) bool {
	return s.flags == other.flags
}

func (s Set) String() string {
	var names []string
	for _, f := range all {
		if s.IsSet(f) {
			names = append(names, f.String())
		}
	}
	return strings.Join(names, ",")
}
