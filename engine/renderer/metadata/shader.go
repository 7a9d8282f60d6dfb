package metadata

import (
	"fmt"
	"strings"
)

/** @brief Shader stages available in the system. */
type ShaderStage uint32

const (
	ShaderStageVertex      ShaderStage = 0x00000001
	ShaderStageTessControl ShaderStage = 0x00000002
	ShaderStageTessEval    ShaderStage = 0x00000004
	ShaderStageGeometry    ShaderStage = 0x00000008
	ShaderStageFragment    ShaderStage = 0x00000010
)

/** @brief Every stage in pipeline order. */
var pipelineStages = [...]ShaderStage{
	ShaderStageVertex,
	ShaderStageTessControl,
	ShaderStageTessEval,
	ShaderStageGeometry,
	ShaderStageFragment,
}

// PipelineStages returns the stages in the fixed pipeline order
// Vertex, TessControl, TessEval, Geometry, Fragment.
func PipelineStages() []ShaderStage {
	out := make([]ShaderStage, len(pipelineStages))
	copy(out, pipelineStages[:])
	return out
}

func (s ShaderStage) String() string {
	switch s {
	case ShaderStageVertex:
		return "vertex"
	case ShaderStageTessControl:
		return "tessControl"
	case ShaderStageTessEval:
		return "tessEval"
	case ShaderStageGeometry:
		return "geometry"
	case ShaderStageFragment:
		return "fragment"
	}
	return fmt.Sprintf("stage(%d)", uint32(s))
}

/** @brief The short stage name used by glslc and as a file extension. */
func (s ShaderStage) Extension() string {
	switch s {
	case ShaderStageVertex:
		return "vert"
	case ShaderStageTessControl:
		return "tesc"
	case ShaderStageTessEval:
		return "tese"
	case ShaderStageGeometry:
		return "geom"
	case ShaderStageFragment:
		return "frag"
	}
	return ""
}

// ParseShaderStage accepts both the String and the Extension form.
func ParseShaderStage(name string) (ShaderStage, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, s := range pipelineStages {
		if n == strings.ToLower(s.String()) || n == s.Extension() {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown shader stage %q", name)
}

/** @brief A set of shader stages. */
type ShaderStageFlags uint32

func StageFlags(stages ...ShaderStage) ShaderStageFlags {
	var f ShaderStageFlags
	for _, s := range stages {
		f |= ShaderStageFlags(s)
	}
	return f
}

func (f ShaderStageFlags) Has(s ShaderStage) bool {
	return f&ShaderStageFlags(s) != 0
}

func (f *ShaderStageFlags) Add(s ShaderStage) {
	*f |= ShaderStageFlags(s)
}

// Stages lists the stages in f in pipeline order.
func (f ShaderStageFlags) Stages() []ShaderStage {
	var out []ShaderStage
	for _, s := range pipelineStages {
		if f.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

func (f ShaderStageFlags) String() string {
	names := make([]string, 0, len(pipelineStages))
	for _, s := range f.Stages() {
		names = append(names, s.String())
	}
	return strings.Join(names, "|")
}

/**
 * @brief Fixed-function state a generated program needs from the pipeline,
 * accumulated by the stage generators.
 */
type ProgramFlags uint32

const (
	ProgramFlagTessellationEnabled ProgramFlags = 1 << iota
	ProgramFlagGeometryShaderEnabled
)

func (p ProgramFlags) IsSet(flag ProgramFlags) bool {
	return p&flag == flag
}

func (p *ProgramFlags) Set(flag ProgramFlags) {
	*p |= flag
}

/** @brief How a declaration is guarded by the preprocessor. */
type Condition int

const (
	/** @brief Declared unconditionally. */
	ConditionNone Condition = iota
	/** @brief Wrapped in #if NAME. */
	ConditionRegular
	/** @brief Wrapped in #if !NAME. */
	ConditionNegated
)

// ConditionFromString maps "" to none, "!X" to negated X and "X" to regular X.
func ConditionFromString(s string) (Condition, string) {
	switch {
	case s == "":
		return ConditionNone, ""
	case s[0] == '!':
		return ConditionNegated, s[1:]
	default:
		return ConditionRegular, s
	}
}
