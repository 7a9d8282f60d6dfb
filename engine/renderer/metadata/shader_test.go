package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const viewProperties = `
#ifdef QQ3D_SHADER_META
/*{
   "uniforms": [ { "type": "mat4", "name": "qt_viewProjectionMatrix" },
                 { "type": "vec2", "name": "qt_cameraProperties", "condition": "QSSG_ENABLE_SSAO" },
                 { "type": "vec3", "name": "qt_cameraPosition", "condition": "!SSAO_CUSTOM_MATERIAL_GLSLLIB" },
                 { "type": "sampler2D", "name": "qt_aoTexture" },
                 { "name": "missingType" }
   ]
}*/
#endif // QQ3D_SHADER_META

vec3 viewPosition() { return qt_cameraPosition; }

#ifdef QQ3D_SHADER_META
/*{
   "inputs": { "type": "vec3", "name": "qt_varNormal", "stage": "fragment" },
   "outputs": [ { "type": "vec3", "name": "qt_varNormal", "stage": "vertex" },
                { "type": "vec2", "name": "qt_varUV", "stage": "compute" } ]
}*/
#endif
`

func TestParseShaderMetaData(t *testing.T) {
	meta := ParseShaderMetaData([]byte(viewProperties))

	require.Len(t, meta.Uniforms, 4)
	assert.Equal(t, MetaUniform{Type: "mat4", Name: "qt_viewProjectionMatrix"}, meta.Uniforms[0])
	assert.Equal(t, MetaUniform{Type: "vec2", Name: "qt_cameraProperties", Condition: ConditionRegular, ConditionName: "QSSG_ENABLE_SSAO"}, meta.Uniforms[1])
	assert.Equal(t, MetaUniform{Type: "vec3", Name: "qt_cameraPosition", Condition: ConditionNegated, ConditionName: "SSAO_CUSTOM_MATERIAL_GLSLLIB"}, meta.Uniforms[2])
	assert.Equal(t, "sampler2D", meta.Uniforms[3].Type)

	require.Len(t, meta.Inputs, 1)
	assert.Equal(t, MetaInOut{Type: "vec3", Name: "qt_varNormal", Stage: ShaderStageFragment}, meta.Inputs[0])

	require.Len(t, meta.Outputs, 2)
	assert.Equal(t, ShaderStageVertex, meta.Outputs[0].Stage)
	// unknown stages fall back to vertex
	assert.Equal(t, ShaderStageVertex, meta.Outputs[1].Stage)
}

func TestParseShaderMetaDataMalformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"no block", "void main() {}"},
		{"too small", "#ifdef QQ3D_SHADER_META\n/*{}*/\n#endif"},
		{"missing prefix", "#ifdef QQ3D_SHADER_META\n{\"inputs\": []}*/ \n#endif"},
		{"missing suffix", "#ifdef QQ3D_SHADER_META\n/*{\"inputs\": []} \n#endif"},
		{"not terminated", "#ifdef QQ3D_SHADER_META\n/*{\"inputs\": []}*/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := ParseShaderMetaData([]byte(tt.src))
			assert.Empty(t, meta.Uniforms)
			assert.Empty(t, meta.Inputs)
			assert.Empty(t, meta.Outputs)
		})
	}
}

func TestConditionFromString(t *testing.T) {
	c, n := ConditionFromString("")
	assert.Equal(t, ConditionNone, c)
	assert.Empty(t, n)

	c, n = ConditionFromString("!FOO")
	assert.Equal(t, ConditionNegated, c)
	assert.Equal(t, "FOO", n)

	c, n = ConditionFromString("FOO")
	assert.Equal(t, ConditionRegular, c)
	assert.Equal(t, "FOO", n)
}

func TestShaderStageFlags(t *testing.T) {
	f := StageFlags(ShaderStageFragment, ShaderStageVertex)
	assert.True(t, f.Has(ShaderStageVertex))
	assert.False(t, f.Has(ShaderStageGeometry))
	assert.Equal(t, []ShaderStage{ShaderStageVertex, ShaderStageFragment}, f.Stages())
	assert.Equal(t, "vertex|fragment", f.String())

	f.Add(ShaderStageTessEval)
	assert.Equal(t, []ShaderStage{ShaderStageVertex, ShaderStageTessEval, ShaderStageFragment}, f.Stages())

	s, err := ParseShaderStage("frag")
	require.NoError(t, err)
	assert.Equal(t, ShaderStageFragment, s)
	s, err = ParseShaderStage("TessControl")
	require.NoError(t, err)
	assert.Equal(t, ShaderStageTessControl, s)
	_, err = ParseShaderStage("compute")
	assert.Error(t, err)
}

func TestProgramFlags(t *testing.T) {
	var p ProgramFlags
	assert.False(t, p.IsSet(ProgramFlagTessellationEnabled))
	p.Set(ProgramFlagGeometryShaderEnabled)
	assert.True(t, p.IsSet(ProgramFlagGeometryShaderEnabled))
	assert.False(t, p.IsSet(ProgramFlagTessellationEnabled))
}
