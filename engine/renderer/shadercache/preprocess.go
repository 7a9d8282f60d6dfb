package shadercache

import (
	"bytes"

	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const fragmentOutput = "layout(location = 0) out vec4 fragOutput;\n"

/**
 * Prefixes one stage with the version line, a name comment, a define for
 * every known feature, and the per-stage compatibility macros. The fragment
 * stage declares fragOutput unless the program is a depth pass.
 */
func addShaderPreprocessor(version string, key string, stage metadata.ShaderStage, f features.Set, src []byte) []byte {
	var b bytes.Buffer
	b.Grow(len(src) + 1024)

	b.WriteString(version)
	b.WriteByte('\n')
	if key != "" {
		b.WriteString("//Shader name -")
		b.WriteString(key)
		b.WriteByte('\n')
	}

	for _, feature := range features.All() {
		b.WriteString("#define ")
		b.WriteString(features.DefineString(feature))
		if f.IsSet(feature) {
			b.WriteString(" 1\n")
		} else {
			b.WriteString(" 0\n")
		}
	}

	b.WriteString("#define texture2D texture\n")

	switch stage {
	case metadata.ShaderStageTessControl:
		b.WriteString("#define TESSELLATION_CONTROL_SHADER 1\n")
		b.WriteString("#define TESSELLATION_EVALUATION_SHADER 0\n")
	case metadata.ShaderStageTessEval:
		b.WriteString("#define TESSELLATION_CONTROL_SHADER 0\n")
		b.WriteString("#define TESSELLATION_EVALUATION_SHADER 1\n")
	case metadata.ShaderStageFragment:
		if !f.IsSet(features.DepthPass) {
			b.WriteString(fragmentOutput)
		}
	}

	b.Write(src)
	return b.Bytes()
}
