package metadata

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/prism/engine/core"
)

const (
	ShaderMetaStart = "#ifdef QQ3D_SHADER_META"
	ShaderMetaEnd   = "#endif"

	// "/*{"inputs":[]}*/" is the smallest meaningful block
	minShaderMetaSize = 17
)

/** @brief A uniform or sampler declared by a shader-library snippet. */
type MetaUniform struct {
	Type          string
	Name          string
	Condition     Condition
	ConditionName string
}

/** @brief An interpolant declared by a shader-library snippet. */
type MetaInOut struct {
	Type  string
	Name  string
	Stage ShaderStage
}

type ShaderMetaData struct {
	Uniforms []MetaUniform
	Inputs   []MetaInOut
	Outputs  []MetaInOut
}

type metaEntry struct {
	Type      string `yaml:"type"`
	Name      string `yaml:"name"`
	Condition string `yaml:"condition"`
	Stage     string `yaml:"stage"`
}

type metaDocument struct {
	Uniforms yaml.Node `yaml:"uniforms"`
	Inputs   yaml.Node `yaml:"inputs"`
	Outputs  yaml.Node `yaml:"outputs"`
}

/**
 * @brief Scrapes every QQ3D_SHADER_META block out of the given shader text.
 * Malformed blocks are logged and stop the scan; whatever was collected before
 * them is returned.
 */
func ParseShaderMetaData(src []byte) ShaderMetaData {
	var result ShaderMetaData
	from := 0
	for from < len(src) {
		start := bytes.Index(src[from:], []byte(ShaderMetaStart))
		if start < 0 {
			break
		}
		start += from + len(ShaderMetaStart)
		end := bytes.Index(src[start:], []byte(ShaderMetaEnd))
		if end < 0 {
			break
		}
		end += start
		from = end + len(ShaderMetaEnd)

		if end-start < minShaderMetaSize {
			core.LogWarn("shader metadata section found, but content too small to be valid")
			break
		}
		block := bytes.TrimSpace(src[start:end])
		if !bytes.HasPrefix(block, []byte("/*{")) {
			core.LogWarn("shader metadata is missing the /*{ prefix")
			break
		}
		if !bytes.HasSuffix(block, []byte("}*/")) {
			core.LogWarn("shader metadata is missing the }*/ suffix")
			break
		}
		block = block[2 : len(block)-2]

		var doc metaDocument
		if err := yaml.Unmarshal(block, &doc); err != nil {
			core.LogWarn("shader metadata parse error: %s", err.Error())
			break
		}

		for _, e := range metaEntries(&doc.Uniforms, "uniform") {
			cond, name := ConditionFromString(e.Condition)
			result.Uniforms = append(result.Uniforms, MetaUniform{
				Type:          e.Type,
				Name:          e.Name,
				Condition:     cond,
				ConditionName: name,
			})
		}
		for _, e := range metaEntries(&doc.Inputs, "input variable") {
			result.Inputs = append(result.Inputs, MetaInOut{Type: e.Type, Name: e.Name, Stage: metaStage(e.Stage)})
		}
		for _, e := range metaEntries(&doc.Outputs, "output variable") {
			result.Outputs = append(result.Outputs, MetaInOut{Type: e.Type, Name: e.Name, Stage: metaStage(e.Stage)})
		}
	}
	return result
}

// metaEntries accepts either a list of objects or a single object.
func metaEntries(node *yaml.Node, what string) []metaEntry {
	var items []*yaml.Node
	switch node.Kind {
	case yaml.SequenceNode:
		items = node.Content
	case yaml.MappingNode:
		items = []*yaml.Node{node}
	default:
		return nil
	}

	out := make([]metaEntry, 0, len(items))
	for _, item := range items {
		if item.Kind != yaml.MappingNode {
			continue
		}
		var e metaEntry
		if err := item.Decode(&e); err != nil || e.Type == "" || e.Name == "" {
			core.LogWarn("invalid %s in shader metadata, skipping", what)
			continue
		}
		out = append(out, e)
	}
	return out
}

func metaStage(s string) ShaderStage {
	switch s {
	case "vertex":
		return ShaderStageVertex
	case "fragment":
		return ShaderStageFragment
	}
	core.LogWarn("unknown stage in shader metadata: %s, assuming vertex", s)
	return ShaderStageVertex
}
