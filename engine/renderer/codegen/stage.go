package codegen

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

type constantBufferParam struct {
	buffer string
	name   string
	typ    string
}

// stageState lives for one program build; Begin replaces it wholesale.
type stageState struct {
	enabledStages        metadata.ShaderStageFlags
	incoming             map[string]string
	outgoing             map[string]string
	includes             map[string]struct{}
	uniforms             map[string]string
	constantBuffers      map[string]string
	constantBufferParams []constantBufferParam
	addedFunctions       []string
	code                 bytes.Buffer
}

func newStageState(enabled metadata.ShaderStageFlags) *stageState {
	return &stageState{
		enabledStages:   enabled,
		incoming:        make(map[string]string),
		includes:        make(map[string]struct{}),
		uniforms:        make(map[string]string),
		constantBuffers: make(map[string]string),
	}
}

/**
 * @brief Accumulates declarations and code for one stage of a program.
 * The stage kind selects the few wording differences between stages.
 */
type StageGenerator struct {
	stage         metadata.ShaderStage
	rhiCompatible bool
	state         *stageState
}

func NewStageGenerator(stage metadata.ShaderStage, rhiCompatible bool) *StageGenerator {
	return &StageGenerator{
		stage:         stage,
		rhiCompatible: rhiCompatible,
		state:         newStageState(0),
	}
}

func (g *StageGenerator) Stage() metadata.ShaderStage {
	return g.stage
}

// Begin drops everything accumulated by the previous build, the link included.
func (g *StageGenerator) Begin(enabled metadata.ShaderStageFlags) {
	g.state = newStageState(enabled)
}

func (g *StageGenerator) link(next *StageGenerator) {
	g.state.outgoing = next.state.incoming
}

func (g *StageGenerator) AddIncoming(name, typ string) {
	g.state.incoming[name] = typ
}

/**
 * @brief Declares a variable written by this stage and read by the next.
 * @return ErrNoOutgoingStage when no enabled stage follows this one.
 */
func (g *StageGenerator) AddOutgoing(name, typ string) error {
	if g.state.outgoing == nil {
		err := fmt.Errorf("%s stage output %s: %w", g.stage, name, core.ErrNoOutgoingStage)
		core.LogError(err.Error())
		return err
	}
	g.state.outgoing[name] = typ
	return nil
}

func (g *StageGenerator) AddUniform(name, typ string) {
	g.state.uniforms[name] = typ
}

func (g *StageGenerator) AddConstantBuffer(name, layout string) {
	g.state.constantBuffers[name] = layout
}

func (g *StageGenerator) AddConstantBufferParam(bufferName, paramName, typ string) {
	g.state.constantBufferParams = append(g.state.constantBufferParams, constantBufferParam{
		buffer: bufferName,
		name:   paramName,
		typ:    typ,
	})
}

func (g *StageGenerator) AddInclude(name string) {
	g.state.includes[name] = struct{}{}
}

// AddFunction pulls in func<name>.glsllib, once per build.
func (g *StageGenerator) AddFunction(name string) {
	if slices.Contains(g.state.addedFunctions, name) {
		return
	}
	g.state.addedFunctions = append(g.state.addedFunctions, name)
	g.AddInclude("func" + name + ".glsllib")
}

// Append adds a line of code.
func (g *StageGenerator) Append(code string) {
	g.state.code.WriteString(code)
	g.state.code.WriteByte('\n')
}

func (g *StageGenerator) Write(p []byte) (int, error) {
	return g.state.code.Write(p)
}

func (g *StageGenerator) WriteString(s string) (int, error) {
	return g.state.code.WriteString(s)
}

// Incoming returns a copy of the variables this stage reads.
func (g *StageGenerator) Incoming() map[string]string {
	out := make(map[string]string, len(g.state.incoming))
	for k, v := range g.state.incoming {
		out[k] = v
	}
	return out
}

// HasOutgoingLink reports whether a following stage receives this stage's outputs.
func (g *StageGenerator) HasOutgoingLink() bool {
	return g.state.outgoing != nil
}

func (g *StageGenerator) Code() string {
	return g.state.code.String()
}

func (g *StageGenerator) incomingSuffix() string {
	switch g.stage {
	case metadata.ShaderStageTessControl, metadata.ShaderStageTessEval, metadata.ShaderStageGeometry:
		return "[]"
	}
	return ""
}

func (g *StageGenerator) outgoingSuffix() string {
	if g.stage == metadata.ShaderStageTessControl {
		return "[]"
	}
	return ""
}

func (g *StageGenerator) incomingKind() ItemKind {
	if g.stage == metadata.ShaderStageVertex {
		return ItemVertexInput
	}
	return ItemInput
}

func legacyKeyword(kind ItemKind) (string, error) {
	switch kind {
	case ItemVertexInput:
		return "attribute", nil
	case ItemInput, ItemOutput:
		return "varying", nil
	case ItemUniform:
		return "uniform", nil
	}
	err := fmt.Errorf("shader item %d: %w", int(kind), core.ErrUnknownShaderItem)
	core.LogError(err.Error())
	return "", err
}

// addItemMap emits legacy declarations or registers the items with mc.
func (g *StageGenerator) addItemMap(out *UnresolvedSource, mc *MergeContext, kind ItemKind, items map[string]string, suffix string) error {
	out.appendString("\n")
	for _, name := range sortedKeys(items) {
		typ := items[name]
		if g.rhiCompatible {
			if err := mc.register(kind, g.stage, typ, name+suffix); err != nil {
				return err
			}
			continue
		}
		keyword, err := legacyKeyword(kind)
		if err != nil {
			return err
		}
		out.appendString(keyword + " " + typ + " " + name + suffix + ";\n")
	}
	return nil
}

func (g *StageGenerator) addSlot(out *UnresolvedSource, kind ItemKind) {
	if g.rhiCompatible {
		out.appendSlot(kind)
		out.appendString("\n")
	}
}

func (g *StageGenerator) addConstantBuffers(out *UnresolvedSource) {
	out.appendString("\n")
	for _, name := range sortedKeys(g.state.constantBuffers) {
		out.appendString(g.state.constantBuffers[name] + " uniform " + name + " {\n")
		for _, p := range g.state.constantBufferParams {
			if p.buffer == name {
				out.appendString(p.typ + " " + p.name + ";\n")
			}
		}
		out.appendString("};\n")
	}
}

/**
 * @brief Pass 1: lays out the stage's declarations, includes and code.
 * With rhiCompatible set the declarations are registered with mc and left
 * as slots for Resolve; otherwise they are written out in legacy form.
 */
func (g *StageGenerator) BuildPass1(mc *MergeContext) (*UnresolvedSource, error) {
	if g.rhiCompatible && mc == nil {
		return nil, fmt.Errorf("%s stage needs a merge context: %w", g.stage, core.ErrInvalidConfig)
	}
	out := &UnresolvedSource{stage: g.stage}

	if err := g.addItemMap(out, mc, g.incomingKind(), g.state.incoming, g.incomingSuffix()); err != nil {
		return nil, err
	}
	g.addSlot(out, g.incomingKind())

	if err := g.addItemMap(out, mc, ItemUniform, g.state.uniforms, ""); err != nil {
		return nil, err
	}
	g.addSlot(out, ItemUniform)

	g.addConstantBuffers(out)

	// the fragment stage only gets the slot, its output is declared by the cache
	if g.stage != metadata.ShaderStageFragment && g.state.outgoing != nil {
		if err := g.addItemMap(out, mc, ItemOutput, g.state.outgoing, g.outgoingSuffix()); err != nil {
			return nil, err
		}
	}
	g.addSlot(out, ItemOutput)

	includes := sortedKeys(g.state.includes)
	for _, inc := range includes {
		out.appendString("#include \"" + inc + "\"\n")
	}
	out.appendText(g.state.code.Bytes())
	return out, nil
}

// UpdateShaderCacheFlags records the fixed-function state this stage needs.
func (g *StageGenerator) UpdateShaderCacheFlags(flags *metadata.ProgramFlags) {
	switch g.stage {
	case metadata.ShaderStageTessControl, metadata.ShaderStageTessEval:
		flags.Set(metadata.ProgramFlagTessellationEnabled)
	case metadata.ShaderStageGeometry:
		flags.Set(metadata.ProgramFlagGeometryShaderEnabled)
	}
}
