package codegen

import (
	"bytes"
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/** @brief The category of a declaration slot. */
type ItemKind int

const (
	ItemVertexInput ItemKind = iota
	ItemInput
	ItemOutput
	ItemUniform
)

func (k ItemKind) String() string {
	switch k {
	case ItemVertexInput:
		return "vertexInput"
	case ItemInput:
		return "input"
	case ItemOutput:
		return "output"
	case ItemUniform:
		return "uniform"
	}
	return fmt.Sprintf("item(%d)", int(k))
}

type sourcePart struct {
	text   []byte
	isSlot bool
	slot   ItemKind
}

/**
 * @brief The output of pass 1: literal text interleaved with declaration
 * slots that only the complete merge context can fill in. Legacy sources
 * carry no slots.
 */
type UnresolvedSource struct {
	stage metadata.ShaderStage
	parts []sourcePart
}

func (u *UnresolvedSource) Stage() metadata.ShaderStage {
	return u.stage
}

func (u *UnresolvedSource) appendText(text []byte) {
	if len(text) == 0 {
		return
	}
	if n := len(u.parts); n > 0 && !u.parts[n-1].isSlot {
		u.parts[n-1].text = append(u.parts[n-1].text, text...)
		return
	}
	u.parts = append(u.parts, sourcePart{text: append([]byte(nil), text...)})
}

func (u *UnresolvedSource) appendString(text string) {
	u.appendText([]byte(text))
}

func (u *UnresolvedSource) appendSlot(kind ItemKind) {
	u.parts = append(u.parts, sourcePart{isSlot: true, slot: kind})
}

// Slots lists the pending declaration slots in order.
func (u *UnresolvedSource) Slots() []ItemKind {
	var out []ItemKind
	for _, p := range u.parts {
		if p.isSlot {
			out = append(out, p.slot)
		}
	}
	return out
}

// Text returns the literal text with every slot left empty.
func (u *UnresolvedSource) Text() []byte {
	var b bytes.Buffer
	for _, p := range u.parts {
		if !p.isSlot {
			b.Write(p.text)
		}
	}
	return b.Bytes()
}

// MapText replaces every literal part by fn applied to it.
func (u *UnresolvedSource) MapText(fn func([]byte) ([]byte, error)) error {
	for i := range u.parts {
		if u.parts[i].isSlot {
			continue
		}
		text, err := fn(u.parts[i].text)
		if err != nil {
			return err
		}
		u.parts[i].text = text
	}
	return nil
}

/**
 * @brief Pass 2: renders every slot from the merge context. The context
 * must have seen the declarations of all stages of the program.
 */
func (u *UnresolvedSource) Resolve(mc *MergeContext) ([]byte, error) {
	var b bytes.Buffer
	for _, p := range u.parts {
		if !p.isSlot {
			b.Write(p.text)
			continue
		}
		if mc == nil {
			return nil, fmt.Errorf("%s stage has pending %s declarations: %w", u.stage, p.slot, core.ErrUnresolvedSource)
		}
		if err := emitSlot(&b, mc, u.stage, p.slot); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func emitSlot(b *bytes.Buffer, mc *MergeContext, stage metadata.ShaderStage, kind ItemKind) error {
	switch kind {
	case ItemVertexInput:
		if stage == metadata.ShaderStageVertex {
			emitInputs(b, mc, stage)
		}
	case ItemInput:
		emitInputs(b, mc, stage)
	case ItemOutput:
		for _, v := range mc.InOutVars() {
			if v.StageOutputFrom.Has(stage) {
				fmt.Fprintf(b, "layout(location = %d) out %s %s;\n", v.Location, v.Type, v.Name)
			}
		}
	case ItemUniform:
		emitUniforms(b, mc)
	default:
		err := fmt.Errorf("slot %d in %s stage: %w", int(kind), stage, core.ErrUnknownShaderItem)
		core.LogError(err.Error())
		return err
	}
	return nil
}

func emitInputs(b *bytes.Buffer, mc *MergeContext, stage metadata.ShaderStage) {
	for _, v := range mc.InOutVars() {
		if v.StagesInputIn.Has(stage) {
			fmt.Fprintf(b, "layout(location = %d) in %s %s;\n", v.Location, v.Type, v.Name)
		}
	}
}

// Every stage gets the full cbMain so member offsets agree across stages.
func emitUniforms(b *bytes.Buffer, mc *MergeContext) {
	for _, s := range mc.Samplers() {
		startCondition(b, s.Condition, s.ConditionName)
		fmt.Fprintf(b, "layout(binding = %d) uniform %s %s;\n", s.Binding, s.Type, s.Name)
		endCondition(b, s.Condition)
	}

	members := mc.UniformMembers()
	if len(members) == 0 {
		return
	}
	fmt.Fprintf(b, "layout(std140, binding = %d) uniform cbMain {\n", MainUniformBlockBinding)
	for _, m := range members {
		startCondition(b, m.Condition, m.ConditionName)
		fmt.Fprintf(b, "  %s %s;\n", m.Type, m.Name)
		endCondition(b, m.Condition)
	}
	b.WriteString("};\n")
}

// #if, not #ifdef: feature defines are always present as 0 or 1.
func startCondition(b *bytes.Buffer, cond metadata.Condition, name string) {
	switch cond {
	case metadata.ConditionRegular:
		fmt.Fprintf(b, "#if %s\n", name)
	case metadata.ConditionNegated:
		fmt.Fprintf(b, "#if !%s\n", name)
	}
}

func endCondition(b *bytes.Buffer, cond metadata.Condition) {
	if cond != metadata.ConditionNone {
		b.WriteString("#endif\n")
	}
}
