package codegen

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Bindings 0..2 are reserved for uniform buffers, 0 is cbMain and 1 is cbLights.
const (
	MainUniformBlockBinding    = 0
	FirstCustomResourceBinding = 3
)

/** @brief An interpolant shared between stages. */
type InOutVar struct {
	StageOutputFrom metadata.ShaderStageFlags
	StagesInputIn   metadata.ShaderStageFlags
	Type            string
	Name            string
	Location        int
	Output          bool
}

type Sampler struct {
	Type          string
	Name          string
	Condition     metadata.Condition
	ConditionName string
	Binding       int
}

/** @brief A member of the shared cbMain uniform block. */
type BlockMember struct {
	Type          string
	Name          string
	Condition     metadata.Condition
	ConditionName string
}

// Conflict records a name registered again with a different type.
type Conflict struct {
	Name     string
	Type     string
	Previous string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s declared as %s, already %s", c.Name, c.Type, c.Previous)
}

/**
 * @brief Reconciles the declarations of every stage of one program build
 * into a single binding layout. Registration is idempotent per name; the
 * first registration decides type, location and binding.
 */
type MergeContext struct {
	inOutVars      map[string]*InOutVar
	samplers       map[string]*Sampler
	uniformMembers map[string]*BlockMember

	nextFreeResourceBinding int
	nextFreeInLocation      map[metadata.ShaderStage]int
	nextFreeOutLocation     map[metadata.ShaderStage]int

	conflicts []Conflict
}

func NewMergeContext() *MergeContext {
	return &MergeContext{
		inOutVars:               make(map[string]*InOutVar),
		samplers:                make(map[string]*Sampler),
		uniformMembers:          make(map[string]*BlockMember),
		nextFreeResourceBinding: FirstCustomResourceBinding,
		nextFreeInLocation:      make(map[metadata.ShaderStage]int),
		nextFreeOutLocation:     make(map[metadata.ShaderStage]int),
	}
}

func (mc *MergeContext) conflict(name, typ, previous string) {
	core.LogWarn("shader variable %s registered as %s but already declared as %s, keeping %s", name, typ, previous, previous)
	mc.conflicts = append(mc.conflicts, Conflict{Name: name, Type: typ, Previous: previous})
}

func (mc *MergeContext) RegisterInput(stage metadata.ShaderStage, typ, name string) {
	if v, ok := mc.inOutVars[name]; ok {
		if v.Type != typ {
			mc.conflict(name, typ, v.Type)
		}
		v.StagesInputIn.Add(stage)
		return
	}
	loc := mc.nextFreeInLocation[stage]
	mc.nextFreeInLocation[stage] = loc + 1
	mc.inOutVars[name] = &InOutVar{
		StagesInputIn: metadata.StageFlags(stage),
		Type:          typ,
		Name:          name,
		Location:      loc,
	}
}

func (mc *MergeContext) RegisterOutput(stage metadata.ShaderStage, typ, name string) {
	if v, ok := mc.inOutVars[name]; ok {
		if v.Type != typ {
			mc.conflict(name, typ, v.Type)
		}
		v.StageOutputFrom.Add(stage)
		return
	}
	loc := mc.nextFreeOutLocation[stage]
	mc.nextFreeOutLocation[stage] = loc + 1
	mc.inOutVars[name] = &InOutVar{
		StageOutputFrom: metadata.StageFlags(stage),
		Type:            typ,
		Name:            name,
		Location:        loc,
		Output:          true,
	}
}

// RegisterSampler declares a standalone sampler binding.
func (mc *MergeContext) RegisterSampler(typ, name string, cond metadata.Condition, condName string) {
	if s, ok := mc.samplers[name]; ok {
		if s.Type != typ {
			mc.conflict(name, typ, s.Type)
		}
		return
	}
	mc.samplers[name] = &Sampler{
		Type:          typ,
		Name:          name,
		Condition:     cond,
		ConditionName: condName,
		Binding:       mc.nextFreeResourceBinding,
	}
	mc.nextFreeResourceBinding++
}

// RegisterUniformMember adds a member to cbMain.
func (mc *MergeContext) RegisterUniformMember(typ, name string, cond metadata.Condition, condName string) {
	if m, ok := mc.uniformMembers[name]; ok {
		if m.Condition != cond {
			core.LogWarn("encountered uniform %s with different conditions, keeping the first", name)
		}
		if m.Type != typ {
			mc.conflict(name, typ, m.Type)
		}
		return
	}
	mc.uniformMembers[name] = &BlockMember{
		Type:          typ,
		Name:          name,
		Condition:     cond,
		ConditionName: condName,
	}
}

/**
 * @brief Routes one declaration by item kind. Uniforms of sampler type become
 * samplers, everything else a cbMain member.
 * @return ErrUnknownShaderItem for a kind with no emission rule.
 */
func (mc *MergeContext) register(kind ItemKind, stage metadata.ShaderStage, typ, name string) error {
	switch kind {
	case ItemVertexInput:
		mc.RegisterInput(metadata.ShaderStageVertex, typ, name)
	case ItemInput:
		mc.RegisterInput(stage, typ, name)
	case ItemOutput:
		mc.RegisterOutput(stage, typ, name)
	case ItemUniform:
		if strings.HasPrefix(typ, "sampler") {
			mc.RegisterSampler(typ, name, metadata.ConditionNone, "")
		} else {
			mc.RegisterUniformMember(typ, name, metadata.ConditionNone, "")
		}
	default:
		err := fmt.Errorf("shader item %d for %s: %w", int(kind), name, core.ErrUnknownShaderItem)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// RegisterMetaData folds scraped annotations of one stage into the context.
func (mc *MergeContext) RegisterMetaData(meta metadata.ShaderMetaData, stage metadata.ShaderStage) {
	for _, u := range meta.Uniforms {
		if strings.HasPrefix(u.Type, "sampler") {
			mc.RegisterSampler(u.Type, u.Name, u.Condition, u.ConditionName)
		} else {
			mc.RegisterUniformMember(u.Type, u.Name, u.Condition, u.ConditionName)
		}
	}
	for _, in := range meta.Inputs {
		if in.Stage == stage {
			mc.RegisterInput(stage, in.Type, in.Name)
		}
	}
	for _, out := range meta.Outputs {
		if out.Stage == stage {
			mc.RegisterOutput(stage, out.Type, out.Name)
		}
	}
}

func (mc *MergeContext) HasSampler(name string) bool {
	_, ok := mc.samplers[name]
	return ok
}

func (mc *MergeContext) HasUniformMember(name string) bool {
	_, ok := mc.uniformMembers[name]
	return ok
}

func (mc *MergeContext) Conflicts() []Conflict {
	return slices.Clone(mc.conflicts)
}

// InOutVars returns the interpolants sorted by name.
func (mc *MergeContext) InOutVars() []InOutVar {
	out := make([]InOutVar, 0, len(mc.inOutVars))
	for _, name := range sortedKeys(mc.inOutVars) {
		out = append(out, *mc.inOutVars[name])
	}
	return out
}

// Samplers returns the samplers sorted by name.
func (mc *MergeContext) Samplers() []Sampler {
	out := make([]Sampler, 0, len(mc.samplers))
	for _, name := range sortedKeys(mc.samplers) {
		out = append(out, *mc.samplers[name])
	}
	return out
}

// UniformMembers returns the cbMain members sorted by name.
func (mc *MergeContext) UniformMembers() []BlockMember {
	out := make([]BlockMember, 0, len(mc.uniformMembers))
	for _, name := range sortedKeys(mc.uniformMembers) {
		out = append(out, *mc.uniformMembers[name])
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
