package codegen

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

// IncludeResolver expands #include directives in assembled text.
type IncludeResolver interface {
	ResolveIncludeFiles(src []byte, info string) ([]byte, error)
}

/**
 * @brief Owns one StageGenerator per pipeline stage and turns the enabled
 * ones into a compiled pipeline.
 */
type ProgramGenerator struct {
	cache         *shadercache.ShaderCache
	includes      IncludeResolver
	rhiCompatible bool

	stages  map[metadata.ShaderStage]*StageGenerator
	enabled metadata.ShaderStageFlags
}

/**
 * @brief Creates a generator compiling through cache.
 * @param includes May be nil, include directives are then left to the compiler.
 * @param rhiCompatible Selects explicit locations and bindings over the legacy keywords.
 */
func NewProgramGenerator(cache *shadercache.ShaderCache, includes IncludeResolver, rhiCompatible bool) (*ProgramGenerator, error) {
	if cache == nil {
		err := fmt.Errorf("program generator needs a shader cache: %w", core.ErrInvalidConfig)
		core.LogError(err.Error())
		return nil, err
	}
	pg := &ProgramGenerator{
		cache:         cache,
		includes:      includes,
		rhiCompatible: rhiCompatible,
		stages:        make(map[metadata.ShaderStage]*StageGenerator),
	}
	for _, s := range metadata.PipelineStages() {
		pg.stages[s] = NewStageGenerator(s, rhiCompatible)
	}
	return pg, nil
}

// BeginProgram resets every stage and links each enabled stage to the next enabled one.
func (pg *ProgramGenerator) BeginProgram(stages metadata.ShaderStageFlags) {
	pg.enabled = stages
	for _, s := range metadata.PipelineStages() {
		pg.stages[s].Begin(stages)
	}
	var previous *StageGenerator
	for _, s := range stages.Stages() {
		g := pg.stages[s]
		if previous != nil {
			previous.link(g)
		}
		previous = g
	}
}

func (pg *ProgramGenerator) EnabledStages() metadata.ShaderStageFlags {
	return pg.enabled
}

// GetStage returns nil for a disabled stage.
func (pg *ProgramGenerator) GetStage(stage metadata.ShaderStage) *StageGenerator {
	if !pg.enabled.Has(stage) {
		return nil
	}
	return pg.stages[stage]
}

/**
 * @brief Runs both generation passes without compiling.
 * @return the final text per stage and the program flags the stages require.
 */
func (pg *ProgramGenerator) BuildSources(name string, flags metadata.ProgramFlags) (shadercache.StageSources, metadata.ProgramFlags, error) {
	stages := pg.enabled.Stages()
	if len(stages) == 0 {
		err := fmt.Errorf("program %s: %w", name, core.ErrNoStagesEnabled)
		core.LogError(err.Error())
		return nil, flags, err
	}

	var mc *MergeContext
	if pg.rhiCompatible {
		mc = NewMergeContext()
	}

	unresolved := make([]*UnresolvedSource, 0, len(stages))
	for _, s := range stages {
		g := pg.stages[s]
		u, err := g.BuildPass1(mc)
		if err != nil {
			return nil, flags, err
		}
		g.UpdateShaderCacheFlags(&flags)
		unresolved = append(unresolved, u)
	}

	for _, u := range unresolved {
		if pg.includes != nil {
			info := name + "." + u.Stage().Extension()
			if err := u.MapText(func(text []byte) ([]byte, error) {
				return pg.includes.ResolveIncludeFiles(text, info)
			}); err != nil {
				core.LogError("failed to resolve includes of %s: %s", info, err)
				return nil, flags, err
			}
		}
		if mc != nil {
			mc.RegisterMetaData(metadata.ParseShaderMetaData(u.Text()), u.Stage())
		}
	}

	if mc != nil {
		if conflicts := mc.Conflicts(); len(conflicts) > 0 {
			err := fmt.Errorf("program %s: %s: %w", name, conflicts[0], core.ErrDeclarationConflict)
			core.LogError(err.Error())
			return nil, flags, err
		}
	}

	sources := make(shadercache.StageSources, len(unresolved))
	for _, u := range unresolved {
		text, err := u.Resolve(mc)
		if err != nil {
			return nil, flags, err
		}
		sources[u.Stage()] = text
	}
	return sources, flags, nil
}

/**
 * @brief Generates every enabled stage and hands the result to the cache.
 * A compile failure is reported through the invalid pipeline, not the error.
 */
func (pg *ProgramGenerator) CompileGeneratedShader(name string, flags metadata.ProgramFlags, f features.Set) (*shadercache.Pipeline, error) {
	sources, flags, err := pg.BuildSources(name, flags)
	if err != nil {
		return nil, err
	}
	return pg.cache.CompileForRhi([]byte(name), sources, flags, f), nil
}
