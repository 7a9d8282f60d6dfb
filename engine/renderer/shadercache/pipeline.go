package shadercache

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

/** @brief One compiled stage of a pipeline. */
type StageModule struct {
	Stage metadata.ShaderStage
	/** @brief The SPIR-V code of the stage. */
	SPIRV []byte
	/** @brief The backend module handle, nil when no ModuleFactory is set. */
	Module interface{}
}

/**
 * @brief A compiled shader program as handed out by the cache. A pipeline is
 * immutable once returned and may be shared by any number of renderables.
 * An invalid pipeline has no stages and must not be drawn with.
 */
type Pipeline struct {
	ID       uuid.UUID
	Identity string
	Features features.Set
	Flags    metadata.ProgramFlags

	stages []StageModule
	valid  bool
}

func newInvalidPipeline(key CacheKey, flags metadata.ProgramFlags) *Pipeline {
	return &Pipeline{
		ID:       uuid.New(),
		Identity: key.String(),
		Features: key.Features(),
		Flags:    flags,
	}
}

func newPipeline(key CacheKey, flags metadata.ProgramFlags, stages []StageModule) *Pipeline {
	return &Pipeline{
		ID:       uuid.New(),
		Identity: key.String(),
		Features: key.Features(),
		Flags:    flags,
		stages:   stages,
		valid:    len(stages) > 0,
	}
}

// IsValid reports whether every required stage compiled. Safe on nil.
func (p *Pipeline) IsValid() bool {
	return p != nil && p.valid
}

func (p *Pipeline) Stage(stage metadata.ShaderStage) (StageModule, bool) {
	if p == nil {
		return StageModule{}, false
	}
	for _, s := range p.stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageModule{}, false
}

// Stages returns the compiled stages in pipeline order.
func (p *Pipeline) Stages() []StageModule {
	if p == nil {
		return nil
	}
	out := make([]StageModule, len(p.stages))
	copy(out, p.stages)
	return out
}

/**
 * @brief Backend lookup-or-create of shader modules. Implementations may
 * return the same handle for identical code. The cache releases every
 * module it created exactly once.
 */
type ModuleFactory interface {
	CreateModule(stage metadata.ShaderStage, spirv []byte) (interface{}, error)
	ReleaseModule(module interface{})
}
