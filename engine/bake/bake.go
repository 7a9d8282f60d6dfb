package bake

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/materialkey"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

/** @brief The list of programs to bake into a pregenerated collection. */
type Manifest struct {
	ShadingLanguageVersion string `toml:"shading_language_version"`
	/** @brief Shader library directory, relative to the manifest. */
	Library  string    `toml:"library"`
	Programs []Program `toml:"program"`

	dir string
}

/**
 * @brief One program variant. Stages maps a stage name ("vertex", "frag", ...)
 * to a GLSL file or, for programs compiled elsewhere, a .spv file. A program
 * is either all GLSL or all SPIR-V.
 *
 * Material programs give a material key ("hasLighting=true;lightCount=2")
 * instead of an identity; the identity is then the normalized key string
 * the material layer looks the program up by.
 */
type Program struct {
	Identity string            `toml:"identity"`
	Material string            `toml:"material"`
	Features []string          `toml:"features"`
	Stages   map[string]string `toml:"stages"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := toml.Unmarshal(data, m); err != nil {
		err = fmt.Errorf("parsing manifest %s: %w: %s", path, core.ErrInvalidConfig, err.Error())
		core.LogError(err.Error())
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

func (m *Manifest) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(m.dir, path)
}

/** @brief Compiles every program of a manifest into one collection. */
type Baker struct {
	manifest *Manifest
	props    *materialkey.Properties
	library  *assets.ShaderLibrary
	cache    *shadercache.ShaderCache
	prebuilt *shadercache.Collection
}

func NewBaker(m *Manifest, compiler shadercache.Compiler) (*Baker, error) {
	if m == nil || len(m.Programs) == 0 {
		err := fmt.Errorf("manifest lists no programs: %w", core.ErrInvalidConfig)
		core.LogError(err.Error())
		return nil, err
	}
	library, err := assets.NewShaderLibrary(m.resolve(m.Library))
	if err != nil {
		return nil, err
	}
	cache, err := shadercache.NewShaderCache(&shadercache.ShaderCacheConfig{
		ShadingLanguageVersion: m.ShadingLanguageVersion,
	}, compiler)
	if err != nil {
		return nil, err
	}
	return &Baker{
		manifest: m,
		props:    materialkey.NewProperties(),
		library:  library,
		cache:    cache,
		prebuilt: shadercache.NewCollection(),
	}, nil
}

/**
 * @brief Bakes all programs. Every program is attempted; the returned error
 * joins the failures and the collection holds the programs that succeeded.
 */
func (b *Baker) Bake() (*shadercache.Collection, error) {
	clock := core.NewClock()
	clock.Start()

	var errs []error
	for i := range b.manifest.Programs {
		if err := b.bakeProgram(&b.manifest.Programs[i]); err != nil {
			errs = append(errs, err)
		}
	}

	out := shadercache.NewCollection()
	out.Merge(b.prebuilt)
	out.Merge(b.cache.Compiled())
	clock.Stop()

	stats := b.cache.Stats()
	core.LogInfo("baked %d of %d programs in %s (%d compiled, avg %.1fms)",
		out.Len(), len(b.manifest.Programs), clock.Elapsed(), stats.Compiles, stats.AverageCompileMs)
	return out, errors.Join(errs...)
}

func (b *Baker) bakeProgram(p *Program) error {
	if (p.Identity == "") == (p.Material == "") || len(p.Stages) == 0 {
		err := fmt.Errorf("program %q needs stages and either an identity or a material key: %w", p.Identity+p.Material, core.ErrInvalidConfig)
		core.LogError(err.Error())
		return err
	}

	var set features.Set
	for _, name := range p.Features {
		f, err := features.Parse(name)
		if err != nil {
			core.LogError("program %s: %s", p.Identity+p.Material, err.Error())
			return err
		}
		set.Set(f, true)
	}

	identity := p.Identity
	if p.Material != "" {
		key, err := materialkey.FromString(p.Material, b.props, set)
		if err != nil {
			core.LogError("program %s: %s", p.Material, err.Error())
			return err
		}
		identity = key.ToString(b.props)
	}
	p = &Program{Identity: identity, Features: p.Features, Stages: p.Stages}

	files := make(map[metadata.ShaderStage]string, len(p.Stages))
	for name, file := range p.Stages {
		stage, err := metadata.ParseShaderStage(name)
		if err != nil {
			core.LogError("program %s: %s", p.Identity, err.Error())
			return err
		}
		if _, dup := files[stage]; dup {
			err := fmt.Errorf("program %s lists the %s stage twice: %w", p.Identity, stage, core.ErrInvalidConfig)
			core.LogError(err.Error())
			return err
		}
		files[stage] = file
	}

	var flags metadata.ProgramFlags
	sources := make(shadercache.StageSources, len(files))
	var blobs []shadercache.StageBlob
	for _, stage := range metadata.PipelineStages() {
		file, ok := files[stage]
		if !ok {
			continue
		}
		switch stage {
		case metadata.ShaderStageTessControl, metadata.ShaderStageTessEval:
			flags.Set(metadata.ProgramFlagTessellationEnabled)
		case metadata.ShaderStageGeometry:
			flags.Set(metadata.ProgramFlagGeometryShaderEnabled)
		}

		path := b.manifest.resolve(file)
		res, err := b.library.LoadResource(path, map[string]string{"name": file})
		if err != nil {
			core.LogError("program %s: failed to load %s stage: %s", p.Identity, stage, err.Error())
			return err
		}
		data := res.Data.([]byte)

		if assets.DetermineResourceType(path) == metadata.ResourceTypeBinary {
			blobs = append(blobs, shadercache.StageBlob{Stage: stage, Code: data})
			continue
		}
		text, err := b.library.ResolveIncludeFiles(data, file)
		if err != nil {
			return err
		}
		sources[stage] = text
	}

	if len(blobs) > 0 {
		if len(sources) > 0 {
			err := fmt.Errorf("program %s mixes GLSL and SPIR-V stages: %w", p.Identity, core.ErrInvalidConfig)
			core.LogError(err.Error())
			return err
		}
		b.prebuilt.Put(shadercache.CollectionEntry{
			Key:      shadercache.ContentKey([]byte(p.Identity), set),
			Features: set,
			Flags:    flags,
			Stages:   blobs,
		})
		core.LogDebug("added prebuilt program %s", p.Identity)
		return nil
	}

	pipeline := b.cache.CompileForRhi([]byte(p.Identity), sources, flags, set)
	if !pipeline.IsValid() {
		return fmt.Errorf("program %s [%s] failed to compile", p.Identity, set)
	}
	return nil
}

func (b *Baker) RecentFailures() []shadercache.CompileFailure {
	return b.cache.RecentFailures()
}

func (b *Baker) Close() error {
	return b.library.Close()
}
