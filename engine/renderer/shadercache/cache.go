package shadercache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/prism/engine/containers"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// StageSources holds the generated GLSL of each stage of a program.
type StageSources map[metadata.ShaderStage][]byte

/** @brief Lookup counters per tier. */
type Stats struct {
	MemoryHits       uint64
	PregeneratedHits uint64
	PersistentHits   uint64
	Compiles         uint64
	Failures         uint64
	/** @brief Rolling average of full program compiles, in milliseconds. */
	AverageCompileMs float64
}

type CompileFailure struct {
	Key        string
	Stage      metadata.ShaderStage
	Diagnostic string
	Time       time.Time
}

type cacheEntry struct {
	key      CacheKey
	pipeline *Pipeline
}

type Option func(*ShaderCache)

// WithModuleFactory creates backend modules for every compiled or loaded stage.
func WithModuleFactory(f ModuleFactory) Option {
	return func(sc *ShaderCache) {
		sc.factory = f
	}
}

func WithStatusHook(h *StatusHook) Option {
	return func(sc *ShaderCache) {
		sc.hook = h
	}
}

/**
 * @brief Maps (identity, features) to compiled pipelines. Lookups try the
 * in-memory table, the pregenerated collection, the persistent collection
 * and finally the compiler. Not safe for concurrent use: all calls happen on
 * the goroutine owning the graphics device.
 */
type ShaderCache struct {
	config   *ShaderCacheConfig
	compiler Compiler
	factory  ModuleFactory
	hook     *StatusHook

	table map[uint64][]cacheEntry

	pregenerated     *Collection
	persistent       *Collection
	persistentLoaded bool
	fresh            *Collection

	// non-nil after the sources changed: only these content keys may be
	// served from a collection until the cache is recreated
	recompiled map[string]struct{}
	pruned     bool

	failures    *containers.RingQueue[CompileFailure]
	compileTime core.RollingAverage
	stats       Stats
}

/**
 * @brief Creates the cache. A nil compiler disables compilation; programs
 * not found in any collection then come back invalid.
 */
func NewShaderCache(config *ShaderCacheConfig, compiler Compiler, opts ...Option) (*ShaderCache, error) {
	if config == nil {
		err := fmt.Errorf("shader cache config is nil: %w", core.ErrInvalidConfig)
		core.LogError(err.Error())
		return nil, err
	}
	if err := config.validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	sc := &ShaderCache{
		config:   config,
		compiler: compiler,
		table:    make(map[uint64][]cacheEntry),
		fresh:    NewCollection(),
		failures: containers.NewRingQueue[CompileFailure](config.RecentFailures),
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.hook == nil {
		sc.hook = NewStatusHook(nil)
	}

	if config.PregeneratedPath != "" {
		c, err := LoadCollection(config.PregeneratedPath)
		if err != nil {
			core.LogWarn("pregenerated shaders unavailable: %s", err.Error())
		} else {
			sc.pregenerated = c
			core.LogInfo("loaded %d pregenerated shader programs from %s", c.Len(), config.PregeneratedPath)
		}
	}
	return sc, nil
}

func (sc *ShaderCache) lookup(key CacheKey) (*Pipeline, bool) {
	for _, e := range sc.table[key.Hash()] {
		if e.key.Equal(key) {
			return e.pipeline, true
		}
	}
	return nil, false
}

func (sc *ShaderCache) insert(key CacheKey, p *Pipeline) {
	h := key.Hash()
	sc.table[h] = append(sc.table[h], cacheEntry{key: key.Detach(), pipeline: p})
}

// GetPipeline only consults the in-memory table.
func (sc *ShaderCache) GetPipeline(identity []byte, f features.Set) *Pipeline {
	p, ok := sc.lookup(NewCacheKey(identity, f))
	if ok {
		sc.stats.MemoryHits++
	}
	return p
}

/**
 * @brief Returns the pipeline for the key from memory or one of the baked
 * collections, nil when none has it. Never compiles.
 */
func (sc *ShaderCache) LoadPipeline(identity []byte, f features.Set) *Pipeline {
	key := NewCacheKey(identity, f)
	if p, ok := sc.lookup(key); ok {
		sc.stats.MemoryHits++
		return p
	}
	return sc.loadFromCollections(key)
}

func (sc *ShaderCache) loadFromCollections(key CacheKey) *Pipeline {
	contentKey := key.ContentKey()
	if sc.recompiled != nil {
		return sc.loadRecompiled(key, contentKey)
	}

	if sc.pregenerated != nil {
		if e, ok := sc.pregenerated.Lookup(contentKey); ok {
			if p := sc.materialize(key, e); p != nil {
				sc.stats.PregeneratedHits++
				sc.insert(key, p)
				return p
			}
		}
	}

	if sc.config.SkipPersistentLookup || sc.config.PersistentPath == "" {
		return nil
	}
	if e, ok := sc.persistentCollection().Lookup(contentKey); ok {
		if p := sc.materialize(key, e); p != nil {
			core.LogDebug("loaded shader %s from the persistent cache", key.String())
			sc.stats.PersistentHits++
			sc.insert(key, p)
			return p
		}
	}
	return nil
}

// loadRecompiled serves a program compiled since the last invalidation,
// from this session's compiles or from a flush that wrote them.
func (sc *ShaderCache) loadRecompiled(key CacheKey, contentKey string) *Pipeline {
	if _, ok := sc.recompiled[contentKey]; !ok {
		return nil
	}
	e, ok := sc.fresh.Lookup(contentKey)
	if !ok && sc.config.PersistentPath != "" {
		e, ok = sc.persistentCollection().Lookup(contentKey)
	}
	if !ok {
		return nil
	}
	p := sc.materialize(key, e)
	if p != nil {
		sc.insert(key, p)
	}
	return p
}

// persistentCollection reads the persistent file on first use.
func (sc *ShaderCache) persistentCollection() *Collection {
	if sc.persistentLoaded {
		return sc.persistent
	}
	sc.persistentLoaded = true
	sc.persistent = NewCollection()

	c, err := LoadCollection(sc.config.PersistentPath)
	switch {
	case err == nil:
		sc.persistent = c
	case errors.Is(err, os.ErrNotExist):
	default:
		core.LogWarn("persistent shader cache unreadable, ignoring it: %s", err.Error())
	}
	return sc.persistent
}

// materialize builds a pipeline from a baked entry, nil if a module could not be created.
func (sc *ShaderCache) materialize(key CacheKey, e *CollectionEntry) *Pipeline {
	stages := make([]StageModule, 0, len(e.Stages))
	for _, stage := range metadata.PipelineStages() {
		for _, blob := range e.Stages {
			if blob.Stage != stage {
				continue
			}
			m, err := sc.createModule(stage, blob.Code)
			if err != nil {
				core.LogWarn("baked %s stage of %s is unusable: %s", stage, key.String(), err.Error())
				sc.releaseModules(stages)
				return nil
			}
			stages = append(stages, StageModule{Stage: stage, SPIRV: blob.Code, Module: m})
		}
	}
	if len(stages) == 0 {
		return nil
	}
	return newPipeline(key, e.Flags, stages)
}

func (sc *ShaderCache) createModule(stage metadata.ShaderStage, spirv []byte) (interface{}, error) {
	if sc.factory == nil {
		return nil, nil
	}
	return sc.factory.CreateModule(stage, spirv)
}

func (sc *ShaderCache) releaseModules(stages []StageModule) {
	if sc.factory == nil {
		return
	}
	for _, s := range stages {
		if s.Module != nil {
			sc.factory.ReleaseModule(s.Module)
		}
	}
}

func requiredStages(flags metadata.ProgramFlags) metadata.ShaderStageFlags {
	required := metadata.StageFlags(metadata.ShaderStageVertex, metadata.ShaderStageFragment)
	if flags.IsSet(metadata.ProgramFlagTessellationEnabled) {
		required.Add(metadata.ShaderStageTessControl)
		required.Add(metadata.ShaderStageTessEval)
	}
	if flags.IsSet(metadata.ProgramFlagGeometryShaderEnabled) {
		required.Add(metadata.ShaderStageGeometry)
	}
	return required
}

/**
 * @brief Returns the pipeline for identity and f, compiling sources when no
 * tier has it. The result is never nil; a failed compile yields an invalid
 * pipeline which is cached like a good one so it is not retried.
 */
func (sc *ShaderCache) CompileForRhi(identity []byte, sources StageSources, flags metadata.ProgramFlags, f features.Set) *Pipeline {
	key := NewCacheKey(identity, f)
	if p, ok := sc.lookup(key); ok {
		sc.stats.MemoryHits++
		return p
	}
	if p := sc.loadFromCollections(key); p != nil {
		return p
	}

	p := sc.compile(key, sources, flags)
	sc.insert(key, p)
	return p
}

func (sc *ShaderCache) compile(key CacheKey, sources StageSources, flags metadata.ProgramFlags) *Pipeline {
	name := key.String()
	if sc.compiler == nil {
		core.LogWarn("shader compilation disabled, no pipeline for %s", name)
		return newInvalidPipeline(key, flags)
	}
	core.LogInfo("compiling into shader cache: '%s'", name)

	required := requiredStages(flags)
	clock := core.NewClock()
	clock.Start()
	sc.stats.Compiles++

	processed := make(map[metadata.ShaderStage][]byte, len(sources))
	stages := make([]StageModule, 0, len(sources))
	failed := false
	for _, stage := range metadata.PipelineStages() {
		src, present := sources[stage]
		if !present || len(src) == 0 {
			if required.Has(stage) {
				sc.recordFailure(name, stage, "missing source for required stage")
				failed = true
			}
			continue
		}

		text := addShaderPreprocessor(sc.config.ShadingLanguageVersion, name, stage, key.Features(), src)
		processed[stage] = text

		spirv, err := sc.compiler.Compile(stage, name, text)
		if err != nil {
			sc.recordFailure(name, stage, Diagnostic(err))
			failed = true
			continue
		}
		m, err := sc.createModule(stage, spirv)
		if err != nil {
			sc.recordFailure(name, stage, err.Error())
			failed = true
			continue
		}
		sc.hook.Notify(name, CompileStatusSuccess, "", stage)
		stages = append(stages, StageModule{Stage: stage, SPIRV: spirv, Module: m})
	}
	clock.Stop()
	sc.compileTime.AddDuration(clock.Elapsed())

	if failed {
		sc.stats.Failures++
		sc.releaseModules(stages)
		sc.dumpSources(key, processed)
		return newInvalidPipeline(key, flags)
	}

	entry := CollectionEntry{
		Key:      key.ContentKey(),
		Features: key.Features(),
		Flags:    flags,
		Stages:   make([]StageBlob, 0, len(stages)),
	}
	for _, s := range stages {
		entry.Stages = append(entry.Stages, StageBlob{Stage: s.Stage, Code: s.SPIRV})
	}
	sc.fresh.Put(entry)
	if sc.recompiled != nil {
		sc.recompiled[entry.Key] = struct{}{}
	}

	return newPipeline(key, flags, stages)
}

func (sc *ShaderCache) recordFailure(name string, stage metadata.ShaderStage, diagnostic string) {
	core.LogWarn("failed to compile %s shader for %s:\n%s", stage, name, diagnostic)
	sc.failures.Push(CompileFailure{Key: name, Stage: stage, Diagnostic: diagnostic, Time: time.Now()})
	sc.hook.Notify(name, CompileStatusError, diagnostic, stage)
}

func (sc *ShaderCache) dumpSources(key CacheKey, processed map[metadata.ShaderStage][]byte) {
	if !sc.config.DumpFailedShaders || len(processed) == 0 {
		return
	}
	if err := os.MkdirAll(sc.config.DumpDirectory, 0o755); err != nil {
		core.LogWarn("cannot create shader dump directory: %s", err.Error())
		return
	}
	base := key.ContentKey()[:16]
	for _, stage := range metadata.PipelineStages() {
		src, ok := processed[stage]
		if !ok {
			continue
		}
		path := filepath.Join(sc.config.DumpDirectory, base+"."+stage.Extension())
		if err := os.WriteFile(path, src, 0o644); err != nil {
			core.LogWarn("failed to dump shader source to %s: %s", path, err.Error())
			continue
		}
		core.LogWarn("dumped %s shader of %s to %s", stage, key.String(), path)
	}
}

/**
 * @brief Forgets every pipeline held in memory and releases their backend
 * modules. Pipelines handed out before must not be used afterwards.
 * @param invalidateCollections Set when shader sources changed: the
 * pregenerated and persistent collections then only serve programs compiled
 * after this call, and the next Flush drops the other persistent entries.
 */
func (sc *ShaderCache) ReleaseCachedResources(invalidateCollections bool) {
	n := 0
	for _, bucket := range sc.table {
		for _, e := range bucket {
			sc.releaseModules(e.pipeline.stages)
		}
		n += len(bucket)
	}
	sc.table = make(map[uint64][]cacheEntry)
	if invalidateCollections {
		sc.recompiled = make(map[string]struct{})
		sc.pruned = false
	}
	core.LogDebug("released %d cached shader pipelines", n)
}

// Len is the number of pipelines held in memory.
func (sc *ShaderCache) Len() int {
	n := 0
	for _, bucket := range sc.table {
		n += len(bucket)
	}
	return n
}

/**
 * @brief Writes every program compiled since the last flush to the
 * persistent collection file. A no-op without a persistent path.
 */
func (sc *ShaderCache) Flush() error {
	if sc.config.PersistentPath == "" {
		return nil
	}
	prune := sc.recompiled != nil && !sc.pruned
	if sc.fresh.Len() == 0 && !prune {
		return nil
	}
	c := sc.persistentCollection()
	if prune {
		kept := NewCollection()
		for _, k := range c.Keys() {
			if _, ok := sc.recompiled[k]; ok {
				e, _ := c.Lookup(k)
				kept.Put(*e)
			}
		}
		core.LogDebug("dropping %d outdated programs from the persistent shader cache", c.Len()-kept.Len())
		sc.persistent = kept
		c = kept
	}
	c.Merge(sc.fresh)
	if err := c.Save(sc.config.PersistentPath); err != nil {
		err = fmt.Errorf("writing persistent shader cache: %w", err)
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("wrote %d shader programs to %s", c.Len(), sc.config.PersistentPath)
	sc.fresh = NewCollection()
	sc.pruned = prune || sc.pruned
	return nil
}

// Compiled returns the programs compiled since the last flush.
func (sc *ShaderCache) Compiled() *Collection {
	return sc.fresh
}

// StatusHook returns the hook compile results are reported to.
func (sc *ShaderCache) StatusHook() *StatusHook {
	return sc.hook
}

func (sc *ShaderCache) Stats() Stats {
	s := sc.stats
	s.AverageCompileMs = sc.compileTime.Average()
	return s
}

// RecentFailures returns the last compile failures, oldest first.
func (sc *ShaderCache) RecentFailures() []CompileFailure {
	return sc.failures.Items()
}
