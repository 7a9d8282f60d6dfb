package systems

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/prism/engine/assets"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/codegen"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief Directory holding the shader library snippets. Empty serves in-memory sources only. */
	LibraryPath string `toml:"library"`
	/** @brief Emit explicit locations and bindings instead of the legacy declarations. */
	RhiCompatible bool `toml:"rhi_compatible"`
	/** @brief Reload library files when they change on disk. */
	Watch bool `toml:"watch"`
	/** @brief One of debug, info, warn, error. Empty keeps the current level. */
	LogLevel string `toml:"log_level"`

	Cache shadercache.ShaderCacheConfig `toml:"cache"`
}

// LoadShaderSystemConfig reads a TOML config file. RhiCompatible defaults to true.
func LoadShaderSystemConfig(path string) (*ShaderSystemConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &ShaderSystemConfig{RhiCompatible: true}
	if err := toml.Unmarshal(data, config); err != nil {
		err = fmt.Errorf("parsing %s: %w: %s", path, core.ErrInvalidConfig, err.Error())
		core.LogError(err.Error())
		return nil, err
	}
	return config, nil
}

/**
 * @brief Owns the shader library, the shader cache and the program generator
 * of one rendering context. Every method except the library watcher runs on
 * the goroutine owning the graphics device.
 */
type ShaderSystem struct {
	Config *ShaderSystemConfig

	library   *assets.ShaderLibrary
	cache     *shadercache.ShaderCache
	generator *codegen.ProgramGenerator

	libraryChanged atomic.Bool
}

func NewShaderSystem(config *ShaderSystemConfig, compiler shadercache.Compiler, opts ...shadercache.Option) (*ShaderSystem, error) {
	if config == nil {
		err := fmt.Errorf("NewShaderSystem - config is nil: %w", core.ErrInvalidConfig)
		core.LogError(err.Error())
		return nil, err
	}
	if config.LogLevel != "" {
		level, err := core.ParseLogLevel(config.LogLevel)
		if err != nil {
			err = fmt.Errorf("NewShaderSystem - log level %q: %w", config.LogLevel, core.ErrInvalidConfig)
			core.LogError(err.Error())
			return nil, err
		}
		core.SetLogLevel(level)
	}
	if config.Watch && config.LibraryPath == "" {
		err := fmt.Errorf("NewShaderSystem - watching needs a library path: %w", core.ErrInvalidConfig)
		core.LogError(err.Error())
		return nil, err
	}

	library, err := assets.NewShaderLibrary(config.LibraryPath)
	if err != nil {
		return nil, err
	}
	cache, err := shadercache.NewShaderCache(&config.Cache, compiler, opts...)
	if err != nil {
		return nil, err
	}
	generator, err := codegen.NewProgramGenerator(cache, library, config.RhiCompatible)
	if err != nil {
		return nil, err
	}

	ss := &ShaderSystem{
		Config:    config,
		library:   library,
		cache:     cache,
		generator: generator,
	}
	if config.Watch {
		if err := library.Watch(ss.onLibraryChange); err != nil {
			core.LogError("NewShaderSystem - failed to watch %s: %s", config.LibraryPath, err.Error())
			return nil, err
		}
	}
	return ss, nil
}

func (ss *ShaderSystem) onLibraryChange(key string) {
	core.LogInfo("shader library %s changed, cached pipelines will be released", key)
	ss.libraryChanged.Store(true)
}

/**
 * @brief Releases cached pipelines when library files changed since the last
 * call, and stops serving baked programs built from the old sources. Called
 * once per frame.
 * @return true when pipelines were released.
 */
func (ss *ShaderSystem) Update() bool {
	if !ss.libraryChanged.Swap(false) {
		return false
	}
	ss.cache.ReleaseCachedResources(true)
	return true
}

func (ss *ShaderSystem) Generator() *codegen.ProgramGenerator {
	return ss.generator
}

func (ss *ShaderSystem) Cache() *shadercache.ShaderCache {
	return ss.cache
}

func (ss *ShaderSystem) Library() *assets.ShaderLibrary {
	return ss.library
}

/**
 * @brief Shuts down the shader system. Programs compiled this session are
 * written to the persistent cache before the watcher stops.
 */
func (ss *ShaderSystem) Shutdown() error {
	flushErr := ss.cache.Flush()
	ss.cache.ReleaseCachedResources(false)
	if err := ss.library.Close(); err != nil {
		core.LogError("failed to stop shader library watcher: %s", err.Error())
		return err
	}
	return flushErr
}
