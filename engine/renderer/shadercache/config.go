package shadercache

import (
	"fmt"

	"github.com/spaghettifunk/prism/engine/core"
)

const (
	DefaultShadingLanguageVersion = "#version 440"
	DefaultRecentFailures         = 16
)

/** @brief Configuration for the shader cache. */
type ShaderCacheConfig struct {
	/** @brief First line of every stage, e.g. "#version 440". */
	ShadingLanguageVersion string `toml:"shading_language_version"`
	/** @brief Build-time baked collection, read-only. Empty disables the tier. */
	PregeneratedPath string `toml:"pregenerated"`
	/** @brief Collection file read and written by Flush. Empty disables the tier. */
	PersistentPath string `toml:"persistent"`
	/** @brief Skip the persistent tier on lookups, for slow storage. Flush still writes it. */
	SkipPersistentLookup bool `toml:"skip_persistent_lookup"`
	/** @brief Write the preprocessed sources of failing programs to DumpDirectory. */
	DumpFailedShaders bool   `toml:"dump_failed_shaders"`
	DumpDirectory     string `toml:"dump_directory"`
	/** @brief How many compile failures RecentFailures keeps. */
	RecentFailures int `toml:"recent_failures"`
}

func (c *ShaderCacheConfig) validate() error {
	if c.ShadingLanguageVersion == "" {
		c.ShadingLanguageVersion = DefaultShadingLanguageVersion
	}
	if c.RecentFailures == 0 {
		c.RecentFailures = DefaultRecentFailures
	}
	if c.RecentFailures < 0 {
		return fmt.Errorf("recent failure count must be positive, got %d: %w", c.RecentFailures, core.ErrInvalidConfig)
	}
	if c.DumpFailedShaders && c.DumpDirectory == "" {
		return fmt.Errorf("dump_failed_shaders requires dump_directory: %w", core.ErrInvalidConfig)
	}
	return nil
}
