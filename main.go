/*
prism bakes the shader programs listed in a manifest into a pregenerated
shader collection that the shader cache loads at startup.

	prism -manifest bake.toml -out shaders.qsbc
*/
package main

import (
	"flag"
	"os"

	"github.com/charmbracelet/log"

	"github.com/spaghettifunk/prism/engine/bake"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/shadercache"
)

func main() {
	manifestPath := flag.String("manifest", "bake.toml", "manifest listing the programs to bake")
	outPath := flag.String("out", "shaders.qsbc", "collection file to write")
	glslc := flag.String("glslc", "glslc", "path of the glslc executable")
	targetEnv := flag.String("target-env", "vulkan1.2", "glslc --target-env value")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		core.SetLogLevel(log.DebugLevel)
	}

	manifest, err := bake.LoadManifest(*manifestPath)
	if err != nil {
		core.LogFatal("failed to load manifest: %s", err.Error())
	}

	baker, err := bake.NewBaker(manifest, &shadercache.GlslcCompiler{Path: *glslc, TargetEnv: *targetEnv})
	if err != nil {
		core.LogFatal("failed to start baking: %s", err.Error())
	}
	defer baker.Close()

	collection, bakeErr := baker.Bake()
	if collection.Len() > 0 {
		if err := collection.Save(*outPath); err != nil {
			core.LogFatal("failed to write %s: %s", *outPath, err.Error())
		}
		core.LogInfo("wrote %d programs to %s", collection.Len(), *outPath)
	}
	if bakeErr != nil {
		for _, f := range baker.RecentFailures() {
			core.LogError("%s (%s): %s", f.Key, f.Stage, f.Diagnostic)
		}
		core.LogError("%s", bakeErr.Error())
		baker.Close()
		os.Exit(1)
	}
}
