//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every unit test.
func (Test) All() error {
	if _, err := executeCmd("go", withArgs("test", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

// Runs the tests that need glslc on the PATH, after baking the shaders.
func (Test) Shaders() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("test", "-run", "Glslc", "./engine/renderer/shadercache/..."), withStream()); err != nil {
		return err
	}
	return nil
}
