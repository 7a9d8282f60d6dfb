//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Bakes the programs listed in shaders/bake.toml into shaders/shaders.qsbc.
func (Build) Shaders() error {
	if _, err := executeCmd("go", withArgs("run", "..", "-manifest", "bake.toml", "-out", "shaders.qsbc"), withDir("shaders"), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the prism bake tool.
func (Build) Tool() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/prism", "."), withStream()); err != nil {
		return err
	}
	return nil
}
