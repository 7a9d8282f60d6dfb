package shadercache

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

// Compiler turns one preprocessed GLSL stage into SPIR-V.
type Compiler interface {
	Compile(stage metadata.ShaderStage, name string, source []byte) ([]byte, error)
}

/** @brief A rejected shader stage, with the compiler's diagnostic output. */
type CompileError struct {
	Stage      metadata.ShaderStage
	Name       string
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader %s failed to compile: %s", e.Stage, e.Name, e.Diagnostic)
}

// Diagnostic extracts the compiler output from err, or err's text.
func Diagnostic(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Diagnostic
	}
	return err.Error()
}

/**
 * @brief Compiles GLSL through the shaderc command line compiler. The source
 * is piped on stdin and the SPIR-V read back from stdout.
 */
type GlslcCompiler struct {
	/** @brief Executable to run, "glslc" when empty. */
	Path string
	/** @brief Value for --target-env, vulkan1.2 when empty. */
	TargetEnv string
	/** @brief Extra flags, e.g. -O or -g. */
	Args []string
}

func (g *GlslcCompiler) command(stage metadata.ShaderStage) (string, []string) {
	path := g.Path
	if path == "" {
		path = "glslc"
	}
	env := g.TargetEnv
	if env == "" {
		env = "vulkan1.2"
	}
	args := []string{
		"-fshader-stage=" + stage.Extension(),
		"--target-env=" + env,
	}
	args = append(args, g.Args...)
	args = append(args, "-o", "-", "-")
	return path, args
}

func (g *GlslcCompiler) Compile(stage metadata.ShaderStage, name string, source []byte) ([]byte, error) {
	if stage.Extension() == "" {
		return nil, &CompileError{Stage: stage, Name: name, Diagnostic: "unsupported shader stage"}
	}
	path, args := g.command(stage)

	cmd := exec.Command(path, args...)
	cmd.Stdin = bytes.NewReader(source)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{Stage: stage, Name: name, Diagnostic: strings.TrimSpace(stderr.String())}
		}
		return nil, fmt.Errorf("running %s: %w", path, err)
	}
	if stdout.Len() == 0 || stdout.Len()%4 != 0 {
		return nil, &CompileError{Stage: stage, Name: name, Diagnostic: fmt.Sprintf("invalid SPIR-V output of %d bytes", stdout.Len())}
	}
	return stdout.Bytes(), nil
}
