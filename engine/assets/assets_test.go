package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveIncludeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rhi", "lighting.glsllib"),
		copyrightHeaderStart+"\n** license\n"+copyrightHeaderEnd+"\nfloat light() { return 1.0; }")
	writeFile(t, filepath.Join(dir, "common.glsllib"), "#include \"lighting.glsllib\"\nfloat common() { return light(); }")

	lib, err := NewShaderLibrary(dir)
	require.NoError(t, err)

	out, err := lib.ResolveIncludeFiles([]byte("#include \"common.glsllib\"\nvoid main() {}\n"), "matA")
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "\n// begin \"common.glsllib\"\n")
	assert.Contains(t, text, "\n// begin \"lighting.glsllib\"\n")
	assert.Contains(t, text, "float light() { return 1.0; }")
	assert.Contains(t, text, "\n// end \"lighting.glsllib\"\n")
	assert.NotContains(t, text, "license")
	assert.NotContains(t, text, "#include")
	assert.Contains(t, text, "void main() {}")
}

func TestResolvePrefersMemoryThenRhi(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rhi", "a.glsllib"), "rhi version")
	writeFile(t, filepath.Join(dir, "a.glsllib"), "plain version")
	writeFile(t, filepath.Join(dir, "b.glsllib"), "plain b")

	lib, err := NewShaderLibrary(dir)
	require.NoError(t, err)

	src, err := lib.GetShaderSource("a.glsllib")
	require.NoError(t, err)
	assert.Equal(t, "rhi version", string(src))

	src, err = lib.GetShaderSource("b.glsllib")
	require.NoError(t, err)
	assert.Equal(t, "plain b", string(src))

	lib.SetShaderSource("a.glsllib", []byte("memory version"))
	src, err = lib.GetShaderSource("a.glsllib")
	require.NoError(t, err)
	assert.Equal(t, "memory version", string(src))
	assert.ElementsMatch(t, []string{"a.glsllib", "b.glsllib"}, lib.Keys())
}

func TestResolveErrors(t *testing.T) {
	lib, err := NewShaderLibrary("")
	require.NoError(t, err)
	lib.SetShaderSource("loop1.glsllib", []byte("#include \"loop2.glsllib\""))
	lib.SetShaderSource("loop2.glsllib", []byte("#include \"loop1.glsllib\""))

	_, err = lib.ResolveIncludeFiles([]byte("#include \"missing.glsllib\""), "matA")
	assert.ErrorIs(t, err, core.ErrIncludeNotFound)

	_, err = lib.ResolveIncludeFiles([]byte("#include \"unterminated"), "matA")
	assert.ErrorIs(t, err, core.ErrUnterminatedInclude)

	_, err = lib.ResolveIncludeFiles([]byte("#include \"loop1.glsllib\""), "matA")
	assert.ErrorIs(t, err, core.ErrIncludeCycle)

	_, err = lib.GetShaderSource("nothing")
	assert.ErrorIs(t, err, core.ErrIncludeNotFound)
}

func TestNewShaderLibraryRejectsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.glsllib")
	writeFile(t, path, "x")

	_, err := NewShaderLibrary(path)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewShaderLibrary(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestWatchEvictsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rhi", "watched.glsllib")
	writeFile(t, path, "first")

	lib, err := NewShaderLibrary(dir)
	require.NoError(t, err)
	defer lib.Close()

	changed := make(chan string, 8)
	require.NoError(t, lib.Watch(func(key string) {
		select {
		case changed <- key:
		default:
		}
	}))

	src, err := lib.GetShaderSource("watched.glsllib")
	require.NoError(t, err)
	assert.Equal(t, "first", string(src))

	writeFile(t, path, "second")

	select {
	case key := <-changed:
		assert.Equal(t, "watched.glsllib", key)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	assert.Eventually(t, func() bool {
		src, err := lib.GetShaderSource("watched.glsllib")
		return err == nil && string(src) == "second"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDetermineResourceType(t *testing.T) {
	assert.Equal(t, metadata.ResourceTypeShader, DetermineResourceType("x/func.glsllib"))
	assert.Equal(t, metadata.ResourceTypeShader, DetermineResourceType("a.frag"))
	assert.Equal(t, metadata.ResourceTypeBinary, DetermineResourceType("a.spv"))
	assert.Equal(t, metadata.ResourceTypeShaderCollection, DetermineResourceType("shaders.qsbc"))
	assert.Equal(t, metadata.ResourceTypeNone, DetermineResourceType("a.png"))
}

func TestLoadResource(t *testing.T) {
	dir := t.TempDir()
	spv := filepath.Join(dir, "a.spv")
	require.NoError(t, os.WriteFile(spv, []byte{0x03, 0x02, 0x23, 0x07}, 0o644))

	lib, err := NewShaderLibrary(dir)
	require.NoError(t, err)

	res, err := lib.LoadResource(spv, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.DataSize)

	_, err = lib.LoadResource(filepath.Join(dir, "a.png"), nil)
	assert.Error(t, err)
}

func TestWatchAndCloseFromManyGoroutines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.glsllib"), "float a;\n")
	sl, err := NewShaderLibrary(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	watching := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			watching <- sl.Watch(func(string) {})
		}()
	}
	wg.Wait()
	close(watching)
	started := 0
	for err := range watching {
		if err == nil {
			started++
		}
	}
	assert.Equal(t, 1, started)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sl.Close())
		}()
	}
	wg.Wait()
	assert.Error(t, sl.Watch(func(string) {}))
}
