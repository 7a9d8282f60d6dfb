package assets

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/prism/engine/assets/loaders"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const (
	includeSearch        = `#include "`
	copyrightHeaderStart = "/****************************************************************************"
	copyrightHeaderEnd   = "****************************************************************************/"

	rhiSubdirectory = "rhi"
)

/**
 * @brief Serves shader library snippets by key and expands #include
 * directives. Sources come from memory first, then <dir>/rhi/<key>, then
 * <dir>/<key>. Files read from disk are cached until a watcher event
 * reports them changed.
 */
type ShaderLibrary struct {
	dir     string
	sources map[string][]byte
	files   map[string][]byte
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	done     chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	onChange func(path string)
	wg       sync.WaitGroup
}

func NewShaderLibrary(dir string) (*ShaderLibrary, error) {
	if dir != "" {
		s, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("shader library directory: %w", err)
		}
		if !s.IsDir() {
			return nil, fmt.Errorf("shader library path %s is not a directory: %w", dir, core.ErrInvalidConfig)
		}
	}

	sl := &ShaderLibrary{
		dir:     dir,
		sources: make(map[string][]byte),
		files:   make(map[string][]byte),
		loaders: make(map[metadata.ResourceType]Loader),
		done:    make(chan struct{}),
	}
	sl.registerLoader(metadata.ResourceTypeShader, &loaders.ShaderLoader{})
	sl.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})
	return sl, nil
}

// Register loaders for each asset type
func (sl *ShaderLibrary) registerLoader(assetType metadata.ResourceType, loader Loader) {
	sl.loaders[assetType] = loader
}

// LoadResource loads a file with the loader registered for its type.
func (sl *ShaderLibrary) LoadResource(path string, params interface{}) (*metadata.Resource, error) {
	rt := DetermineResourceType(path)
	loader, ok := sl.loaders[rt]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset %s (type %d)", path, rt)
	}
	return loader.Load(path, rt, params)
}

// SetShaderSource registers in-memory source for key, shadowing any file.
func (sl *ShaderLibrary) SetShaderSource(key string, src []byte) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	sl.sources[key] = append([]byte(nil), src...)
}

/**
 * @brief Returns the source for key with its own includes expanded.
 * @return ErrIncludeNotFound when no source exists for key.
 */
func (sl *ShaderLibrary) GetShaderSource(key string) ([]byte, error) {
	raw, err := sl.rawSource(key)
	if err != nil {
		return nil, err
	}
	return sl.resolve(raw, key, []string{key})
}

/**
 * @brief Replaces every #include "x" in src by the contents of x, stripping
 * copyright headers and fencing the inlined text with begin/end comments.
 * Nested includes are expanded; a file including itself, directly or not,
 * is an error.
 */
func (sl *ShaderLibrary) ResolveIncludeFiles(src []byte, info string) ([]byte, error) {
	return sl.resolve(src, info, nil)
}

func (sl *ShaderLibrary) resolve(src []byte, info string, stack []string) ([]byte, error) {
	if !bytes.Contains(src, []byte(includeSearch)) {
		return src, nil
	}

	var out bytes.Buffer
	rest := src
	for {
		pos := bytes.Index(rest, []byte(includeSearch))
		if pos < 0 {
			out.Write(rest)
			break
		}
		out.Write(rest[:pos])
		rest = rest[pos+len(includeSearch):]

		endQuote := bytes.IndexByte(rest, '"')
		if endQuote < 0 {
			err := fmt.Errorf("unterminated include in %s: %w", info, core.ErrUnterminatedInclude)
			core.LogError(err.Error())
			return nil, err
		}
		include := string(rest[:endQuote])
		rest = rest[endQuote+1:]

		for _, s := range stack {
			if s == include {
				err := fmt.Errorf("%s includes %s again (%s): %w", info, include, strings.Join(stack, " -> "), core.ErrIncludeCycle)
				core.LogError(err.Error())
				return nil, err
			}
		}

		raw, err := sl.rawSource(include)
		if err != nil {
			core.LogError("failed to find include file %s required by %s", include, info)
			return nil, err
		}
		contents, err := sl.resolve(stripCopyrightHeader(raw), include, append(stack, include))
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&out, "\n// begin \"%s\"\n", include)
		out.Write(contents)
		fmt.Fprintf(&out, "\n// end \"%s\"\n", include)
	}
	return out.Bytes(), nil
}

func stripCopyrightHeader(src []byte) []byte {
	if !bytes.HasPrefix(src, []byte(copyrightHeaderStart)) {
		return src
	}
	if clip := bytes.Index(src, []byte(copyrightHeaderEnd)); clip >= 0 {
		return src[clip+len(copyrightHeaderEnd):]
	}
	return src
}

func (sl *ShaderLibrary) rawSource(key string) ([]byte, error) {
	sl.mutex.RLock()
	if src, ok := sl.sources[key]; ok {
		sl.mutex.RUnlock()
		return src, nil
	}
	if src, ok := sl.files[key]; ok {
		sl.mutex.RUnlock()
		return src, nil
	}
	sl.mutex.RUnlock()

	if sl.dir == "" {
		return nil, fmt.Errorf("%s: %w", key, core.ErrIncludeNotFound)
	}

	candidates := []string{
		filepath.Join(sl.dir, rhiSubdirectory, key),
		filepath.Join(sl.dir, key),
	}
	for _, path := range candidates {
		res, err := sl.loaders[metadata.ResourceTypeShader].Load(path, metadata.ResourceTypeShader, map[string]string{"name": key})
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		data := res.Data.([]byte)

		sl.mutex.Lock()
		sl.files[key] = data
		sl.mutex.Unlock()
		return data, nil
	}
	return nil, fmt.Errorf("%s: %w", key, core.ErrIncludeNotFound)
}

// Keys lists every key currently cached, in-memory sources included.
func (sl *ShaderLibrary) Keys() []string {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()

	keys := make([]string, 0, len(sl.sources)+len(sl.files))
	for k := range sl.sources {
		keys = append(keys, k)
	}
	for k := range sl.files {
		if _, dup := sl.sources[k]; !dup {
			keys = append(keys, k)
		}
	}
	return keys
}

/**
 * @brief Starts watching the library directory recursively. Changed or
 * removed shader files are evicted from the cache and onChange is called
 * with the library key of the file.
 */
func (sl *ShaderLibrary) Watch(onChange func(key string)) error {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()

	if sl.isClosed {
		return errors.New("shader library already closed")
	}
	if sl.dir == "" {
		return fmt.Errorf("shader library has no directory to watch: %w", core.ErrInvalidConfig)
	}
	if sl.fsnotify != nil {
		return errors.New("shader library is already being watched")
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watchRecursive(fsWatch, sl.dir, false); err != nil {
		fsWatch.Close()
		return err
	}
	sl.fsnotify = fsWatch
	sl.onChange = onChange

	sl.wg.Add(1)
	go sl.start(fsWatch)
	return nil
}

func (sl *ShaderLibrary) start(w *fsnotify.Watcher) {
	defer sl.wg.Done()
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s != nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					if err := watchRecursive(w, e.Name, false); err != nil {
						core.LogWarn("failed to watch %s: %s", e.Name, err.Error())
					}
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				sl.handleFileEvent(e.Name)
			}

		case e, ok := <-w.Errors:
			if !ok {
				return
			}
			core.LogError(e.Error())

		case <-sl.done:
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func watchRecursive(w *fsnotify.Watcher, path string, unWatch bool) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if unWatch {
			return w.Remove(walkPath)
		}
		return w.Add(walkPath)
	})
}

// Handle the creation, modification or removal of a file
func (sl *ShaderLibrary) handleFileEvent(path string) {
	if DetermineResourceType(path) != metadata.ResourceTypeShader {
		return
	}
	key, ok := sl.keyForPath(path)
	if !ok {
		return
	}

	sl.mutex.Lock()
	delete(sl.files, key)
	cb := sl.onChange
	sl.mutex.Unlock()

	core.LogDebug("shader library file changed: %s", key)
	if cb != nil {
		cb(key)
	}
}

func (sl *ShaderLibrary) keyForPath(path string) (string, bool) {
	rel, err := filepath.Rel(sl.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimPrefix(rel, rhiSubdirectory+"/"), true
}

// Close stops the watcher, if any. The library stays usable for lookups.
func (sl *ShaderLibrary) Close() error {
	sl.mutex.Lock()
	if sl.isClosed {
		sl.mutex.Unlock()
		return nil
	}
	sl.isClosed = true
	close(sl.done)
	w := sl.fsnotify
	sl.fsnotify = nil
	sl.mutex.Unlock()

	if w == nil {
		return nil
	}
	// the watcher goroutine takes the mutex in handleFileEvent, wait unlocked
	err := w.Close()
	sl.wg.Wait()
	return err
}

func DetermineResourceType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".glsllib", ".glsl", ".vert", ".frag", ".tesc", ".tese", ".geom":
		return metadata.ResourceTypeShader
	case ".spv":
		return metadata.ResourceTypeBinary
	case ".qsbc":
		return metadata.ResourceTypeShaderCollection
	case ".txt", ".toml":
		return metadata.ResourceTypeText
	default:
		return metadata.ResourceTypeNone
	}
}
