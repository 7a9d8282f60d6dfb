package shadercache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
	"github.com/spaghettifunk/prism/engine/renderer/metadata"
)

const (
	CollectionMagic   uint32 = 0x26a9b358
	CollectionVersion uint32 = 1

	// MaxStageCodeSize bounds a single stage blob read from a collection.
	MaxStageCodeSize = 64 << 20
)

type StageBlob struct {
	Stage metadata.ShaderStage
	Code  []byte
}

/** @brief A baked program: every stage's SPIR-V plus what it was built for. */
type CollectionEntry struct {
	Key      string
	Features features.Set
	Flags    metadata.ProgramFlags
	Stages   []StageBlob
}

/**
 * @brief An ordered set of baked programs addressed by content key.
 *
 * Layout, little endian:
 *   magic u32, version u32, count u32
 *   per entry: key len u16, key, feature bits u32, flags u32, stage count u8
 *   per stage: stage u8, code len u32, code
 */
type Collection struct {
	entries map[string]*CollectionEntry
}

func NewCollection() *Collection {
	return &Collection{entries: make(map[string]*CollectionEntry)}
}

func LoadCollection(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := ReadCollection(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func ReadCollection(r io.Reader) (*Collection, error) {
	var header [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading collection header: %w", core.ErrCollectionFormat)
	}
	if header[0] != CollectionMagic {
		return nil, fmt.Errorf("bad magic 0x%08x: %w", header[0], core.ErrCollectionFormat)
	}
	if header[1] != CollectionVersion {
		return nil, fmt.Errorf("got version %d, want %d: %w", header[1], CollectionVersion, core.ErrCollectionVersion)
	}

	c := NewCollection()
	for i := uint32(0); i < header[2]; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		c.entries[e.Key] = e
	}
	return c, nil
}

func readEntry(r io.Reader) (*CollectionEntry, error) {
	var keyLen uint16
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return nil, truncated(err)
	}
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, truncated(err)
	}

	var fixed struct {
		Bits   uint32
		Flags  uint32
		Stages uint8
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, truncated(err)
	}

	e := &CollectionEntry{
		Key:      string(key),
		Features: features.FromBits(fixed.Bits),
		Flags:    metadata.ProgramFlags(fixed.Flags),
		Stages:   make([]StageBlob, 0, fixed.Stages),
	}
	for s := uint8(0); s < fixed.Stages; s++ {
		var stageHeader struct {
			Stage uint8
			Len   uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &stageHeader); err != nil {
			return nil, truncated(err)
		}
		if stageHeader.Len > MaxStageCodeSize {
			return nil, fmt.Errorf("stage of %d bytes exceeds %d: %w", stageHeader.Len, MaxStageCodeSize, core.ErrCollectionFormat)
		}
		// grows with the data actually present, not the declared length
		var code bytes.Buffer
		if _, err := io.CopyN(&code, r, int64(stageHeader.Len)); err != nil {
			return nil, truncated(err)
		}
		e.Stages = append(e.Stages, StageBlob{Stage: metadata.ShaderStage(stageHeader.Stage), Code: code.Bytes()})
	}
	return e, nil
}

func truncated(err error) error {
	return fmt.Errorf("truncated collection (%s): %w", err.Error(), core.ErrCollectionFormat)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// WriteTo serializes the collection, entries sorted by key.
func (c *Collection) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	le := binary.LittleEndian

	if err := binary.Write(bw, le, [3]uint32{CollectionMagic, CollectionVersion, uint32(len(c.entries))}); err != nil {
		return cw.n, err
	}
	for _, k := range c.Keys() {
		e := c.entries[k]
		if len(e.Key) > math.MaxUint16 || len(e.Stages) > math.MaxUint8 {
			return cw.n, fmt.Errorf("entry %s does not fit the collection format: %w", e.Key, core.ErrCollectionFormat)
		}
		if err := binary.Write(bw, le, uint16(len(e.Key))); err != nil {
			return cw.n, err
		}
		if _, err := bw.WriteString(e.Key); err != nil {
			return cw.n, err
		}
		fixed := struct {
			Bits   uint32
			Flags  uint32
			Stages uint8
		}{e.Features.Bits(), uint32(e.Flags), uint8(len(e.Stages))}
		if err := binary.Write(bw, le, fixed); err != nil {
			return cw.n, err
		}
		for _, s := range e.Stages {
			if err := binary.Write(bw, le, struct {
				Stage uint8
				Len   uint32
			}{uint8(s.Stage), uint32(len(s.Code))}); err != nil {
				return cw.n, err
			}
			if _, err := bw.Write(s.Code); err != nil {
				return cw.n, err
			}
		}
	}
	err := bw.Flush()
	return cw.n, err
}

// Save writes the collection next to path and renames it into place.
func (c *Collection) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := c.WriteTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *Collection) Lookup(key string) (*CollectionEntry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Put adds or replaces the entry stored under e.Key.
func (c *Collection) Put(e CollectionEntry) {
	c.entries[e.Key] = &e
}

// Merge copies every entry of other into c, replacing duplicates.
func (c *Collection) Merge(other *Collection) {
	for k, e := range other.entries {
		c.entries[k] = e
	}
}

func (c *Collection) Len() int {
	return len(c.entries)
}

func (c *Collection) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
