package materialkey

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/features"
)

const DataWords = 4

/**
 * @brief A bit-packed description of a default material. Its string form is
 * the shader identity handed to the shader cache.
 */
type Key struct {
	data     [DataWords]uint32
	features features.Set
}

func NewKey(f features.Set) Key {
	return Key{features: f}
}

func (k *Key) Features() features.Set {
	return k.features
}

func (k *Key) Hash() uint64 {
	h := fnv.New64a()
	h.Write(k.Bytes())
	return h.Sum64() ^ k.features.Hash()
}

func (k *Key) Equal(other *Key) bool {
	return k.data == other.data && k.features.Equal(other.features)
}

// ToString renders every property in declaration order as name=value pairs
// separated by ';'.
func (k *Key) ToString(p *Properties) string {
	parts := make([]string, 0, len(p.all))
	var sb strings.Builder
	for _, prop := range p.all {
		sb.Reset()
		prop.appendString(&sb, k)
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, ";")
}

// Identity is the shader identity for the cache.
func (k *Key) Identity(p *Properties) []byte {
	return []byte(k.ToString(p))
}

/**
 * @brief Rebuilds a key from its string form. Properties absent from s keep
 * their zero value; unknown names are skipped.
 */
func FromString(s string, p *Properties, f features.Set) (Key, error) {
	k := NewKey(f)
	if s == "" {
		return k, nil
	}
	for _, pair := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Key{}, fmt.Errorf("material key entry %q has no value: %w", pair, core.ErrInvalidMaterialKey)
		}
		prop := p.lookup(name)
		if prop == nil {
			core.LogDebug("ignoring unknown material key property %s", name)
			continue
		}
		if !prop.parse(value, &k) {
			return Key{}, fmt.Errorf("material key %s=%s: %w", name, value, core.ErrInvalidMaterialKey)
		}
	}
	return k, nil
}

// Bytes returns the packed words in little-endian order.
func (k *Key) Bytes() []byte {
	out := make([]byte, 0, DataWords*4)
	for _, w := range k.data {
		out = binary.LittleEndian.AppendUint32(out, w)
	}
	return out
}

func FromBytes(b []byte, f features.Set) (Key, error) {
	if len(b) != DataWords*4 {
		return Key{}, fmt.Errorf("material key of %d bytes, expected %d: %w", len(b), DataWords*4, core.ErrInvalidMaterialKey)
	}
	k := NewKey(f)
	for i := range k.data {
		k.data[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return k, nil
}
