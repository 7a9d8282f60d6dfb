package shadercache

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"hash/fnv"

	"golang.org/x/crypto/blake2b"

	"github.com/spaghettifunk/prism/engine/renderer/features"
)

/**
 * @brief Identifies one shader variant: the material identity text and the
 * feature set it was generated for. A key built with NewCacheKey refers to
 * the caller's identity buffer; call Detach before keeping it around.
 */
type CacheKey struct {
	identity []byte
	features features.Set
	hash     uint64
}

func NewCacheKey(identity []byte, f features.Set) CacheKey {
	k := CacheKey{identity: identity, features: f}
	k.UpdateHashCode()
	return k
}

// UpdateHashCode recomputes the hash after the key was modified in place.
func (k *CacheKey) UpdateHashCode() {
	h := fnv.New64a()
	h.Write(k.identity)
	k.hash = h.Sum64() ^ k.features.Hash()
}

func (k CacheKey) Hash() uint64 {
	return k.hash
}

// Equal requires the exact same identity bytes and feature bits.
func (k CacheKey) Equal(other CacheKey) bool {
	return k.hash == other.hash &&
		k.features.Equal(other.features) &&
		bytes.Equal(k.identity, other.identity)
}

// Detach returns a key owning a private copy of the identity.
func (k CacheKey) Detach() CacheKey {
	k.identity = bytes.Clone(k.identity)
	return k
}

func (k CacheKey) Identity() []byte {
	return k.identity
}

func (k CacheKey) Features() features.Set {
	return k.features
}

func (k CacheKey) String() string {
	return string(k.identity)
}

// ContentKey is the key used by the pregenerated and persistent tiers.
func (k CacheKey) ContentKey() string {
	return ContentKey(k.identity, k.features)
}

/**
 * @brief Hex BLAKE2b-256 of identity, a zero separator and the little endian
 * feature bits. Stable across processes and builds as long as the feature
 * indices are.
 */
func ContentKey(identity []byte, f features.Set) string {
	h, _ := blake2b.New256(nil)
	h.Write(identity)
	var tail [5]byte
	binary.LittleEndian.PutUint32(tail[1:], f.Bits())
	h.Write(tail[:])
	return hex.EncodeToString(h.Sum(nil))
}
