// Package cache memoizes decompressed blocks behind a two-tier cache:
// a bounded in-memory tinylfu tier, which hashes each block's logical
// address with xxhash, in front of an optional on-disk pebble tier.
// Generalizes the teacher's decompressioncache package (an in-memory
// bigcache keyed by a formatted string) onto the dependencies its own
// go.mod actually lists.
package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble/v2"
	"github.com/dgryski/go-tinylfu"
)

// Key identifies one cached block: which source archive it came from
// and its logical offset within that archive's decompressed output.
type Key struct {
	Source string
	Offset int64
}

func (k Key) hash() uint64 {
	var h xxhash.Digest
	h.WriteString(k.Source)
	var off [8]byte
	binary.BigEndian.PutUint64(off[:], uint64(k.Offset))
	h.Write(off[:])
	return h.Sum64()
}

func keyHash(k Key) uint64 { return k.hash() }

// Cache is a bounded in-memory block cache, optionally backed by a
// persistent on-disk tier. The zero value is not usable; construct one
// with New or Open.
type Cache struct {
	mem  *tinylfu.T[Key, []byte]
	disk *pebble.DB
}

// New constructs a memory-only cache holding up to capacity blocks.
func New(capacity int) *Cache {
	return &Cache{mem: tinylfu.New[Key, []byte](capacity, capacity*10, keyHash)}
}

// Open constructs a cache with both tiers: an in-memory tinylfu front
// end of the given capacity, and a pebble database at dir persisting
// evicted blocks so a later process can skip decompression entirely.
func Open(dir string, capacity int) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	c := &Cache{disk: db}
	c.mem = tinylfu.New[Key, []byte](capacity, capacity*10, keyHash, tinylfu.OnEvict(c.spillToDisk))
	return c, nil
}

// spillToDisk persists a block evicted from the memory tier so a disk
// tier, if configured, retains it past the in-memory cache's horizon.
func (c *Cache) spillToDisk(k Key, v []byte) {
	if c.disk == nil {
		return
	}
	_ = c.disk.Set(diskKey(k), v, pebble.NoSync)
}

func diskKey(k Key) []byte {
	b := make([]byte, len(k.Source)+8)
	copy(b, k.Source)
	binary.BigEndian.PutUint64(b[len(k.Source):], uint64(k.Offset))
	return b
}

// Get returns a cached block, checking the memory tier first and
// falling back to disk (promoting the hit back into memory) when a
// disk tier is configured.
func (c *Cache) Get(k Key) ([]byte, bool) {
	if v, ok := c.mem.Get(k); ok {
		return v, true
	}
	if c.disk == nil {
		return nil, false
	}
	v, closer, err := c.disk.Get(diskKey(k))
	if err != nil {
		return nil, false
	}
	defer closer.Close()
	blob := append([]byte(nil), v...)
	c.mem.Add(k, blob)
	return blob, true
}

// Put stores a block in the memory tier; it may later spill to disk on
// eviction if a disk tier is configured.
func (c *Cache) Put(k Key, blob []byte) {
	c.mem.Add(k, blob)
}

// Close releases the disk tier, if any. A memory-only cache need not
// be closed.
func (c *Cache) Close() error {
	if c.disk == nil {
		return nil
	}
	return c.disk.Close()
}
