package cache

import (
	"fmt"
	"io"
	"sort"
)

// Stepper produces the next chunk of a decompression stream along with
// the stepper that will produce the chunk after it. A final call need
// not return io.EOF explicitly — ReaderAt infers end-of-stream once a
// checkpoint's bytes reach the declared size. A Stepper backed by a
// stateful, non-repeatable source (a decoder consuming a shared
// io.Reader) must tolerate being invoked again for a checkpoint whose
// cached block was evicted before a later read revisited it; the
// Steppers in this module only ever decompress self-contained byte
// slices, so re-invocation is harmless.
type Stepper func() (next Stepper, blob []byte, err error)

// ReaderAt exposes a Stepper-driven decompression as a seekable
// io.ReaderAt, caching each block it decompresses so repeated reads of
// the same region don't re-run the decoder. Grounded on the teacher's
// decompressioncache.ReaderAt, generalized from a single bigcache
// instance to the two-tier Cache this package provides.
type ReaderAt struct {
	cache   *Cache
	source  string
	size    int64
	offsets []checkpoint
}

type checkpoint struct {
	stepper Stepper
	offset  int64
	err     error
}

// NewReaderAt builds a cached reader over a decompression stream of
// size bytes, identified by source (typically a content hash of the
// compressed input, so the same archive reused across a process shares
// cache entries).
func NewReaderAt(c *Cache, source string, size int64, stepper Stepper) *ReaderAt {
	return &ReaderAt{
		cache:   c,
		source:  source,
		size:    size,
		offsets: []checkpoint{{stepper: stepper, offset: 0}},
	}
}

// Size reports the reader's total decompressed length.
func (r *ReaderAt) Size() int64 { return r.size }

// checkpointBefore returns the index of the last checkpoint whose
// offset does not exceed off: the furthest point already known that a
// read starting at off can resume decompression from.
func (r *ReaderAt) checkpointBefore(off int64) int {
	return sort.Search(len(r.offsets), func(i int) bool {
		return r.offsets[i].offset > off
	}) - 1
}

// fill returns the decompressed block for checkpoint i, running its
// stepper on a cache miss, recording any resulting error on the
// checkpoint, and appending a checkpoint for the block that follows
// when one isn't known yet.
func (r *ReaderAt) fill(i int) []byte {
	key := Key{Source: r.source, Offset: r.offsets[i].offset}
	// A cached block is returned as-is only when the checkpoint after it
	// is already known or it is the last block; otherwise the stepper
	// runs so the next checkpoint can be appended.
	if blob, ok := r.cache.Get(key); ok && (i+1 < len(r.offsets) || r.offsets[i].offset+int64(len(blob)) >= r.size) {
		return blob
	}
	next, blob, err := r.offsets[i].stepper()
	r.cache.Put(key, blob)
	r.offsets[i].err = err
	switch {
	case r.offsets[i].offset+int64(len(blob)) >= r.size:
		r.offsets[i].err = io.EOF
	case i+1 == len(r.offsets):
		r.offsets = append(r.offsets, checkpoint{stepper: next, offset: r.offsets[i].offset + int64(len(blob))})
	}
	return blob
}

// ReadAt implements io.ReaderAt, walking forward from the nearest known
// checkpoint and decompressing only the blocks the requested range
// actually touches.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	if off+int64(len(p)) > r.size {
		p = p[:r.size-off]
	}

	filled := 0
	for i := r.checkpointBefore(off); ; i++ {
		blob := r.fill(i)
		destCut, srcCut, ok := overlap(off, len(p), r.offsets[i].offset, len(blob))
		if !ok {
			if r.offsets[i].offset+int64(len(blob)) <= off && r.offsets[i].err == nil {
				continue // block ends before the requested range
			}
			return filled, fmt.Errorf("cache: block at %d does not overlap requested range [%d,%d)", r.offsets[i].offset, off, off+int64(len(p)))
		}
		n := copy(p[destCut:], blob[srcCut:])
		filled = destCut + n
		if filled == len(p) || r.offsets[i].err != nil {
			return filled, r.offsets[i].err
		}
	}
}

// overlap computes where two half-open byte ranges [aOff,aOff+aLen) and
// [bOff,bOff+bLen) intersect, expressed as offsets into each range.
func overlap(aOff int64, aLen int, bOff int64, bLen int) (aInner, bInner int, ok bool) {
	if aOff >= bOff+int64(bLen) || bOff >= aOff+int64(aLen) {
		return 0, 0, false
	}
	if aOff > bOff {
		bInner = int(aOff - bOff)
	} else {
		aInner = int(bOff - aOff)
	}
	return aInner, bInner, true
}
