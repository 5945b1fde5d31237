package cache

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCachePutGet(t *testing.T) {
	c := New(4)
	k := Key{Source: "archive-a", Offset: 0}
	if _, ok := c.Get(k); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(k, []byte("block data"))
	got, ok := c.Get(k)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if string(got) != "block data" {
		t.Fatalf("got %q", got)
	}
}

func TestCacheKeysAreDistinctBySourceAndOffset(t *testing.T) {
	c := New(4)
	c.Put(Key{Source: "a", Offset: 0}, []byte("a0"))
	c.Put(Key{Source: "a", Offset: 4}, []byte("a4"))
	c.Put(Key{Source: "b", Offset: 0}, []byte("b0"))

	got, ok := c.Get(Key{Source: "a", Offset: 4})
	if !ok || string(got) != "a4" {
		t.Fatalf("got %q, ok=%v", got, ok)
	}
	got, ok = c.Get(Key{Source: "b", Offset: 0})
	if !ok || string(got) != "b0" {
		t.Fatalf("got %q, ok=%v", got, ok)
	}
}

// chunkingStepper splits data into fixed-size blocks, one Stepper call
// per block, the way a real decompressor would hand back successive
// chunks of decoded output.
func chunkingStepper(data []byte, blockSize int) Stepper {
	var step Stepper
	step = func() (Stepper, []byte, error) {
		if len(data) == 0 {
			return nil, nil, io.EOF
		}
		n := min(blockSize, len(data))
		chunk := data[:n]
		rest := data[n:]
		if len(rest) == 0 {
			return nil, chunk, nil
		}
		return chunkingStepper(rest, blockSize), chunk, nil
	}
	return step
}

func TestReaderAtSequentialRead(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	c := New(16)
	r := NewReaderAt(c, "seq-test", int64(len(data)), chunkingStepper(data, 8))

	got := make([]byte, len(data))
	n, err := r.ReadAt(got, 0)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("got n=%d, want %d", n, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestReaderAtRandomAccessReusesCache(t *testing.T) {
	data := []byte("0123456789ABCDEF")
	calls := 0
	var makeStepper func([]byte) Stepper
	makeStepper = func(remaining []byte) Stepper {
		return func() (Stepper, []byte, error) {
			calls++
			if len(remaining) == 0 {
				return nil, nil, io.EOF
			}
			n := min(4, len(remaining))
			chunk := remaining[:n]
			rest := remaining[n:]
			if len(rest) == 0 {
				return nil, chunk, nil
			}
			return makeStepper(rest), chunk, nil
		}
	}
	c := New(16)
	r := NewReaderAt(c, "random-test", int64(len(data)), makeStepper(data))

	buf := make([]byte, 4)
	if _, err := r.ReadAt(buf, 8); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "89AB" {
		t.Fatalf("got %q", buf)
	}
	firstCalls := calls

	// Re-reading the same block should hit the cache and not invoke
	// the stepper again.
	if _, err := r.ReadAt(buf, 8); err != nil {
		t.Fatal(err)
	}
	if calls != firstCalls {
		t.Fatalf("expected no additional stepper calls on cache hit, got %d -> %d", firstCalls, calls)
	}
}

func TestReaderAtReadPastEndReturnsEOF(t *testing.T) {
	data := []byte("short")
	c := New(4)
	r := NewReaderAt(c, "eof-test", int64(len(data)), chunkingStepper(data, 4))
	buf := make([]byte, 4)
	n, err := r.ReadAt(buf, int64(len(data)))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("got n=%d err=%v", n, err)
	}
}

func TestOverlapHelper(t *testing.T) {
	aInner, bInner, ok := overlap(10, 5, 8, 4)
	if !ok {
		t.Fatal("expected overlap")
	}
	if aInner != 0 || bInner != 2 {
		t.Fatalf("got aInner=%d bInner=%d", aInner, bInner)
	}
	_, _, ok = overlap(0, 4, 10, 4)
	if ok {
		t.Fatal("expected no overlap")
	}
}
