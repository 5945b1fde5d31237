package xz

import "testing"

// These fixtures are real XZ streams (liblzma via Python's lzma module,
// not anything produced by this package) so decoding them is an
// end-to-end check against an independent implementation.

func TestDecompressStoredChunkCRC32(t *testing.T) {
	in := []byte{
		0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x01, 0x69, 0x22, 0xde, 0x36,
		0x02, 0x00, 0x21, 0x01, 0x0c, 0x00, 0x00, 0x00, 0x8f, 0x98, 0x41, 0x9c,
		0x01, 0x00, 0x0f, 0x48, 0x65, 0x6c, 0x6c, 0x6f, 0x2c, 0x20, 0x78, 0x7a,
		0x20, 0x77, 0x6f, 0x72, 0x6c, 0x64, 0x21, 0x00, 0xd2, 0xa5, 0x03, 0x12,
		0x00, 0x01, 0x24, 0x10, 0xe9, 0x44, 0xd9, 0xcc, 0x90, 0x42, 0x99, 0x0d,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x59, 0x5a,
	}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hello, xz world!" {
		t.Fatalf("got %q", out)
	}
}

func TestDecompressStoredChunkCheckNone(t *testing.T) {
	in := []byte{
		0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x00, 0xff, 0x12, 0xd9, 0x41,
		0x02, 0x00, 0x21, 0x01, 0x0c, 0x00, 0x00, 0x00, 0x8f, 0x98, 0x41, 0x9c,
		0x01, 0x00, 0x0f, 0x48, 0x65, 0x6c, 0x6c, 0x6f, 0x2c, 0x20, 0x78, 0x7a,
		0x20, 0x77, 0x6f, 0x72, 0x6c, 0x64, 0x21, 0x00, 0x00, 0x01, 0x20, 0x10,
		0xed, 0x81, 0xb5, 0xa8, 0x06, 0x72, 0x9e, 0x7a, 0x01, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x59, 0x5a,
	}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hello, xz world!" {
		t.Fatalf("got %q", out)
	}
}

func TestDecompressRealLZMAMatches(t *testing.T) {
	in := []byte{
		0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00, 0x00, 0x01, 0x69, 0x22, 0xde, 0x36,
		0x02, 0x00, 0x21, 0x01, 0x1c, 0x00, 0x00, 0x00, 0x10, 0xcf, 0x58, 0xcc,
		0xe0, 0x00, 0x3b, 0x00, 0x09, 0x5d, 0x00, 0x30, 0x98, 0x88, 0xab, 0x44,
		0x1e, 0x29, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x2d, 0xfa, 0x91, 0xe1,
		0x00, 0x01, 0x21, 0x3c, 0x4f, 0xdc, 0x76, 0x83, 0x90, 0x42, 0x99, 0x0d,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x01, 0x59, 0x5a,
	}
	want := ""
	for i := 0; i < 20; i++ {
		want += "abc"
	}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestBadStreamMagicRejected(t *testing.T) {
	in := make([]byte, 12)
	if _, err := Decompress(in); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadUvarintMultiByte(t *testing.T) {
	// 300 encoded as a two-byte LEB128 varint: 0xAC, 0x02.
	v, n, err := readUvarint([]byte{0xAC, 0x02, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if v != 300 || n != 2 {
		t.Fatalf("got v=%d n=%d", v, n)
	}
}

func TestBCJX86DecodeShortInputUnchanged(t *testing.T) {
	in := []byte{1, 2, 3}
	out := bcjX86Decode(in)
	if string(out) != string(in) {
		t.Fatalf("got %v want %v", out, in)
	}
}

func TestBCJX86DecodeNoOpcodesUnchanged(t *testing.T) {
	in := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	out := bcjX86Decode(in)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, out[i], in[i])
		}
	}
}
