package bzip2

import "testing"

func TestDecompressEmptyStream(t *testing.T) {
	// The canonical empty .bz2 file: "BZh9" header, no blocks, then the
	// end-of-stream magic and a zero combined CRC.
	in := []byte{
		'B', 'Z', 'h', '9',
		0x17, 0x72, 0x45, 0x38, 0x50, 0x90,
		0x00, 0x00, 0x00, 0x00,
	}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestBadStreamMagicRejected(t *testing.T) {
	in := []byte{'X', 'Y', 'Z', '9'}
	if _, err := Decompress(in); err != ErrBadStreamMagic {
		t.Fatalf("expected ErrBadStreamMagic, got %v", err)
	}
}

func TestInverseBWTBanana(t *testing.T) {
	// BWT("banana") = "nnbaaa" with origin pointer 3; hand-verified
	// against the sorted-rotation table for "banana".
	out, err := inverseBWT([]byte("nnbaaa"), 3)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "banana" {
		t.Fatalf("got %q", out)
	}
}

func TestRLEDecode(t *testing.T) {
	in := []byte{'a', 'a', 'a', 'a', 0x02, 'b', 'b'}
	out := rleDecode(in)
	if string(out) != "aaaaaabb" {
		t.Fatalf("got %q", out)
	}
}

func TestRLEDecodeNoRun(t *testing.T) {
	in := []byte("abc")
	out := rleDecode(in)
	if string(out) != "abc" {
		t.Fatalf("got %q", out)
	}
}

func TestCRC32BZIP2CatalogueCheckValue(t *testing.T) {
	// The CRC-32/BZIP2 catalogue check value for the ASCII digits
	// "123456789" is 0xFC891918.
	got := crc32BZIP2(0, []byte("123456789"))
	if got != 0xFC891918 {
		t.Fatalf("got %#x, want 0xFC891918", got)
	}
}

func TestMTFDecodeSimpleRun(t *testing.T) {
	dict := []byte{'a', 'b', 'c'}
	// RUNA (0) once -> run length 1 of mtf[0]='a', then symbol 3 (='c',
	// mtf index 2) moves 'c' to front, then EOB would stop the caller's
	// loop (mtfDecode itself has no EOB concept, so omit it here).
	out := mtfDecode(dict, []uint16{0, 3})
	if string(out) != "ac" {
		t.Fatalf("got %q", out)
	}
}

func TestUnarySelectorLengthsComplete(t *testing.T) {
	lengths := unarySelectorLengths(3)
	want := []int{1, 2, 2}
	for i, w := range want {
		if lengths[i] != w {
			t.Fatalf("lengths[%d] = %d, want %d", i, lengths[i], w)
		}
	}
}
