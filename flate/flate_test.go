package flate

import "testing"

func TestStoredBlock(t *testing.T) {
	in := []byte{0x01, 0x05, 0x00, 0xFA, 0xFF, 0x48, 0x65, 0x6C, 0x6C, 0x6F}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hello" {
		t.Fatalf("got %q", out)
	}
}

func TestFixedHuffmanHello(t *testing.T) {
	in := []byte{0xF3, 0x48, 0xCD, 0xC9, 0xC9, 0x07, 0x00}
	out, err := Decompress(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hello" {
		t.Fatalf("got %q", out)
	}
}

func TestSelfOverlappingBackReference(t *testing.T) {
	buf := []byte{'a'}
	out := appendBackReference(buf, 1, 9)
	if string(out) != "aaaaaaaaaa" {
		t.Fatalf("got %q", out)
	}
}

func TestBadStoredLengthMismatch(t *testing.T) {
	in := []byte{0x01, 0x05, 0x00, 0x00, 0x00, 0x48, 0x65, 0x6C, 0x6C, 0x6F}
	if _, err := Decompress(in); err != errBadStoredLen {
		t.Fatalf("expected errBadStoredLen, got %v", err)
	}
}

func TestBadBlockTypeRejected(t *testing.T) {
	in := []byte{0b111} // BFINAL=1, BTYPE=11 (reserved)
	if _, err := Decompress(in); err == nil {
		t.Fatal("expected error for reserved block type")
	}
}
