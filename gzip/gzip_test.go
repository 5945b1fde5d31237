package gzip

import "testing"

func TestDecompressHello(t *testing.T) {
	in := []byte{
		0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		0xF3, 0x48, 0xCD, 0xC9, 0xC9, 0x07, 0x00,
		0x82, 0x89, 0xD1, 0xF7, 0x05, 0x00, 0x00, 0x00,
	}
	members, err := Members(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 {
		t.Fatalf("got %d members", len(members))
	}
	m := members[0]
	if string(m.Data) != "Hello" {
		t.Fatalf("got %q", m.Data)
	}
}

func TestBadMagicRejected(t *testing.T) {
	in := []byte{0x00, 0x00, 0x08, 0x00, 0, 0, 0, 0, 0, 0}
	if _, err := Decompress(in); err != ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestTrailerCRCMismatchRejected(t *testing.T) {
	in := []byte{
		0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		0xF3, 0x48, 0xCD, 0xC9, 0xC9, 0x07, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00,
	}
	if _, err := Decompress(in); err != ErrTrailerCRC {
		t.Fatalf("expected ErrTrailerCRC, got %v", err)
	}
}

func TestReservedFlagBitsRejected(t *testing.T) {
	in := []byte{
		0x1F, 0x8B, 0x08, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		0xF3, 0x48, 0xCD, 0xC9, 0xC9, 0x07, 0x00,
		0x86, 0xA6, 0x10, 0x36, 0x05, 0x00, 0x00, 0x00,
	}
	if _, err := Decompress(in); err != ErrFlags {
		t.Fatalf("expected ErrFlags, got %v", err)
	}
}

func TestConcatenatedMembers(t *testing.T) {
	one := []byte{
		0x1F, 0x8B, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03,
		0xF3, 0x48, 0xCD, 0xC9, 0xC9, 0x07, 0x00,
		0x82, 0x89, 0xD1, 0xF7, 0x05, 0x00, 0x00, 0x00,
	}
	both := append(append([]byte{}, one...), one...)
	out, err := Decompress(both)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "HelloHello" {
		t.Fatalf("got %q", out)
	}
}
