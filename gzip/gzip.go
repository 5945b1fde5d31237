// Package gzip parses the RFC 1952 GZIP member framing around this
// module's own DEFLATE decoder and validates the trailing CRC32/ISIZE
// pair. Unlike the standard library's compress/gzip, it never delegates
// DEFLATE itself to the standard library; the wire format here is
// layered directly on github.com/driftwood/unpacker/flate, matching the
// teacher's practice of owning every byte of the decode path in
// internal/flate rather than wrapping compress/flate.
package gzip

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/driftwood/unpacker/checksum"
	"github.com/driftwood/unpacker/flate"
)

const (
	magic0   = 0x1f
	magic1   = 0x8b
	deflateM = 8

	flagText     = 1 << 0
	flagHCRC     = 1 << 1
	flagExtra    = 1 << 2
	flagName     = 1 << 3
	flagComment  = 1 << 4
	flagReserved = 1<<5 | 1<<6 | 1<<7
)

var (
	// ErrBadMagic reports a header that does not start with the GZIP
	// magic bytes.
	ErrBadMagic = errors.New("gzip: invalid magic number")
	// ErrUnsupportedMethod reports a compression method other than
	// DEFLATE (8), the only method RFC 1952 defines.
	ErrUnsupportedMethod = errors.New("gzip: unsupported compression method")
	// ErrHeaderCRC reports a mismatched optional FHCRC field.
	ErrHeaderCRC = errors.New("gzip: header CRC mismatch")
	// ErrTrailerCRC reports a mismatched trailing CRC32 of the
	// decompressed payload.
	ErrTrailerCRC = errors.New("gzip: trailer CRC32 mismatch")
	// ErrTrailerSize reports a trailing ISIZE that does not match the
	// decompressed length modulo 2^32.
	ErrTrailerSize = errors.New("gzip: trailer size mismatch")
	// ErrTruncated reports an input too short to contain a full member.
	ErrTruncated = errors.New("gzip: truncated input")
	// ErrFlags reports a header whose reserved FLG bits (5-7) are set.
	ErrFlags = errors.New("gzip: reserved flag bits set")
)

// Header carries the member metadata a caller might want without
// re-parsing the stream.
type Header struct {
	ModTime  uint32
	OS       byte
	Name     string
	Comment  string
	Extra    []byte
	FlagText bool
}

// Member is one decoded GZIP member: its header and its decompressed
// payload.
type Member struct {
	Header Header
	Data   []byte
}

// Decompress decodes every concatenated GZIP member in b (RFC 1952 §2.2
// permits concatenation) and returns their payloads joined in order, the
// same semantics gzip(1) uses for multi-member files.
func Decompress(b []byte) ([]byte, error) {
	members, err := Members(b)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, m := range members {
		out = append(out, m.Data...)
	}
	return out, nil
}

// Members decodes every concatenated GZIP member in b individually.
func Members(b []byte) ([]Member, error) {
	var members []Member
	for len(b) > 0 {
		m, rest, err := readMember(b)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		b = rest
	}
	return members, nil
}

func readMember(b []byte) (m Member, rest []byte, err error) {
	if len(b) < 10 {
		return Member{}, nil, ErrTruncated
	}
	if b[0] != magic0 || b[1] != magic1 {
		return Member{}, nil, ErrBadMagic
	}
	if b[2] != deflateM {
		return Member{}, nil, ErrUnsupportedMethod
	}
	flags := b[3]
	if flags&flagReserved != 0 {
		return Member{}, nil, ErrFlags
	}
	hdr := Header{
		ModTime:  binary.LittleEndian.Uint32(b[4:8]),
		OS:       b[9],
		FlagText: flags&flagText != 0,
	}
	headerEnd := 10
	cur := b[10:]
	fhcrcStart := 0 // offset from b[0] where the FHCRC, if present, begins

	if flags&flagExtra != 0 {
		if len(cur) < 2 {
			return Member{}, nil, ErrTruncated
		}
		xlen := int(binary.LittleEndian.Uint16(cur[:2]))
		cur = cur[2:]
		if len(cur) < xlen {
			return Member{}, nil, ErrTruncated
		}
		hdr.Extra = append([]byte(nil), cur[:xlen]...)
		cur = cur[xlen:]
		headerEnd += 2 + xlen
	}
	if flags&flagName != 0 {
		s, n, err := readCString(cur)
		if err != nil {
			return Member{}, nil, err
		}
		hdr.Name = s
		cur = cur[n:]
		headerEnd += n
	}
	if flags&flagComment != 0 {
		s, n, err := readCString(cur)
		if err != nil {
			return Member{}, nil, err
		}
		hdr.Comment = s
		cur = cur[n:]
		headerEnd += n
	}
	fhcrcStart = headerEnd
	if flags&flagHCRC != 0 {
		if len(cur) < 2 {
			return Member{}, nil, ErrTruncated
		}
		want := binary.LittleEndian.Uint16(cur[:2])
		got := uint16(checksum.CRC32IEEE(b[:fhcrcStart]))
		if want != got {
			return Member{}, nil, ErrHeaderCRC
		}
		cur = cur[2:]
		headerEnd += 2
	}

	payload, consumed, err := flate.DecompressPrefix(cur)
	if err != nil {
		return Member{}, nil, fmt.Errorf("gzip: %w", err)
	}
	tail := cur[consumed:]
	if len(tail) < 8 {
		return Member{}, nil, ErrTruncated
	}
	wantCRC := binary.LittleEndian.Uint32(tail[0:4])
	wantISize := binary.LittleEndian.Uint32(tail[4:8])
	if checksum.CRC32IEEE(payload) != wantCRC {
		return Member{}, nil, ErrTrailerCRC
	}
	if uint32(len(payload)) != wantISize {
		return Member{}, nil, ErrTrailerSize
	}
	return Member{Header: hdr, Data: payload}, tail[8:], nil
}

// readCString reads a NUL-terminated, ISO-8859-1-encoded string as used
// by the FNAME and FCOMMENT header fields, returning the decoded string
// and the number of bytes consumed including the terminator.
func readCString(b []byte) (string, int, error) {
	for i, c := range b {
		if c == 0 {
			r := make([]rune, i)
			for j, c := range b[:i] {
				r[j] = rune(c) // ISO-8859-1 maps each byte to the same code point
			}
			return string(r), i + 1, nil
		}
	}
	return "", 0, ErrTruncated
}
