// Package zlib parses the RFC 1950 ZLIB framing: a two-byte CMF/FLG
// header whose 16-bit value must be divisible by 31, an optional
// preset-dictionary checksum, a DEFLATE stream decoded by
// github.com/driftwood/unpacker/flate, and a trailing big-endian
// Adler-32 of the decompressed payload.
package zlib

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/driftwood/unpacker/checksum"
	"github.com/driftwood/unpacker/flate"
)

const (
	cmDeflate = 8
	flagDict  = 1 << 5
)

var (
	// ErrBadHeader reports a CMF/FLG pair that fails the mod-31 check
	// or does not name the DEFLATE compression method.
	ErrBadHeader = errors.New("zlib: invalid header")
	// ErrUnsupportedDict reports a stream with a preset dictionary,
	// which this module has no way to supply and therefore rejects.
	ErrUnsupportedDict = errors.New("zlib: preset dictionaries are not supported")
	// ErrTrailerChecksum reports a mismatched trailing Adler-32.
	ErrTrailerChecksum = errors.New("zlib: trailer checksum mismatch")
	// ErrTruncated reports an input too short to contain a full stream.
	ErrTruncated = errors.New("zlib: truncated input")
)

// Decompress decodes a complete ZLIB stream and validates its trailing
// Adler-32 checksum.
func Decompress(b []byte) ([]byte, error) {
	if len(b) < 6 {
		return nil, ErrTruncated
	}
	cmf, flg := b[0], b[1]
	if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
		return nil, ErrBadHeader
	}
	if cmf&0x0f != cmDeflate {
		return nil, ErrBadHeader
	}
	if flg&flagDict != 0 {
		return nil, ErrUnsupportedDict
	}
	payload, consumed, err := flate.DecompressPrefix(b[2:])
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	tail := b[2+consumed:]
	if len(tail) < 4 {
		return nil, ErrTruncated
	}
	want := binary.BigEndian.Uint32(tail[:4])
	if checksum.Adler32(payload) != want {
		return nil, ErrTrailerChecksum
	}
	return payload, nil
}
