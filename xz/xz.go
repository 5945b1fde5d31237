// Package xz implements the XZ container format (xz-file-format v1.0.4):
// a stream header, one or more blocks each driving a filter chain whose
// last element is always LZMA2, an index of block sizes, and a stream
// footer that cross-checks the index. Framing and filter-chain parsing
// are grounded on the public ulikunitz/xz format reader (the retrieval
// pack's other_examples/format.go); raw decompression itself is our own
// lzma2 package.
package xz

import (
	"crypto/sha256"
	"errors"

	"github.com/driftwood/unpacker/checksum"
	"github.com/driftwood/unpacker/lzma2"
)

var (
	ErrBadMagic        = errors.New("xz: invalid stream header magic")
	ErrBadFlags        = errors.New("xz: invalid or reserved stream flags")
	ErrHeaderCRC       = errors.New("xz: stream header checksum mismatch")
	ErrFooterMagic     = errors.New("xz: invalid stream footer magic")
	ErrFooterCRC       = errors.New("xz: stream footer checksum mismatch")
	ErrFlagsMismatch   = errors.New("xz: footer flags do not match header flags")
	ErrBlockHeaderCRC  = errors.New("xz: block header checksum mismatch")
	ErrUnsupportedID   = errors.New("xz: unsupported filter id")
	ErrFilterOrder     = errors.New("xz: LZMA2 must be the last filter in the chain")
	ErrCheckMismatch   = errors.New("xz: block integrity check mismatch")
	ErrIndexMismatch   = errors.New("xz: index does not match the blocks read")
	ErrBackwardSize    = errors.New("xz: footer backward size does not match the index")
	ErrTruncated       = errors.New("xz: truncated stream")
	ErrReservedPadding = errors.New("xz: non-zero padding byte")
)

var streamHeaderMagic = [6]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
var streamFooterMagic = [2]byte{'Y', 'Z'}

const (
	checkNone   = 0x0
	checkCRC32  = 0x1
	checkCRC64  = 0x4
	checkSHA256 = 0xa
)

func checkSize(check byte) int {
	switch check {
	case checkNone:
		return 0
	case checkCRC32:
		return 4
	case checkCRC64:
		return 8
	case checkSHA256:
		return 32
	default:
		return -1
	}
}

const (
	lzma2FilterID = 0x21
	bcjX86FilterID = 0x04
)

// filter is one entry of a block's filter chain: an id and its raw
// properties bytes (empty for BCJ filters, one dictionary-size byte for
// LZMA2).
type filter struct {
	id    uint64
	props []byte
}

// Decompress decodes a complete XZ stream, including multiple
// concatenated streams separated by stream padding, and returns the
// concatenation of every block's decompressed payload.
func Decompress(data []byte) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		// Stream padding between concatenated streams is a run of
		// zero bytes aligned to 4; skip it before the next header.
		if allZero(data[:min(4, len(data))]) && len(data) < 12 {
			break
		}
		consumed, payload, err := decodeOneStream(data)
		if err != nil {
			return nil, err
		}
		out = append(out, payload...)
		data = data[consumed:]
		for len(data) > 0 && data[0] == 0 {
			data = data[1:]
		}
	}
	return out, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func decodeOneStream(data []byte) (consumed int, out []byte, err error) {
	if len(data) < 12 {
		return 0, nil, ErrTruncated
	}
	var hdr [6]byte
	copy(hdr[:], data[:6])
	if hdr != streamHeaderMagic {
		return 0, nil, ErrBadMagic
	}
	if data[6] != 0 {
		return 0, nil, ErrBadFlags
	}
	check := data[7]
	if checkSize(check) < 0 {
		return 0, nil, ErrBadFlags
	}
	if checksum.CRC32IEEE(data[6:8]) != leUint32(data[8:12]) {
		return 0, nil, ErrHeaderCRC
	}
	pos := 12

	var records []record
	for {
		if pos >= len(data) {
			return 0, nil, ErrTruncated
		}
		sizeByte := data[pos]
		if sizeByte == 0 {
			pos++
			break // index indicator
		}
		headerLen := (int(sizeByte) + 1) * 4
		if pos+headerLen > len(data) {
			return 0, nil, ErrTruncated
		}
		blockHdr := data[pos : pos+headerLen]
		if checksum.CRC32IEEE(blockHdr[:headerLen-4]) != leUint32(blockHdr[headerLen-4:]) {
			return 0, nil, ErrBlockHeaderCRC
		}
		filters, compSizeHdr, uncompSizeHdr, err := parseBlockHeader(blockHdr[1 : headerLen-4])
		if err != nil {
			return 0, nil, err
		}
		pos += headerLen

		payload, consumedCompressed, err := decodeFilterChain(filters, data[pos:])
		if err != nil {
			return 0, nil, err
		}
		pos += consumedCompressed
		if compSizeHdr >= 0 && int64(consumedCompressed) != compSizeHdr {
			return 0, nil, ErrIndexMismatch
		}
		if uncompSizeHdr >= 0 && int64(len(payload)) != uncompSizeHdr {
			return 0, nil, ErrIndexMismatch
		}

		// The unpadded size the index records is header + compressed
		// data + check, explicitly excluding the alignment padding
		// below.
		unpaddedSize := headerLen + consumedCompressed + checkSize(check)

		// Pad the compressed payload up to a 4-byte boundary.
		if pad := (4 - pos%4) % 4; pad > 0 {
			if pos+pad > len(data) {
				return 0, nil, ErrTruncated
			}
			for _, b := range data[pos : pos+pad] {
				if b != 0 {
					return 0, nil, ErrReservedPadding
				}
			}
			pos += pad
		}

		n := checkSize(check)
		if pos+n > len(data) {
			return 0, nil, ErrTruncated
		}
		if err := verifyCheck(check, payload, data[pos:pos+n]); err != nil {
			return 0, nil, err
		}
		pos += n

		records = append(records, record{
			unpaddedSize:     int64(unpaddedSize),
			uncompressedSize: int64(len(payload)),
		})
		out = append(out, payload...)
	}

	indexStart := pos
	numRecords, n, err := readUvarint(data[pos:])
	if err != nil {
		return 0, nil, err
	}
	pos += n
	if int(numRecords) != len(records) {
		return 0, nil, ErrIndexMismatch
	}
	for _, rec := range records {
		u, n, err := readUvarint(data[pos:])
		if err != nil {
			return 0, nil, err
		}
		pos += n
		if int64(u) != rec.unpaddedSize {
			return 0, nil, ErrIndexMismatch
		}
		u, n, err = readUvarint(data[pos:])
		if err != nil {
			return 0, nil, err
		}
		pos += n
		if int64(u) != rec.uncompressedSize {
			return 0, nil, ErrIndexMismatch
		}
	}
	indexLen := pos - indexStart
	if pad := (4 - (indexLen+1)%4) % 4; pad > 0 {
		if pos+pad > len(data) {
			return 0, nil, ErrTruncated
		}
		for _, b := range data[pos : pos+pad] {
			if b != 0 {
				return 0, nil, ErrReservedPadding
			}
		}
		pos += pad
	}
	if pos+4 > len(data) {
		return 0, nil, ErrTruncated
	}
	indexCRC := checksum.CRC32IEEE(data[indexStart-1 : pos])
	if indexCRC != leUint32(data[pos:pos+4]) {
		return 0, nil, ErrIndexMismatch
	}
	pos += 4

	if pos+12 > len(data) {
		return 0, nil, ErrTruncated
	}
	footer := data[pos : pos+12]
	if checksum.CRC32IEEE(footer[4:10]) != leUint32(footer[:4]) {
		return 0, nil, ErrFooterCRC
	}
	backwardSize := (int64(leUint32(footer[4:8])) + 1) * 4
	if backwardSize != int64(pos-indexStart+1) {
		return 0, nil, ErrBackwardSize
	}
	if footer[8] != 0 || footer[9] != check {
		return 0, nil, ErrFlagsMismatch
	}
	if footer[10] != 'Y' || footer[11] != 'Z' {
		return 0, nil, ErrFooterMagic
	}
	pos += 12

	return pos, out, nil
}

type record struct {
	unpaddedSize     int64
	uncompressedSize int64
}

func verifyCheck(check byte, payload, stored []byte) error {
	switch check {
	case checkNone:
		return nil
	case checkCRC32:
		if checksum.CRC32IEEE(payload) != leUint32(stored) {
			return ErrCheckMismatch
		}
	case checkCRC64:
		if checksum.CRC64XZ(payload) != leUint64(stored) {
			return ErrCheckMismatch
		}
	case checkSHA256:
		sum := sha256.Sum256(payload)
		for i := range sum {
			if sum[i] != stored[i] {
				return ErrCheckMismatch
			}
		}
	}
	return nil
}

func parseBlockHeader(body []byte) (filters []filter, compSize, uncompSize int64, err error) {
	if len(body) < 1 {
		return nil, 0, 0, ErrTruncated
	}
	flags := body[0]
	body = body[1:]
	const reservedBlockFlags = 0x3C
	if flags&reservedBlockFlags != 0 {
		return nil, 0, 0, ErrBadFlags
	}
	compSize, uncompSize = -1, -1
	if flags&0x40 != 0 {
		u, n, err := readUvarint(body)
		if err != nil {
			return nil, 0, 0, err
		}
		compSize = int64(u)
		body = body[n:]
	}
	if flags&0x80 != 0 {
		u, n, err := readUvarint(body)
		if err != nil {
			return nil, 0, 0, err
		}
		uncompSize = int64(u)
		body = body[n:]
	}
	count := int(flags&0x3) + 1
	for i := 0; i < count; i++ {
		id, n, err := readUvarint(body)
		if err != nil {
			return nil, 0, 0, err
		}
		body = body[n:]
		sizeLen, n, err := readUvarint(body)
		if err != nil {
			return nil, 0, 0, err
		}
		body = body[n:]
		if uint64(len(body)) < sizeLen {
			return nil, 0, 0, ErrTruncated
		}
		props := body[:sizeLen]
		body = body[sizeLen:]
		filters = append(filters, filter{id: id, props: props})
	}
	if filters[len(filters)-1].id != lzma2FilterID {
		return nil, 0, 0, ErrFilterOrder
	}
	for _, f := range filters {
		if f.id != lzma2FilterID && f.id != bcjX86FilterID {
			return nil, 0, 0, ErrUnsupportedID
		}
	}
	for i := range body {
		if body[i] != 0 {
			return nil, 0, 0, ErrReservedPadding
		}
	}
	return filters, compSize, uncompSize, nil
}

// decodeFilterChain decompresses the LZMA2 payload that follows the
// block header and then reverses any leading BCJ filters, returning the
// raw data and the number of compressed bytes consumed. LZMA2 frames
// its own end marker, so the compressed length is whatever lzma2
// reports it consumed.
func decodeFilterChain(filters []filter, compressed []byte) (out []byte, consumed int, err error) {
	out, consumed, err = lzma2.DecompressPrefix(compressed)
	if err != nil {
		return nil, 0, err
	}
	for i := len(filters) - 2; i >= 0; i-- {
		if filters[i].id == bcjX86FilterID {
			out = bcjX86Decode(out)
		}
	}
	return out, consumed, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// readUvarint reads an xz-style little-endian base-128 varint (the same
// encoding as encoding/binary.Uvarint) from the front of b.
func readUvarint(b []byte) (uint64, int, error) {
	var x uint64
	var s uint
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c < 0x80 {
			if i == 9 && c > 1 {
				return 0, 0, errors.New("xz: varint overflow")
			}
			return x | uint64(c)<<s, i + 1, nil
		}
		x |= uint64(c&0x7f) << s
		s += 7
	}
	return 0, 0, ErrTruncated
}
