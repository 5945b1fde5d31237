// Package flate implements RFC 1951 DEFLATE decompression: stored,
// fixed-Huffman, and dynamic-Huffman blocks with LZ77 back-reference
// copying, including the self-overlapping case where a back-reference's
// length exceeds its distance.
//
// The block-type dispatch and dynamic-table construction follow the
// shape of the teacher's internal/flate/inflate.go (itself adapted from
// the standard library's compress/flate), but Decompress here is a
// one-shot, non-resumable decoder: this module's callers hold the whole
// compressed member in memory already (GZIP/ZLIB members, ZIP entries),
// so the teacher's checkpoint/resumePoint machinery for
// random access into multi-gigabyte streams is not needed and is not
// reproduced.
package flate

import (
	"errors"

	"github.com/driftwood/unpacker/bitreader"
	"github.com/driftwood/unpacker/huffman"
)

// ErrCorrupt reports a malformed DEFLATE stream. Use errors.Is against
// the more specific sentinels below for programmatic handling; ErrCorrupt
// itself is returned for generic decode failures.
var ErrCorrupt = errors.New("flate: corrupt deflate stream")

var (
	errBadBlockType  = errors.New("flate: invalid block type")
	errBadStoredLen  = errors.New("flate: stored block length mismatch")
	errTooManyCodes  = errors.New("flate: too many Huffman codes")
	errBadBackRef    = errors.New("flate: back-reference distance exceeds output so far")
	errBadCodeLength = errors.New("flate: invalid code length symbol")
)

const (
	maxLitCodes  = 286
	maxDistCodes = 30
	maxCLCodes   = 19
)

// codeOrder is the order in which code-length-table lengths are stored
// in a dynamic block header (RFC 1951 §3.2.7).
var codeOrder = [maxCLCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

var lengthBase = [29]int{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lengthExtra = [29]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
var distBase = [30]int{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var distExtra = [30]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}

var fixedLiteral, fixedDistance *huffman.Decoder

func init() {
	litLengths := make([]int, 288)
	for i := 0; i < 144; i++ {
		litLengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		litLengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		litLengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		litLengths[i] = 8
	}
	var err error
	fixedLiteral, err = huffman.New(litLengths)
	if err != nil {
		panic(err)
	}
	// All 32 five-bit codes are assigned so the table is complete;
	// symbols 30 and 31 never occur in valid data and are rejected when
	// decoded.
	distLengths := make([]int, 32)
	for i := range distLengths {
		distLengths[i] = 5
	}
	fixedDistance, err = huffman.New(distLengths)
	if err != nil {
		panic(err)
	}
}

// Decompress decodes a complete DEFLATE stream from b and returns the
// uncompressed bytes.
func Decompress(b []byte) ([]byte, error) {
	out, _, err := DecompressPrefix(b)
	return out, err
}

// DecompressPrefix decodes a DEFLATE stream from the start of b and also
// reports how many bytes of b the stream occupied, rounded up to the
// next byte boundary. Callers that must locate a trailer immediately
// following the compressed data (GZIP's CRC32/ISIZE, ZLIB's Adler-32)
// use this instead of Decompress.
func DecompressPrefix(b []byte) (out []byte, consumed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, consumed, err = nil, 0, ErrCorrupt
		}
	}()
	br := bitreader.New(b, bitreader.LSBFirst)
	var buf []byte
	for {
		final, err := br.ReadBits(1)
		if err != nil {
			return nil, 0, err
		}
		btype, err := br.ReadBits(2)
		if err != nil {
			return nil, 0, err
		}
		switch btype {
		case 0:
			buf, err = storedBlock(br, buf)
		case 1:
			buf, err = huffmanBlock(br, buf, fixedLiteral, fixedDistance)
		case 2:
			var lit, dist *huffman.Decoder
			lit, dist, err = readDynamicTables(br)
			if err != nil {
				return nil, 0, err
			}
			buf, err = huffmanBlock(br, buf, lit, dist)
		default:
			return nil, 0, errBadBlockType
		}
		if err != nil {
			return nil, 0, err
		}
		if final == 1 {
			break
		}
	}
	consumed = int((br.BitPos() + 7) / 8)
	return buf, consumed, nil
}

func storedBlock(br *bitreader.Reader, buf []byte) ([]byte, error) {
	br.AlignToByte()
	length, err := br.ReadAlignedUint(2)
	if err != nil {
		return nil, err
	}
	nlength, err := br.ReadAlignedUint(2)
	if err != nil {
		return nil, err
	}
	if uint16(length) != ^uint16(nlength) {
		return nil, errBadStoredLen
	}
	for i := uint64(0); i < length; i++ {
		b, err := br.ReadAlignedByte()
		if err != nil {
			return nil, err
		}
		buf = append(buf, b)
	}
	return buf, nil
}

// readDynamicTables parses the HLIT/HDIST/HCLEN header of a dynamic
// block and builds the literal/length and distance Huffman tables.
func readDynamicTables(br *bitreader.Reader) (lit, dist *huffman.Decoder, err error) {
	hlit, err := br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hdist, err := br.ReadBits(5)
	if err != nil {
		return nil, nil, err
	}
	hclen, err := br.ReadBits(4)
	if err != nil {
		return nil, nil, err
	}
	nlit := int(hlit) + 257
	ndist := int(hdist) + 1
	nclen := int(hclen) + 4
	if nlit > maxLitCodes || ndist > maxDistCodes || nclen > maxCLCodes {
		return nil, nil, errTooManyCodes
	}

	var clLengths [maxCLCodes]int
	for i := 0; i < nclen; i++ {
		v, err := br.ReadBits(3)
		if err != nil {
			return nil, nil, err
		}
		clLengths[codeOrder[i]] = int(v)
	}
	clDecoder, err := huffman.New(clLengths[:])
	if err != nil {
		return nil, nil, err
	}

	lengths := make([]int, nlit+ndist)
	for i := 0; i < len(lengths); {
		sym, err := clDecoder.Decode(br)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case sym < 16:
			lengths[i] = sym
			i++
		case sym == 16:
			if i == 0 {
				return nil, nil, errBadCodeLength
			}
			n, err := br.ReadBits(2)
			if err != nil {
				return nil, nil, err
			}
			prev := lengths[i-1]
			for j := 0; j < int(n)+3; j++ {
				lengths[i] = prev
				i++
			}
		case sym == 17:
			n, err := br.ReadBits(3)
			if err != nil {
				return nil, nil, err
			}
			i += int(n) + 3
		case sym == 18:
			n, err := br.ReadBits(7)
			if err != nil {
				return nil, nil, err
			}
			i += int(n) + 11
		default:
			return nil, nil, errBadCodeLength
		}
		if i > len(lengths) {
			return nil, nil, errBadCodeLength
		}
	}

	lit, err = huffman.New(lengths[:nlit])
	if err != nil {
		return nil, nil, err
	}
	dist, err = huffman.New(lengths[nlit:])
	if err != nil {
		return nil, nil, err
	}
	return lit, dist, nil
}

// huffmanBlock decodes literal/length/distance symbols until the
// end-of-block marker (256), appending output to buf.
func huffmanBlock(br *bitreader.Reader, buf []byte, lit, dist *huffman.Decoder) ([]byte, error) {
	for {
		sym, err := lit.Decode(br)
		if err != nil {
			return nil, err
		}
		switch {
		case sym < 256:
			buf = append(buf, byte(sym))
		case sym == 256:
			return buf, nil
		default:
			idx := sym - 257
			if idx >= len(lengthBase) {
				return nil, errBadCodeLength
			}
			length := lengthBase[idx]
			if lengthExtra[idx] > 0 {
				extra, err := br.ReadBits(lengthExtra[idx])
				if err != nil {
					return nil, err
				}
				length += int(extra)
			}
			dsym, err := dist.Decode(br)
			if err != nil {
				return nil, err
			}
			if dsym >= len(distBase) {
				return nil, errBadCodeLength
			}
			distance := distBase[dsym]
			if distExtra[dsym] > 0 {
				extra, err := br.ReadBits(distExtra[dsym])
				if err != nil {
					return nil, err
				}
				distance += int(extra)
			}
			if distance > len(buf) {
				return nil, errBadBackRef
			}
			buf = appendBackReference(buf, distance, length)
		}
	}
}

// appendBackReference copies length bytes from distance bytes before the
// end of buf, byte by byte. The loop form (rather than a single
// copy/append of a pre-sliced region) is required because length may
// exceed distance, in which case the copy must observe bytes it has
// itself just appended.
func appendBackReference(buf []byte, distance, length int) []byte {
	start := len(buf) - distance
	for i := 0; i < length; i++ {
		buf = append(buf, buf[start+i])
	}
	return buf
}
