// Package lzma2 implements the LZMA2 chunked container XZ requires as
// its mandatory filter: a sequence of uncompressed and LZMA-compressed
// chunks, each able to reset the LZMA state machine, probability
// tables, and/or properties independently, letting encoders flush
// periodically without paying for a full probability-table reset every
// time. Each chunk is its own independently range-coded unit, but the
// probability model and 12-state machine persist across chunks that do
// not request a reset — the decoder's dictionary is simply the growing
// output buffer, so back-references naturally reach into prior chunks'
// bytes without any separate window bookkeeping.
package lzma2

import (
	"errors"

	"github.com/driftwood/unpacker/lzma"
)

var (
	// ErrBadControl reports a chunk control byte with no defined
	// meaning.
	ErrBadControl = errors.New("lzma2: invalid chunk control byte")
	// ErrTruncated reports an input that ends mid-chunk.
	ErrTruncated = errors.New("lzma2: truncated chunk")
	// ErrPropsRequired reports an LZMA chunk that relies on
	// previously-set properties, but no chunk has set any yet.
	ErrPropsRequired = errors.New("lzma2: chunk requires properties but none given")
)

const (
	controlEnd           = 0x00
	controlUncompDict    = 0x01
	controlUncompNoReset = 0x02
	controlLZMAMask      = 0x80
)

// resetKind is the 2-bit reset field of an LZMA chunk's control byte.
type resetKind int

const (
	resetNone resetKind = iota
	resetState
	resetStateNewProps
	resetStateNewPropsDict
)

// Decompress decodes a complete LZMA2 stream.
func Decompress(data []byte) ([]byte, error) {
	out, _, err := DecompressPrefix(data)
	return out, err
}

// DecompressPrefix decodes one LZMA2 stream starting at the front of
// data and reports how many input bytes it consumed, letting callers
// that embed LZMA2 in a larger container (XZ blocks) locate whatever
// follows the end-of-stream control byte.
func DecompressPrefix(data []byte) (out []byte, consumed int, err error) {
	var dec *lzma.Decoder
	haveProps := false
	orig := data
	for len(data) > 0 {
		control := data[0]
		switch {
		case control == controlEnd:
			return out, len(orig) - len(data) + 1, nil
		case control == controlUncompDict || control == controlUncompNoReset:
			chunk, rest, err := readUncompressedChunk(data)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, chunk...)
			data = rest
		case control&controlLZMAMask != 0:
			rest, err := decodeLZMAChunk(data, &dec, &haveProps, &out)
			if err != nil {
				return nil, 0, err
			}
			data = rest
		default:
			return nil, 0, ErrBadControl
		}
	}
	return out, len(orig), nil
}

func readUncompressedChunk(data []byte) (chunk, rest []byte, err error) {
	if len(data) < 3 {
		return nil, nil, ErrTruncated
	}
	size := int(data[1])<<8 | int(data[2]) + 1
	if len(data) < 3+size {
		return nil, nil, ErrTruncated
	}
	return data[3 : 3+size], data[3+size:], nil
}

// decodeLZMAChunk decodes one LZMA-compressed chunk, appending its
// output to *out, and returns the remaining unread input.
func decodeLZMAChunk(data []byte, decPtr **lzma.Decoder, haveProps *bool, out *[]byte) (rest []byte, err error) {
	if len(data) < 6 {
		return nil, ErrTruncated
	}
	control := data[0]
	kind := resetKind((control >> 5) & 0x3)
	uncompSize := (int(control&0x1F) << 16) | int(data[1])<<8 | int(data[2]) + 1
	compSize := int(data[3])<<8 | int(data[4]) + 1

	offset := 5
	var props lzma.Props
	needsNewProps := kind == resetStateNewProps || kind == resetStateNewPropsDict
	if needsNewProps {
		if len(data) < offset+1 {
			return nil, ErrTruncated
		}
		props, err = lzma.DecodeProps(data[offset])
		if err != nil {
			return nil, err
		}
		offset++
	}
	if len(data) < offset+compSize {
		return nil, ErrTruncated
	}
	compressed := data[offset : offset+compSize]
	rest = data[offset+compSize:]

	if *decPtr == nil {
		if !needsNewProps {
			return nil, ErrPropsRequired
		}
		*decPtr = lzma.NewDecoder(props)
		*haveProps = true
	} else if kind == resetState || kind == resetStateNewProps || kind == resetStateNewPropsDict {
		if needsNewProps {
			(*decPtr).Reset(&props)
		} else {
			(*decPtr).Reset(nil)
		}
	} else if !*haveProps {
		return nil, ErrPropsRequired
	}

	if err := (*decPtr).DecodeChunk(out, compressed, uncompSize); err != nil {
		return nil, err
	}
	return rest, nil
}
