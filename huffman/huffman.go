// Package huffman builds canonical Huffman decoding tables from either a
// per-symbol code-length vector or a sparse "bootstrap" list of
// (start-symbol, length) pairs, and decodes one symbol at a time from a
// [bitreader.Reader]. It backs both the DEFLATE literal/length/distance
// alphabets and BZIP2's per-group prefix trees.
//
// The decode loop is the classical canonical-Huffman walk described in
// zlib's doc/algorithm.txt (the same reference the teacher's flat
// lookup-table implementation cites): read one bit at a time, track the
// first code and symbol-table offset at each length, and recognise a
// symbol the moment the accumulated code falls within the current
// length's range. It reads one bit per iteration rather than using a
// lookup table, trading the teacher's chunked-table throughput for a
// bitreader-agnostic implementation that works unmodified for both
// DEFLATE (LSB-first) and BZIP2 (MSB-first) streams.
package huffman

import (
	"errors"

	"github.com/driftwood/unpacker/bitreader"
)

const maxCodeLength = 32

// ErrIncompleteCode is returned when a length vector does not describe a
// complete prefix code (subject to the single-symbol degenerate
// exception DEFLATE and BZIP2 both rely on).
var ErrIncompleteCode = errors.New("huffman: incomplete or over-subscribed code")

// ErrInvalidSymbol is returned by Decode when the bit stream yields a
// prefix with no assigned symbol.
var ErrInvalidSymbol = errors.New("huffman: invalid code in bit stream")

// Bootstrap describes a piecewise-constant run of code lengths: symbols
// [Start, nextStart) all have length Length, where nextStart is the
// Start of the following Bootstrap entry (or the alphabet size for the
// last one).
type Bootstrap struct {
	Start  int
	Length int
}

// Decoder is a built canonical Huffman table.
type Decoder struct {
	counts  [maxCodeLength + 1]int // counts[l] = number of symbols of length l
	symbols []int                  // symbols in canonical (length, then value) order
	maxLen  int
}

// New builds a Decoder from a per-symbol length vector. A length of zero
// means the symbol is absent. An all-zero vector (including an empty
// one) is accepted as an empty tree that will fail on first Decode.
func New(lengths []int) (*Decoder, error) {
	d := &Decoder{}
	for _, l := range lengths {
		if l < 0 || l > maxCodeLength {
			return nil, ErrIncompleteCode
		}
		if l > 0 {
			d.counts[l]++
			if l > d.maxLen {
				d.maxLen = l
			}
		}
	}
	if d.maxLen == 0 {
		return d, nil
	}

	// Verify the code is complete: sum(count(l) * 2^(max-l)) == 2^max,
	// with the single degenerate single-symbol exception DEFLATE's
	// fixed tables never hit but some encoders produce anyway.
	total := 0
	for l := 1; l <= d.maxLen; l++ {
		total = total<<1 + d.counts[l]
	}
	full := 1 << uint(d.maxLen)
	singleSymbol := d.maxLen == 1 && d.counts[1] == 1
	if total != full && !singleSymbol {
		return nil, ErrIncompleteCode
	}

	// Bucket symbols by length, in increasing symbol-value order
	// within each length (the canonical Huffman ordering convention).
	offset := make([]int, d.maxLen+2)
	for l := 1; l <= d.maxLen; l++ {
		offset[l+1] = offset[l] + d.counts[l]
	}
	d.symbols = make([]int, offset[d.maxLen+1])
	cursor := append([]int(nil), offset...)
	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		d.symbols[cursor[l]] = sym
		cursor[l]++
	}
	return d, nil
}

// NewFromBootstrap expands a sparse list of (start-symbol, length) pairs
// into a full length vector over an alphabet of the given size and
// builds a Decoder from it.
func NewFromBootstrap(alphabetSize int, pairs []Bootstrap) (*Decoder, error) {
	lengths := make([]int, alphabetSize)
	for i, p := range pairs {
		end := alphabetSize
		if i+1 < len(pairs) {
			end = pairs[i+1].Start
		}
		for sym := p.Start; sym < end && sym < alphabetSize; sym++ {
			lengths[sym] = p.Length
		}
	}
	return New(lengths)
}

// Decode reads one symbol from br using d.
func (d *Decoder) Decode(br *bitreader.Reader) (int, error) {
	if d.maxLen == 0 {
		return 0, ErrInvalidSymbol
	}
	code, first, index := 0, 0, 0
	for l := 1; l <= d.maxLen; l++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit
		count := d.counts[l]
		if code-first < count {
			return d.symbols[index+(code-first)], nil
		}
		index += count
		first += count
		first <<= 1
	}
	return 0, ErrInvalidSymbol
}

// MaxLength returns the longest code length in the table (0 for an empty
// tree).
func (d *Decoder) MaxLength() int { return d.maxLen }
