// Package zip reads ZIP archives from the central directory outward:
// locate the end-of-central-directory record, trust only what it says
// about the central directory's offset and size, then walk the central
// entries and reconcile each against its local header. Filenames are
// CP437 unless the UTF-8 general-purpose flag is set; extra fields
// (Zip64, extended timestamps, Unix owner/mode) are decoded per tag and
// folded onto the entry they modify.
package zip

import "errors"

var (
	// ErrFormat reports data that isn't a ZIP archive, or whose central
	// directory cannot be located.
	ErrFormat = errors.New("zip: not a valid zip file")
	// ErrAlgorithm reports a compression method this package doesn't
	// implement.
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	// ErrChecksum reports a decompressed entry whose CRC32 doesn't match
	// the value recorded in its header.
	ErrChecksum = errors.New("zip: checksum error")
	// ErrNoSpanned reports a multi-disk (spanned) archive, which this
	// package does not support.
	ErrNoSpanned = errors.New("zip: spanned archives not supported")
	// ErrHeaderMismatch reports a local file header that disagrees with
	// its central directory record (name, CRC, or sizes) when the data
	// descriptor flag is clear.
	ErrHeaderMismatch = errors.New("zip: local header does not match central directory")
)

const (
	sigCentralDir  = "PK\x01\x02"
	sigLocalFile   = "PK\x03\x04"
	sigEOCD        = "PK\x05\x06"
	sigEOCD64Lctr  = "PK\x06\x07"
	sigEOCD64      = "PK\x06\x06"
	sigDataDescrip = "PK\x07\x08"
)

// Compression method identifiers (APPNOTE.TXT §4.4.5).
const (
	MethodStored  = 0
	MethodDeflate = 8
	MethodBzip2   = 12
)

// Extra field tags this package understands; anything else is kept
// verbatim in Entry.Extra for callers that need it.
const (
	extraZip64      = 0x0001
	extraNTFS       = 0x000a
	extraUnix       = 0x000d
	extraExtTime    = 0x5455
	extraInfoZipOld = 0x5855
	extraInfoZipNew = 0x7875
)

// dataDescriptorFlag is bit 3 of the general-purpose flags: CRC and
// sizes are zero in the local header and follow the compressed data in
// a data descriptor instead.
const dataDescriptorFlag = 1 << 3

// utf8Flag is bit 11 of the general-purpose flags: the filename and
// comment are UTF-8 rather than CP437.
const utf8Flag = 1 << 11
