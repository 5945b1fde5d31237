package zip

import (
	"encoding/binary"
	"io/fs"
	"strings"
	"time"

	"github.com/driftwood/unpacker/bzip2"
	"github.com/driftwood/unpacker/checksum"
	"github.com/driftwood/unpacker/flate"
)

// Entry is one member of a ZIP archive's central directory, reconciled
// against its local file header.
type Entry struct {
	Name             string
	Comment          string
	Method           uint16
	Flags            uint16
	CRC32            uint32
	CompressedSize   int64
	UncompressedSize int64
	ModTime          time.Time
	Mode             fs.FileMode
	UID, GID         int
	HasUnixOwner     bool
	Extra            map[int][]byte

	compressed []byte
}

// IsDir reports whether the entry's mode marks it as a directory; the
// mode comes from the Unix or DOS external attributes, or from a
// trailing "/" in the name when the host system is neither.
func (e *Entry) IsDir() bool { return e.Mode.IsDir() }

// Open decompresses the entry's data and verifies it against the CRC32
// recorded in the central directory.
func (e *Entry) Open() ([]byte, error) {
	var out []byte
	var err error
	switch e.Method {
	case MethodStored:
		out = e.compressed
	case MethodDeflate:
		out, err = flate.Decompress(e.compressed)
	case MethodBzip2:
		out, err = bzip2.Decompress(e.compressed)
	default:
		return nil, ErrAlgorithm
	}
	if err != nil {
		return nil, err
	}
	if int64(len(out)) != e.UncompressedSize {
		return nil, ErrHeaderMismatch
	}
	if checksum.CRC32IEEE(out) != e.CRC32 {
		return nil, ErrChecksum
	}
	return out, nil
}

// Open parses a complete ZIP archive held in memory and returns its
// entries in central-directory order. Local file headers are only
// consulted to locate each entry's compressed data and, when the data
// descriptor flag is clear, to cross-check name/CRC/sizes against the
// central directory.
func Open(data []byte) ([]Entry, error) {
	eocd, eocdPos, err := findEOCD(data)
	if err != nil {
		return nil, err
	}

	recordsTotal := uint64(binary.LittleEndian.Uint16(eocd[10:]))
	centralSize := int64(binary.LittleEndian.Uint32(eocd[12:]))
	centralOffset := int64(binary.LittleEndian.Uint32(eocd[16:]))
	thisDisk := uint32(binary.LittleEndian.Uint16(eocd[4:]))
	centralDisk := uint32(binary.LittleEndian.Uint16(eocd[6:]))

	sixtyFour := recordsTotal == 0xffff || centralSize == 0xffffffff || centralOffset == 0xffffffff
	if sixtyFour {
		locPos := eocdPos - 20
		if locPos < 0 || string(data[locPos:locPos+4]) != sigEOCD64Lctr {
			return nil, ErrFormat
		}
		locator := data[locPos : locPos+20]
		eocd64Disk := binary.LittleEndian.Uint32(locator[4:])
		eocd64Offset := int64(binary.LittleEndian.Uint64(locator[8:]))
		totalDisks := binary.LittleEndian.Uint32(locator[16:])
		if eocd64Disk != 0 || totalDisks != 1 {
			return nil, ErrNoSpanned
		}
		if eocd64Offset < 0 || eocd64Offset+56 > int64(len(data)) {
			return nil, ErrFormat
		}
		eocd64 := data[eocd64Offset : eocd64Offset+56]
		if string(eocd64[:4]) != sigEOCD64 {
			return nil, ErrFormat
		}
		thisDisk = binary.LittleEndian.Uint32(eocd64[16:])
		centralDisk = binary.LittleEndian.Uint32(eocd64[20:])
		recordsTotal = binary.LittleEndian.Uint64(eocd64[32:])
		centralSize = int64(binary.LittleEndian.Uint64(eocd64[40:]))
		centralOffset = int64(binary.LittleEndian.Uint64(eocd64[48:]))
	}
	if thisDisk != 0 || centralDisk != 0 {
		return nil, ErrNoSpanned
	}

	if centralOffset < 0 || centralOffset > int64(eocdPos) {
		return nil, ErrFormat
	}
	// Archives carelessly prefixed with unrelated data (a self-extractor
	// stub, for instance) shift every absolute offset the central
	// directory records by a constant amount; recover it by comparing
	// where the directory is supposed to start against where the EOCD
	// says it ends.
	baseCorrection := int64(eocdPos) - centralSize - centralOffset

	dirStart := baseCorrection + centralOffset
	dirEnd := dirStart + centralSize
	if dirStart < 0 || dirEnd > int64(len(data)) {
		return nil, ErrFormat
	}
	dir := data[dirStart:dirEnd]

	var entries []Entry
	for len(dir) > 0 {
		if len(dir) < 46 || string(dir[:4]) != sigCentralDir {
			break
		}
		flags := binary.LittleEndian.Uint16(dir[8:])
		method := binary.LittleEndian.Uint16(dir[10:])
		dosTime := binary.LittleEndian.Uint16(dir[12:])
		dosDate := binary.LittleEndian.Uint16(dir[14:])
		crc := binary.LittleEndian.Uint32(dir[16:])
		compSize := int64(binary.LittleEndian.Uint32(dir[20:]))
		uncompSize := int64(binary.LittleEndian.Uint32(dir[24:]))
		nameLen := int(binary.LittleEndian.Uint16(dir[28:]))
		extraLen := int(binary.LittleEndian.Uint16(dir[30:]))
		commentLen := int(binary.LittleEndian.Uint16(dir[32:]))
		osID := dir[5]
		attrs := binary.LittleEndian.Uint32(dir[38:])
		localOffset := int64(binary.LittleEndian.Uint32(dir[42:]))
		if len(dir) < 46+nameLen+extraLen+commentLen {
			return nil, ErrFormat
		}

		rawName := dir[46 : 46+nameLen]
		extraRaw := dir[46+nameLen : 46+nameLen+extraLen]
		comment := dir[46+nameLen+extraLen : 46+nameLen+extraLen+commentLen]
		dir = dir[46+nameLen+extraLen+commentLen:]

		extra := parseExtra(extraRaw)
		if sixtyFour {
			applyZip64(extra[extraZip64], &uncompSize, &compSize, &localOffset)
		}

		var name string
		if flags&utf8Flag != 0 {
			name = string(rawName)
		} else {
			name = decodeCP437(rawName)
		}

		modTime := msDOSTimeToTime(dosDate, dosTime)
		for _, tag := range []int{extraUnix, extraInfoZipOld, extraNTFS, extraExtTime} {
			if t := timeFromExtraField(tag, extra[tag]); !t.IsZero() {
				modTime = t
			}
		}

		mode := modeFromAttrs(osID, attrs, strings.HasSuffix(name, "/"))
		uid, gid, hasOwner := unixUIDGIDFromExtra(extra)

		fileOffset := baseCorrection + localOffset
		compressed, err := readLocalEntry(data, fileOffset, compSize, flags, name, crc, uncompSize)
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Name:             name,
			Comment:          string(comment),
			Method:           method,
			Flags:            flags,
			CRC32:            crc,
			CompressedSize:   compSize,
			UncompressedSize: uncompSize,
			ModTime:          modTime,
			Mode:             mode,
			UID:              uid,
			GID:              gid,
			HasUnixOwner:     hasOwner,
			Extra:            extra,
			compressed:       compressed,
		})
	}
	return entries, nil
}

// readLocalEntry locates an entry's compressed payload via its local
// file header and, when the data descriptor flag is clear, checks that
// the local header's name, CRC and sizes agree with the central
// directory's (spec §8, testable property: local/central agreement).
func readLocalEntry(data []byte, offset, compSize int64, flags uint16, centralName string, centralCRC uint32, centralUncomp int64) ([]byte, error) {
	if offset < 0 || offset+30 > int64(len(data)) {
		return nil, ErrFormat
	}
	hdr := data[offset : offset+30]
	if string(hdr[:4]) != sigLocalFile {
		return nil, ErrFormat
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:]))
	dataStart := offset + 30 + int64(nameLen) + int64(extraLen)
	if dataStart < 0 || dataStart+compSize > int64(len(data)) {
		return nil, ErrFormat
	}

	if flags&dataDescriptorFlag == 0 {
		localFlags := binary.LittleEndian.Uint16(hdr[6:])
		localCRC := binary.LittleEndian.Uint32(hdr[14:])
		localComp := int64(binary.LittleEndian.Uint32(hdr[18:]))
		localUncomp := int64(binary.LittleEndian.Uint32(hdr[22:]))
		localName := data[offset+30 : offset+30+int64(nameLen)]
		var name string
		if localFlags&utf8Flag != 0 {
			name = string(localName)
		} else {
			name = decodeCP437(localName)
		}
		if name != centralName {
			return nil, ErrHeaderMismatch
		}
		// A 32-bit local size of 0xffffffff means the real value lives
		// in the local Zip64 extra field; skip the size check rather
		// than flag a false mismatch.
		if localCRC != centralCRC && localCRC != 0 {
			return nil, ErrHeaderMismatch
		}
		if localComp != compSize && localComp != 0xffffffff {
			return nil, ErrHeaderMismatch
		}
		if localUncomp != centralUncomp && localUncomp != 0xffffffff {
			return nil, ErrHeaderMismatch
		}
	}

	return data[dataStart : dataStart+compSize], nil
}

// findEOCD locates the end-of-central-directory record by scanning
// backward from the end of the file, since it may be followed by an
// arbitrary-length (but bounded to 65535 bytes) comment.
func findEOCD(data []byte) (eocd []byte, pos int, err error) {
	if len(data) < 22 {
		return nil, 0, ErrFormat
	}
	maxComment := min(65535, len(data)-22)
	for commentLen := 0; commentLen <= maxComment; commentLen++ {
		start := len(data) - 22 - commentLen
		if string(data[start:start+4]) == sigEOCD {
			commentDeclared := int(binary.LittleEndian.Uint16(data[start+20:]))
			if commentDeclared == commentLen {
				return data[start : start+22+commentLen], start, nil
			}
		}
	}
	return nil, 0, ErrFormat
}

const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200

	msdosDirAttr      = 0x10
	msdosReadOnlyAttr = 0x01
)

// modeFromAttrs derives an fs.FileMode from the central directory's
// "version made by" host OS and external attributes, falling back to a
// directory/regular-file heuristic on the trailing slash when neither
// Unix nor DOS attribute bits are meaningful.
func modeFromAttrs(osID byte, attrs uint32, trailingSlash bool) fs.FileMode {
	switch osID {
	case 3, 19: // Unix, OS X
		return unixModeToFileMode(attrs >> 16)
	case 0, 11, 14: // DOS, NTFS, VFAT
		return msdosModeToFileMode(attrs)
	default:
		if trailingSlash {
			return fs.ModeDir | 0755
		}
		return 0644
	}
}

func msdosModeToFileMode(attrs uint32) fs.FileMode {
	var mode fs.FileMode
	if attrs&msdosDirAttr != 0 {
		mode = fs.ModeDir | 0777
	} else {
		mode = 0666
	}
	if attrs&msdosReadOnlyAttr != 0 {
		mode &^= 0222
	}
	return mode
}

func unixModeToFileMode(m uint32) fs.FileMode {
	mode := fs.FileMode(m & 0777)
	switch m & sIFMT {
	case sIFBLK:
		mode |= fs.ModeDevice
	case sIFCHR:
		mode |= fs.ModeDevice | fs.ModeCharDevice
	case sIFDIR:
		mode |= fs.ModeDir
	case sIFIFO:
		mode |= fs.ModeNamedPipe
	case sIFLNK:
		mode |= fs.ModeSymlink
	case sIFSOCK:
		mode |= fs.ModeSocket
	}
	if m&sISGID != 0 {
		mode |= fs.ModeSetgid
	}
	if m&sISUID != 0 {
		mode |= fs.ModeSetuid
	}
	if m&sISVTX != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}
