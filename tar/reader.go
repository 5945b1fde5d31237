package tar

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/driftwood/unpacker/checksum"
)

var (
	// ErrTooSmall reports an archive shorter than one full header block.
	ErrTooSmall = errors.New("tar: archive too small")
	// ErrFieldNotNumber reports a numeric field that fails to parse as
	// octal ASCII, or a parsed size that is negative. GNU's base-256
	// binary fields are read as unsigned big-endian and never fail.
	ErrFieldNotNumber = errors.New("tar: header field is not a number")
	// ErrWrongHeaderChecksum reports a header block whose stored
	// checksum matches neither the unsigned nor the signed byte sum.
	ErrWrongHeaderChecksum = errors.New("tar: header checksum mismatch")
	// ErrWrongUstarVersion reports a USTAR magic with an unrecognized
	// version field.
	ErrWrongUstarVersion = errors.New("tar: wrong ustar version")
	// ErrUnsupportedFeature reports a GNU sparse-file header; sparse
	// payloads are explicitly out of scope.
	ErrUnsupportedFeature = errors.New("tar: unsupported feature (GNU sparse files)")
	// ErrTruncatedBody reports an entry whose declared size runs past
	// the end of the archive.
	ErrTruncatedBody = errors.New("tar: truncated entry body")
)

// Reader iterates the entries of a TAR archive held fully in memory.
type Reader struct {
	data   []byte
	pos    int
	global map[string]string
}

// NewReader prepares r to iterate the entries of data from the start.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, global: map[string]string{}}
}

// Next returns the next entry's header and body, or io.EOF once an
// all-zero block (or the physical end of input) is reached; a second
// zero block is not looked for.
func (r *Reader) Next() (*Header, []byte, error) {
	var pendingName, pendingLink string
	var pendingPAX map[string]string

	for {
		if r.pos+blockSize > len(r.data) {
			if r.pos == len(r.data) {
				return nil, nil, io.EOF
			}
			return nil, nil, ErrTooSmall
		}
		block := r.data[r.pos : r.pos+blockSize]
		if isZeroBlock(block) {
			// The format calls for two consecutive all-zero
			// blocks; a truncated archive ending after just one
			// is still treated as a clean end rather than an
			// error.
			return nil, nil, io.EOF
		}

		hdr, format, err := parseHeaderBlock(block)
		if err != nil {
			return nil, nil, err
		}
		r.pos += blockSize

		size := hdr.Size
		if size < 0 {
			return nil, nil, ErrFieldNotNumber
		}
		body, err := r.readBody(size)
		if err != nil {
			return nil, nil, err
		}

		switch hdr.Typeflag {
		case TypeGNULongName:
			pendingName = trimTrailingNUL(body)
			continue
		case TypeGNULongLink:
			pendingLink = trimTrailingNUL(body)
			continue
		case TypeXGlobal:
			recs, err := parsePAXRecords(body)
			if err != nil {
				return nil, nil, err
			}
			for k, v := range recs {
				r.global[k] = v
			}
			continue
		case TypeXHeader:
			recs, err := parsePAXRecords(body)
			if err != nil {
				return nil, nil, err
			}
			pendingPAX = recs
			continue
		}

		hdr.Format = format
		if pendingName != "" {
			hdr.Name = pendingName
		}
		if pendingLink != "" {
			hdr.Linkname = pendingLink
		}

		merged := map[string]string{}
		for k, v := range r.global {
			merged[k] = v
		}
		for k, v := range pendingPAX {
			merged[k] = v
		}
		if len(merged) > 0 {
			applyPAXRecords(hdr, merged)
			hdr.Format = FormatPAX
			hdr.PAXRecords = merged
		}

		return hdr, body, nil
	}
}

// ReadAll parses every entry in data, returning them in archive order.
func ReadAll(data []byte) ([]Header, [][]byte, error) {
	r := NewReader(data)
	var headers []Header
	var bodies [][]byte
	for {
		hdr, body, err := r.Next()
		if err == io.EOF {
			return headers, bodies, nil
		}
		if err != nil {
			return nil, nil, err
		}
		headers = append(headers, *hdr)
		bodies = append(bodies, body)
	}
}

func (r *Reader) readBody(size int64) ([]byte, error) {
	if r.pos+int(size) > len(r.data) {
		return nil, ErrTruncatedBody
	}
	body := r.data[r.pos : r.pos+int(size)]
	r.pos += int(size)
	r.pos += int(blockPadding(size))
	return body, nil
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func trimTrailingNUL(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

// parseHeaderBlock decodes one 512-byte header block per spec §4.8.
func parseHeaderBlock(b []byte) (*Header, Format, error) {
	var raw [blockSize]byte
	copy(raw[:], b)
	unsigned, signed := checksum.TarSum(raw)

	stored, err := parseOctal(b[148:156])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	if stored != unsigned && stored != signed {
		return nil, FormatUnknown, ErrWrongHeaderChecksum
	}

	hdr := &Header{}
	hdr.Name = trimTrailingNUL(b[0:100])
	mode, err := parseOctal(b[100:108])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	hdr.Mode = mode
	uid, err := parseOctal(b[108:116])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	hdr.UID = int(uid)
	gid, err := parseOctal(b[116:124])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	hdr.GID = int(gid)
	size, err := parseOctal(b[124:136])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	hdr.Size = size
	mtime, err := parseOctal(b[136:148])
	if err != nil {
		return nil, FormatUnknown, ErrFieldNotNumber
	}
	hdr.ModTime = time.Unix(mtime, 0).UTC()
	hdr.Typeflag = b[156]
	if hdr.Typeflag == 0 {
		hdr.Typeflag = TypeRegular
	}
	hdr.Linkname = trimTrailingNUL(b[157:257])

	magic := string(b[257:263])
	version := string(b[263:265])
	format := FormatV7

	if magic == magicUSTAR {
		if version != versionUSTAR {
			return nil, FormatUnknown, ErrWrongUstarVersion
		}
		format = FormatUSTAR
		hdr.Uname = trimTrailingNUL(b[265:297])
		hdr.Gname = trimTrailingNUL(b[297:329])
		if hdr.Typeflag == TypeCharDev || hdr.Typeflag == TypeBlockDev {
			hdr.Devmajor, _ = parseOctal(b[329:337])
			hdr.Devminor, _ = parseOctal(b[337:345])
		}
		if prefix := trimTrailingNUL(b[345:500]); prefix != "" {
			hdr.Name = prefix + "/" + hdr.Name
		}
	} else if magic == magicGNU && version == versionGNU {
		format = FormatGNU
		hdr.Uname = trimTrailingNUL(b[265:297])
		hdr.Gname = trimTrailingNUL(b[297:329])
		if hdr.Typeflag == TypeCharDev || hdr.Typeflag == TypeBlockDev {
			hdr.Devmajor, _ = parseOctal(b[329:337])
			hdr.Devminor, _ = parseOctal(b[337:345])
		}
		if hdr.Typeflag == TypeGNUSparse {
			return nil, FormatUnknown, ErrUnsupportedFeature
		}
	}

	return hdr, format, nil
}

// parseOctal parses a NUL- or space-terminated octal ASCII field, as
// well as GNU's base-256 binary extension (high bit set in the first
// byte) for values too large to fit in octal.
func parseOctal(b []byte) (int64, error) {
	if len(b) > 0 && b[0]&0x80 != 0 {
		var v int64
		for _, c := range b[1:] {
			v = v<<8 | int64(c)
		}
		return v, nil
	}
	s := string(b)
	for i, c := range s {
		if c == 0 || c == ' ' {
			s = s[:i]
			break
		}
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFieldNotNumber, s)
	}
	return v, nil
}
