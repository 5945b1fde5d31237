package tar

import (
	"errors"
	"strconv"

	"github.com/driftwood/unpacker/checksum"
)

// ErrFieldTooLarge reports a value that does not fit its header field:
// a name, link name or size too long for FormatUSTAR, or a numeric value
// that overflows even GNU's base-256 extension.
var ErrFieldTooLarge = errors.New("tar: field value too large to encode")

// Entry is one archive member to be serialized by Create.
type Entry struct {
	Header Header
	Data   []byte
}

// Create serializes entries into a complete TAR archive using the
// requested format. FormatV7 writes the original Unix header with no
// extensions; FormatUSTAR adds the USTAR magic and prefix field but
// fails names/sizes that don't fit; FormatGNU falls back to a
// GNU long-name block for oversized names and GNU's base-256 binary
// encoding for oversized numeric fields; FormatPAX adds a PAX
// extended-header block carrying the path when the name is longer than
// the 100-byte name field, the link path when the link name is, and the
// size when it is too large for octal.
func Create(entries []Entry, format Format) ([]byte, error) {
	var out []byte
	for _, e := range entries {
		blocks, err := marshalEntry(e, format)
		if err != nil {
			return nil, err
		}
		out = append(out, blocks...)
	}
	out = append(out, zeroBlock[:]...)
	out = append(out, zeroBlock[:]...)
	return out, nil
}

func marshalEntry(e Entry, format Format) ([]byte, error) {
	hdr := e.Header
	var out []byte

	sizeFits := hdr.Size >= 0 && hdr.Size < 1<<33

	switch format {
	case FormatUSTAR:
		if (len(hdr.Name) > nameSize && splitUSTARName(hdr.Name) < 0) || len(hdr.Linkname) > nameSize || !sizeFits {
			return nil, ErrFieldTooLarge
		}
	case FormatGNU:
		if len(hdr.Name) > nameSize {
			out = append(out, marshalGNULongName(hdr.Name)...)
		}
		if len(hdr.Linkname) > nameSize {
			out = append(out, marshalGNULongLink(hdr.Linkname)...)
		}
	case FormatPAX:
		records := map[string]string{}
		if len(hdr.Name) > nameSize {
			records["path"] = hdr.Name
		}
		if len(hdr.Linkname) > nameSize {
			records["linkpath"] = hdr.Linkname
		}
		if !sizeFits {
			records["size"] = strconv.FormatInt(hdr.Size, 10)
		}
		if len(records) > 0 {
			block, err := marshalPAXHeader(records)
			if err != nil {
				return nil, err
			}
			out = append(out, block...)
		}
	}

	block, err := marshalHeaderBlock(hdr, format)
	if err != nil {
		return nil, err
	}
	out = append(out, block...)
	out = append(out, e.Data...)
	out = append(out, zeroBlock[:blockPadding(int64(len(e.Data)))]...)
	return out, nil
}

func marshalGNULongName(name string) []byte {
	return marshalGNULongEntry(TypeGNULongName, name)
}

func marshalGNULongLink(link string) []byte {
	return marshalGNULongEntry(TypeGNULongLink, link)
}

func marshalGNULongEntry(typeflag byte, value string) []byte {
	data := append([]byte(value), 0)
	hdr := Header{Name: "././@LongLink", Size: int64(len(data)), Typeflag: typeflag}
	block, _ := marshalHeaderBlock(hdr, FormatGNU)
	out := append(block, data...)
	out = append(out, zeroBlock[:blockPadding(int64(len(data)))]...)
	return out
}

func marshalPAXHeader(records map[string]string) ([]byte, error) {
	var body []byte
	for k, v := range records {
		body = append(body, encodePAXRecord(k, v)...)
	}
	hdr := Header{Name: "PaxHeaders/pax", Size: int64(len(body)), Typeflag: TypeXHeader}
	block, err := marshalHeaderBlock(hdr, FormatUSTAR)
	if err != nil {
		return nil, err
	}
	out := append(block, body...)
	out = append(out, zeroBlock[:blockPadding(int64(len(body)))]...)
	return out, nil
}

// encodePAXRecord formats one PAX "LENGTH KEY=VALUE\n" record; the
// length includes its own decimal representation, so it is computed
// iteratively since adding digits can push the length into the next
// digit width.
func encodePAXRecord(key, value string) []byte {
	payload := key + "=" + value + "\n"
	length := len(payload) + 2
	for {
		candidate := len(strconv.Itoa(length)) + 1 + len(payload)
		if candidate == length {
			break
		}
		length = candidate
	}
	return []byte(strconv.Itoa(length) + " " + payload)
}

func marshalHeaderBlock(hdr Header, format Format) ([]byte, error) {
	var b [blockSize]byte

	name, prefix := hdr.Name, ""
	if len(name) > nameSize && format != FormatV7 {
		if idx := splitUSTARName(name); idx >= 0 {
			prefix, name = name[:idx], name[idx+1:]
		}
	}
	if len(name) > nameSize || len(prefix) > prefixSize {
		name = truncate(name, nameSize)
	}
	copy(b[0:100], name)
	if err := putOctal(b[100:108], hdr.Mode); err != nil {
		return nil, err
	}
	if err := putOctal(b[108:116], int64(hdr.UID)); err != nil {
		return nil, err
	}
	if err := putOctal(b[116:124], int64(hdr.GID)); err != nil {
		return nil, err
	}
	if err := putSize(b[124:136], hdr.Size); err != nil {
		return nil, err
	}
	if err := putOctal(b[136:148], hdr.ModTime.Unix()); err != nil {
		return nil, err
	}
	b[156] = hdr.Typeflag
	copy(b[157:257], truncate(hdr.Linkname, nameSize))

	if format == FormatUSTAR || format == FormatPAX || format == FormatGNU {
		if format == FormatGNU {
			copy(b[257:263], magicGNU)
			copy(b[263:265], versionGNU)
		} else {
			copy(b[257:263], magicUSTAR)
			copy(b[263:265], versionUSTAR)
		}
		copy(b[265:297], truncate(hdr.Uname, 32))
		copy(b[297:329], truncate(hdr.Gname, 32))
		if hdr.Typeflag == TypeCharDev || hdr.Typeflag == TypeBlockDev {
			putOctal(b[329:337], hdr.Devmajor)
			putOctal(b[337:345], hdr.Devminor)
		}
		if format != FormatGNU {
			copy(b[345:500], truncate(prefix, prefixSize))
		}
	}

	unsigned, _ := checksum.TarSum(b)
	putOctalChecksum(b[148:156], unsigned)
	return b[:], nil
}

func splitUSTARName(name string) int {
	if len(name) <= nameSize {
		return -1
	}
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' && i <= prefixSize && len(name)-i-1 <= nameSize {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// putOctal writes v as zero-padded octal digits terminated by NUL,
// falling back to GNU's base-256 binary form (high bit set in the
// first byte) when v doesn't fit in the field as octal.
func putOctal(field []byte, v int64) error {
	s := strconv.FormatInt(v, 8)
	if len(s)+1 <= len(field) {
		for i := range field {
			field[i] = '0'
		}
		copy(field[len(field)-len(s)-1:], s)
		field[len(field)-1] = 0
		return nil
	}
	return putBase256(field, v)
}

// putSize is putOctal's counterpart for the size field, which is wide
// enough (12 bytes, room for an 11-digit octal number) that only truly
// enormous archives need the base-256 fallback.
func putSize(field []byte, v int64) error {
	return putOctal(field, v)
}

func putBase256(field []byte, v int64) error {
	if v < 0 {
		return ErrFieldTooLarge
	}
	for i := len(field) - 1; i >= 1; i-- {
		field[i] = byte(v & 0xFF)
		v >>= 8
	}
	if v != 0 {
		return ErrFieldTooLarge
	}
	field[0] = 0x80
	return nil
}

func putOctalChecksum(field []byte, v int64) {
	s := strconv.FormatInt(v, 8)
	for i := range field {
		field[i] = '0'
	}
	copy(field[6-len(s):], s)
	field[6] = 0
	field[7] = ' '
}
