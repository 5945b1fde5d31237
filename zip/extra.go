package zip

import (
	"encoding/binary"
	"time"
)

// parseExtra splits an extra-field block into its tag/payload records
// (APPNOTE.TXT §4.5.2). A malformed trailing fragment is silently
// dropped rather than rejected, matching how real-world archives pad
// these fields.
func parseExtra(b []byte) map[int][]byte {
	out := make(map[int][]byte)
	for len(b) >= 4 {
		tag := int(binary.LittleEndian.Uint16(b))
		size := int(binary.LittleEndian.Uint16(b[2:]))
		if len(b) < 4+size {
			break
		}
		out[tag] = b[4:][:size]
		b = b[4+size:]
	}
	return out
}

// applyZip64 overwrites the 32-bit sentinel fields (0xffffffff) with
// their 64-bit counterparts from the Zip64 extra field, in the fixed
// order APPNOTE.TXT mandates: uncompressed size, compressed size, local
// header offset, disk number.
func applyZip64(fields []byte, uncompressed, compressed, offset *int64) {
	for _, target := range []*int64{uncompressed, compressed, offset} {
		if *target == 0xffffffff && len(fields) >= 8 {
			*target = int64(binary.LittleEndian.Uint64(fields))
			fields = fields[8:]
		}
	}
}

// dosEpochYear is the base year the 7-bit year component of an MS-DOS
// date field counts from.
const dosEpochYear = 1980

// windowsEpoch is the FILETIME/NTFS reference instant; NTFS extra-field
// timestamps count 100ns ticks from here rather than the Unix epoch.
var windowsEpoch = time.Date(1601, time.January, 1, 0, 0, 0, 0, time.UTC)

// splitDOSDate unpacks a 16-bit MS-DOS date field into year/month/day.
func splitDOSDate(date uint16) (year, month, day int) {
	return int(date>>9) + dosEpochYear, int(date>>5) & 0xf, int(date) & 0x1f
}

// splitDOSTime unpacks a 16-bit MS-DOS time field (2s resolution) into
// hour/minute/second.
func splitDOSTime(t uint16) (hour, minute, second int) {
	return int(t >> 11), int(t>>5) & 0x3f, int(t&0x1f) * 2
}

// msDOSTimeToTime converts a packed MS-DOS date/time pair into a
// time.Time.
func msDOSTimeToTime(date, t uint16) time.Time {
	year, month, day := splitDOSDate(date)
	hour, minute, second := splitDOSTime(t)
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
}

// ntfsTicksToTime converts a count of 100ns ticks since windowsEpoch
// into a time.Time.
func ntfsTicksToTime(ticks uint64) time.Time {
	const ticksPerSecond = 1e7
	whole := int64(ticks) / ticksPerSecond
	remainder := int64(ticks) % ticksPerSecond
	return time.Unix(windowsEpoch.Unix()+whole, remainder*(1e9/ticksPerSecond))
}

func decodeNTFSExtraTime(field []byte) time.Time {
	if len(field) < 4 {
		return time.Time{}
	}
	sub := parseExtra(field[4:])
	ticks, ok := sub[1]
	if !ok || len(ticks) < 8 {
		return time.Time{}
	}
	return ntfsTicksToTime(binary.LittleEndian.Uint64(ticks))
}

func decodeUnixExtraTime(field []byte) time.Time {
	if len(field) < 8 {
		return time.Time{}
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(field[4:])), 0)
}

func decodeExtendedTimestamp(field []byte) time.Time {
	if len(field) < 5 || field[0]&1 == 0 {
		return time.Time{}
	}
	return time.Unix(int64(binary.LittleEndian.Uint32(field[1:])), 0)
}

// extraTimeDecoders dispatches a recognized extra-field tag to the
// function that extracts a modification time from its payload.
var extraTimeDecoders = map[int]func([]byte) time.Time{
	extraNTFS:       decodeNTFSExtraTime,
	extraUnix:       decodeUnixExtraTime,
	extraInfoZipOld: decodeUnixExtraTime,
	extraExtTime:    decodeExtendedTimestamp,
}

// timeFromExtraField extracts a higher-resolution modification time
// from one recognized extra-field record, or the zero Time if the tag
// isn't a timestamp field this package understands.
func timeFromExtraField(tag int, field []byte) time.Time {
	if decode, ok := extraTimeDecoders[tag]; ok {
		return decode(field)
	}
	return time.Time{}
}

// unixUIDGIDFromExtra reads owner/group IDs from the Info-ZIP New Unix
// extra field (0x7875, variable-length) or the old one (0x5855,
// fixed 16-bit), preferring the newer field when both are present.
func unixUIDGIDFromExtra(extra map[int][]byte) (uid, gid int, ok bool) {
	if field, present := extra[extraInfoZipNew]; present && len(field) >= 1 && field[0] == 1 {
		rest := field[1:]
		uid64, rest, ok1 := readVarUint(rest)
		gid64, _, ok2 := readVarUint(rest)
		if ok1 && ok2 {
			return int(uid64), int(gid64), true
		}
	}
	if field, present := extra[extraInfoZipOld]; present && len(field) >= 12 {
		return int(binary.LittleEndian.Uint16(field[8:])), int(binary.LittleEndian.Uint16(field[10:])), true
	}
	return 0, 0, false
}

// unixDeviceFromExtra reads the major/minor device numbers carried in
// the variable tail of the PKWARE Unix extra field (0x000D) for
// character- and block-special entries: a fixed 12-byte atime/mtime/
// uid/gid prefix followed by two little-endian uint32 device numbers,
// the layout libarchive's zip reader uses for this field.
func unixDeviceFromExtra(extra map[int][]byte) (major, minor int64, ok bool) {
	field, present := extra[extraUnix]
	if !present || len(field) < 20 {
		return 0, 0, false
	}
	return int64(binary.LittleEndian.Uint32(field[12:])), int64(binary.LittleEndian.Uint32(field[16:])), true
}

// readVarUint reads Info-ZIP's length-prefixed little-endian integer:
// one size byte followed by that many value bytes.
func readVarUint(b []byte) (v uint64, rest []byte, ok bool) {
	if len(b) < 1 {
		return 0, b, false
	}
	n := int(b[0])
	if len(b) < 1+n || n > 8 {
		return 0, b, false
	}
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[1+i])
	}
	return v, b[1+n:], true
}

// cp437 maps bytes 0x80-0xFF of IBM Code Page 437 to their Unicode
// code points; bytes below 0x80 are plain ASCII, identical in both
// encodings. Used to decode filenames when the UTF-8 flag is clear.
var cp437 = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', '¢', '£', '¥', '₧', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', '╡', '╢', '╖', '╕', '╣', '║', '╗', '╝', '╜', '╛', '┐',
	'└', '┴', '┬', '├', '─', '┼', '╞', '╟', '╚', '╔', '╩', '╦', '╠', '═', '╬', '╧',
	'╨', '╤', '╥', '╙', '╘', '╒', '╓', '╫', '╪', '┘', '┌', '█', '▄', '▌', '▐', '▀',
	'α', 'ß', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ', 'Φ', 'Θ', 'Ω', 'δ', '∞', 'φ', 'ε', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈', '°', '∙', '·', '√', 'ⁿ', '²', '■', ' ',
}

// decodeCP437 converts a CP437-encoded byte string to UTF-8.
func decodeCP437(b []byte) string {
	ascii := true
	for _, c := range b {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		if c < 0x80 {
			runes[i] = rune(c)
		} else {
			runes[i] = cp437[c-0x80]
		}
	}
	return string(runes)
}
