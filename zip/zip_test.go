package zip

import (
	"encoding/binary"
	"io"
	"io/fs"
	"testing"

	"github.com/driftwood/unpacker/cache"
)

// storedHiZip and deflatedHelloZip are real ZIP archives produced by
// Python's zipfile module, used as an independent oracle: not anything
// produced by this package.
var storedHiZip = mustHex(
	"50 4b 03 04 14 00 00 00 00 00 31 39 fe 5c 0e 0e 17 4d 02 00 00 00 02 00 00 00 05 00 00 00 61 2e 74 78 74 48 69 50 4b 01 02 14 03 14 00 00 00 00 00 31 39 fe 5c 0e 0e 17 4d 02 00 00 00 02 00 00 00 05 00 00 00 00 00 00 00 00 00 00 00 80 01 00 00 00 00 61 2e 74 78 74 50 4b 05 06 00 00 00 00 01 00 01 00 33 00 00 00 25 00 00 00 00 00")

var deflatedHelloZip = mustHex(
	"50 4b 03 04 14 00 00 00 08 00 38 39 fe 5c b3 5e aa 79 17 00 00 00 23 00 00 00 09 00 00 00 64 69 72 2f 62 2e 74 78 74 f3 48 cd c9 c9 d7 51 a8 ca 2c 50 28 cf 2f ca 49 51 54 f0 40 17 01 00 50 4b 01 02 14 03 14 00 00 00 08 00 38 39 fe 5c b3 5e aa 79 17 00 00 00 23 00 00 00 09 00 00 00 00 00 00 00 00 00 00 00 80 01 00 00 00 00 64 69 72 2f 62 2e 74 78 74 50 4b 05 06 00 00 00 00 01 00 01 00 37 00 00 00 3e 00 00 00 00 00")

func mustHex(s string) []byte {
	var out []byte
	var hi, lo byte = 0, 0
	have := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		var v byte
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		default:
			continue
		}
		if have == 0 {
			hi = v
			have = 1
		} else {
			lo = v
			out = append(out, hi<<4|lo)
			have = 0
		}
	}
	return out
}

func TestOpenStoredEntry(t *testing.T) {
	entries, err := Open(storedHiZip)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Name != "a.txt" {
		t.Fatalf("got name %q", e.Name)
	}
	if e.Method != MethodStored {
		t.Fatalf("got method %d, want stored", e.Method)
	}
	if e.UncompressedSize != 2 {
		t.Fatalf("got size %d, want 2", e.UncompressedSize)
	}
	out, err := e.Open()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "Hi" {
		t.Fatalf("got %q, want %q", out, "Hi")
	}
}

func TestOpenDeflatedEntry(t *testing.T) {
	entries, err := Open(deflatedHelloZip)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Name != "dir/b.txt" {
		t.Fatalf("got name %q", e.Name)
	}
	if e.Method != MethodDeflate {
		t.Fatalf("got method %d, want deflate", e.Method)
	}
	want := "Hello, zip world! Hello, zip world!"
	out, err := e.Open()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestOpenRejectsTruncatedInput(t *testing.T) {
	if _, err := Open(storedHiZip[:10]); err != ErrFormat {
		t.Fatalf("got %v, want ErrFormat", err)
	}
}

func TestOpenRejectsChecksumMismatch(t *testing.T) {
	corrupt := append([]byte(nil), storedHiZip...)
	idx := 35 // offset of 'H' in storedHiZip's local data
	corrupt[idx] ^= 0xFF
	entries, err := Open(corrupt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := entries[0].Open(); err != ErrChecksum {
		t.Fatalf("got %v, want ErrChecksum", err)
	}
}

func TestFindEOCDRejectsNonZip(t *testing.T) {
	if _, _, err := findEOCD([]byte("not a zip file at all!")); err != ErrFormat {
		t.Fatalf("got %v, want ErrFormat", err)
	}
}

func TestParseExtraSplitsRecords(t *testing.T) {
	var b []byte
	b = binary.LittleEndian.AppendUint16(b, 0x5455)
	b = binary.LittleEndian.AppendUint16(b, 5)
	b = append(b, 1, 0, 0, 0, 0)
	extra := parseExtra(b)
	if len(extra[0x5455]) != 5 {
		t.Fatalf("got %v", extra)
	}
}

func TestTimeFromExtraFieldExtendedTimestamp(t *testing.T) {
	var field []byte
	field = append(field, 1) // mod time present
	field = binary.LittleEndian.AppendUint32(field, 1700000000)
	got := timeFromExtraField(extraExtTime, field)
	if got.Unix() != 1700000000 {
		t.Fatalf("got %v", got)
	}
}

func TestMsDOSTimeToTime(t *testing.T) {
	// 2023-11-14 22:13:20, DOS 2s resolution.
	got := msDOSTimeToTime(0x576e, 0xb1aa)
	if got.Year() != 2023 || got.Month() != 11 || got.Day() != 14 {
		t.Fatalf("got %v", got)
	}
}

func TestUnixDeviceFromExtra(t *testing.T) {
	var field []byte
	field = binary.LittleEndian.AppendUint32(field, 0) // atime
	field = binary.LittleEndian.AppendUint32(field, 0) // mtime
	field = binary.LittleEndian.AppendUint16(field, 0) // uid
	field = binary.LittleEndian.AppendUint16(field, 0) // gid
	field = binary.LittleEndian.AppendUint32(field, 8) // major
	field = binary.LittleEndian.AppendUint32(field, 1) // minor
	extra := map[int][]byte{extraUnix: field}
	major, minor, ok := unixDeviceFromExtra(extra)
	if !ok || major != 8 || minor != 1 {
		t.Fatalf("got major=%d minor=%d ok=%v", major, minor, ok)
	}
}

func TestUnixModeToFileMode(t *testing.T) {
	mode := unixModeToFileMode(0o755 | sIFDIR)
	if !mode.IsDir() {
		t.Fatalf("got %v, want directory", mode)
	}
	mode = unixModeToFileMode(0o644 | sIFLNK)
	if mode&fs.ModeSymlink == 0 {
		t.Fatalf("got %v, want symlink", mode)
	}
}

func TestDecodeCP437PlainASCII(t *testing.T) {
	if decodeCP437([]byte("plain.txt")) != "plain.txt" {
		t.Fatal("ASCII bytes should decode unchanged")
	}
}

func TestDecodeCP437HighBytes(t *testing.T) {
	got := decodeCP437([]byte{0x80}) // Ç in CP437
	if got != "Ç" {
		t.Fatalf("got %q, want %q", got, "Ç")
	}
}

func TestNewFSWalk(t *testing.T) {
	fsys, err := NewFS(deflatedHelloZip)
	if err != nil {
		t.Fatal(err)
	}
	f, err := fsys.Open("dir/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "Hello, zip world! Hello, zip world!" {
		t.Fatalf("got %q", got)
	}
	entries, err := fsys.ReadDir("dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "b.txt" {
		t.Fatalf("got %v", entries)
	}
}

func TestFSReopenReusesDecompressedCache(t *testing.T) {
	fsys, err := NewFS(deflatedHelloZip)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		f, err := fsys.Open("dir/b.txt")
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "Hello, zip world! Hello, zip world!" {
			t.Fatalf("pass %d: got %q", i, got)
		}
	}
	key := cache.Key{Source: "dir/b.txt", Offset: 0}
	if _, ok := fsys.blocks.Get(key); !ok {
		t.Fatal("expected the entry's decompressed bytes to be cached after reopening")
	}
}

func TestArchiveImplementsContainer(t *testing.T) {
	a := NewArchive(deflatedHelloZip)
	if a.Format() != "zip" {
		t.Fatalf("got %q", a.Format())
	}
	infos, err := a.Info()
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].Name != "dir/b.txt" {
		t.Fatalf("got %+v", infos)
	}
	fsys, err := a.Open()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(fsys, "dir/b.txt"); err != nil {
		t.Fatal(err)
	}
}
