package zip

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/driftwood/unpacker/cache"
)

// fsCacheCapacity bounds how many entries' decompressed bytes an FS
// keeps warm across repeated Open calls for the same path.
const fsCacheCapacity = 64

// FS presents a parsed ZIP archive as a read-only fs.FS. Entry data is
// decompressed and checksum-verified lazily, on first read, and the
// result is cached so reopening the same path doesn't redo the work.
type FS struct {
	entries []fsEntry
	index   map[string]int
	dirs    map[string][]fs.DirEntry
	blocks  *cache.Cache
}

type fsEntry struct {
	entry Entry
	name  string
}

func (e *fsEntry) Name() string               { return path.Base(e.name) }
func (e *fsEntry) Size() int64                { return e.entry.UncompressedSize }
func (e *fsEntry) Mode() fs.FileMode          { return e.entry.Mode }
func (e *fsEntry) ModTime() time.Time         { return e.entry.ModTime }
func (e *fsEntry) IsDir() bool                { return e.entry.IsDir() }
func (e *fsEntry) Sys() any                   { return &e.entry }
func (e *fsEntry) Type() fs.FileMode          { return e.Mode().Type() }
func (e *fsEntry) Info() (fs.FileInfo, error) { return e, nil }

// NewFS builds a filesystem view from a complete ZIP archive.
func NewFS(data []byte) (*FS, error) {
	entries, err := Open(data)
	if err != nil {
		return nil, err
	}
	fsys := &FS{index: map[string]int{}, dirs: map[string][]fs.DirEntry{}, blocks: cache.New(fsCacheCapacity)}
	for _, e := range entries {
		name := normalizePath(e.Name)
		fsys.index[name] = len(fsys.entries)
		fsys.entries = append(fsys.entries, fsEntry{entry: e, name: name})
	}
	for i := range fsys.entries {
		en := &fsys.entries[i]
		dir := path.Dir(en.name)
		fsys.dirs[dir] = append(fsys.dirs[dir], en)
	}
	for _, list := range fsys.dirs {
		sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	}
	return fsys, nil
}

func normalizePath(name string) string {
	name = strings.TrimSuffix(name, "/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "."
	}
	return name
}

type fsFile struct {
	entry  *fsEntry
	reader *cache.ReaderAt
	pos    int64
	cursor int
	fsys   *FS
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return f.entry, nil }
func (f *fsFile) Close() error               { return nil }

// blockReader lazily builds the cached reader over this file's
// decompressed bytes. The entry decompresses as a single chunk, so the
// Stepper runs at most once per cache miss; repeated reads of the same
// path across separate Open calls reuse the fsys-wide cache instead of
// decompressing again.
func (f *fsFile) blockReader() *cache.ReaderAt {
	if f.reader != nil {
		return f.reader
	}
	e := f.entry.entry
	step := func() (cache.Stepper, []byte, error) {
		blob, err := e.Open()
		return nil, blob, err
	}
	f.reader = cache.NewReaderAt(f.fsys.blocks, f.entry.name, e.UncompressedSize, step)
	return f.reader
}

func (f *fsFile) Read(p []byte) (int, error) {
	if f.entry.IsDir() {
		return 0, &fs.PathError{Op: "read", Path: f.entry.name, Err: fs.ErrInvalid}
	}
	r := f.blockReader()
	if f.pos >= r.Size() {
		return 0, io.EOF
	}
	n, err := r.ReadAt(p, f.pos)
	f.pos += int64(n)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (f *fsFile) ReadDir(n int) ([]fs.DirEntry, error) {
	list := f.fsys.dirs[f.entry.name]
	if f.cursor >= len(list) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	if n <= 0 || f.cursor+n > len(list) {
		rest := list[f.cursor:]
		f.cursor = len(list)
		return rest, nil
	}
	rest := list[f.cursor : f.cursor+n]
	f.cursor += n
	return rest, nil
}

// Open implements fs.FS.
func (fsys *FS) Open(name string) (fs.File, error) {
	if name == "." {
		return &fsFile{entry: &fsEntry{name: ".", entry: Entry{Mode: fs.ModeDir}}, fsys: fsys}, nil
	}
	i, ok := fsys.index[normalizePath(name)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &fsFile{entry: &fsys.entries[i], fsys: fsys}, nil
}

// Stat implements fs.StatFS.
func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	if name == "." {
		return &fsEntry{name: ".", entry: Entry{Mode: fs.ModeDir}}, nil
	}
	i, ok := fsys.index[normalizePath(name)]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return &fsys.entries[i], nil
}

// ReadDir implements fs.ReadDirFS.
func (fsys *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	return fsys.dirs[normalizePath(name)], nil
}
