package tar

import (
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// FS presents a parsed TAR archive as a read-only fs.FS, letting callers
// walk it with fs.WalkDir or fs.Glob the way they would any other
// filesystem. Layout is grounded on the retrieval pack's tarfs reader
// (jonjohnsonjr/targz's tarfs package): entries indexed by normalized
// path, directory listings precomputed once at build time.
type FS struct {
	entries []fsEntry
	index   map[string]int
	dirs    map[string][]fs.DirEntry
}

type fsEntry struct {
	header Header
	data   []byte
	name   string
}

func (e *fsEntry) Name() string               { return path.Base(e.name) }
func (e *fsEntry) Size() int64                { return e.header.Size }
func (e *fsEntry) Mode() fs.FileMode          { return entryMode(e.header) }
func (e *fsEntry) ModTime() time.Time         { return e.header.ModTime }
func (e *fsEntry) IsDir() bool                { return e.header.Typeflag == TypeDir }
func (e *fsEntry) Sys() any                   { return &e.header }
func (e *fsEntry) Type() fs.FileMode          { return e.Mode().Type() }
func (e *fsEntry) Info() (fs.FileInfo, error) { return e, nil }

func entryMode(h Header) fs.FileMode {
	mode := fs.FileMode(h.Mode & 0777)
	switch h.Typeflag {
	case TypeDir:
		mode |= fs.ModeDir
	case TypeSymlink:
		mode |= fs.ModeSymlink
	case TypeCharDev:
		mode |= fs.ModeCharDevice
	case TypeBlockDev:
		mode |= fs.ModeDevice
	case TypeFifo:
		mode |= fs.ModeNamedPipe
	}
	return mode
}

// NewFS builds a filesystem view of a fully parsed archive.
func NewFS(data []byte) (*FS, error) {
	headers, bodies, err := ReadAll(data)
	if err != nil {
		return nil, err
	}
	fsys := &FS{index: map[string]int{}, dirs: map[string][]fs.DirEntry{}}
	for i, h := range headers {
		name := normalizePath(h.Name)
		fsys.index[name] = len(fsys.entries)
		fsys.entries = append(fsys.entries, fsEntry{header: h, data: bodies[i], name: name})
	}
	for i := range fsys.entries {
		e := &fsys.entries[i]
		dir := path.Dir(e.name)
		fsys.dirs[dir] = append(fsys.dirs[dir], e)
	}
	for _, list := range fsys.dirs {
		sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	}
	return fsys, nil
}

func normalizePath(name string) string {
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimSuffix(name, "/")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "."
	}
	return name
}

type fsFile struct {
	entry  *fsEntry
	pos    int
	cursor int
	fsys   *FS
}

func (f *fsFile) Stat() (fs.FileInfo, error) { return f.entry, nil }
func (f *fsFile) Close() error                { return nil }

func (f *fsFile) Read(p []byte) (int, error) {
	if f.pos >= len(f.entry.data) {
		return 0, io.EOF
	}
	n := copy(p, f.entry.data[f.pos:])
	f.pos += n
	return n, nil
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
		return &fsFile{entry: &fsEntry{name: ".", header: Header{Typeflag: TypeDir}}, fsys: fsys}, nil
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
		return &fsEntry{name: ".", header: Header{Typeflag: TypeDir}}, nil
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
