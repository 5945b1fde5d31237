package zip

import (
	"io/fs"

	"github.com/driftwood/unpacker/entry"
)

// Archive adapts a complete in-memory ZIP archive to entry.Container.
type Archive struct {
	data []byte
}

// NewArchive wraps data for use as an entry.Container.
func NewArchive(data []byte) *Archive { return &Archive{data: data} }

// Open implements entry.Container.
func (a *Archive) Open() (fs.FS, error) { return NewFS(a.data) }

// Format implements entry.Container.
func (a *Archive) Format() string { return "zip" }

// Info implements entry.Container, flattening every central directory
// record into the cross-format entry.Info shape.
func (a *Archive) Info() ([]entry.Info, error) {
	entries, err := Open(a.data)
	if err != nil {
		return nil, err
	}
	out := make([]entry.Info, len(entries))
	for i, e := range entries {
		kind := entry.KindRegular
		switch {
		case e.IsDir():
			kind = entry.KindDirectory
		case e.Mode&fs.ModeSymlink != 0:
			kind = entry.KindSymlink
		case e.Mode&fs.ModeCharDevice != 0:
			kind = entry.KindCharDevice
		case e.Mode&fs.ModeDevice != 0:
			kind = entry.KindBlockDevice
		}
		extra := map[string]any{"method": e.Method, "crc32": e.CRC32}
		if kind == entry.KindCharDevice || kind == entry.KindBlockDevice {
			if major, minor, ok := unixDeviceFromExtra(e.Extra); ok {
				extra["dev"] = entry.Device(major, minor)
			}
		}
		out[i] = entry.Info{
			Name:    e.Name,
			Size:    e.UncompressedSize,
			Kind:    kind,
			Mode:    e.Mode,
			ModTime: e.ModTime,
			Uid:     e.UID,
			Gid:     e.GID,
			Comment: e.Comment,
			Extra:   extra,
		}
	}
	return out, nil
}
