package tar

import (
	"io/fs"

	"github.com/driftwood/unpacker/entry"
)

// Archive adapts a complete in-memory TAR archive to entry.Container.
type Archive struct {
	data []byte
}

// NewArchive wraps data for use as an entry.Container.
func NewArchive(data []byte) *Archive { return &Archive{data: data} }

// Open implements entry.Container.
func (a *Archive) Open() (fs.FS, error) { return NewFS(a.data) }

// Format implements entry.Container.
func (a *Archive) Format() string { return "tar" }

// Info implements entry.Container, flattening every header into the
// cross-format entry.Info shape.
func (a *Archive) Info() ([]entry.Info, error) {
	headers, _, err := ReadAll(a.data)
	if err != nil {
		return nil, err
	}
	out := make([]entry.Info, len(headers))
	for i, h := range headers {
		kind := kindFromTypeflag(h.Typeflag)
		extra := map[string]any{"pax": h.PAXRecords, "format": h.Format.String()}
		if kind == entry.KindCharDevice || kind == entry.KindBlockDevice {
			extra["dev"] = entry.Device(h.Devmajor, h.Devminor)
		}
		out[i] = entry.Info{
			Name:       h.Name,
			Size:       h.Size,
			Kind:       kind,
			Mode:       entryMode(h),
			ModTime:    h.ModTime,
			AccessTime: h.AccessTime,
			ChangeTime: h.ChangeTime,
			Uid:        h.UID,
			Gid:        h.GID,
			Uname:      h.Uname,
			Gname:      h.Gname,
			LinkTarget: h.Linkname,
			Extra:      extra,
		}
	}
	return out, nil
}

func kindFromTypeflag(t byte) entry.Kind {
	switch t {
	case TypeDir:
		return entry.KindDirectory
	case TypeSymlink:
		return entry.KindSymlink
	case TypeHardlink:
		return entry.KindHardlink
	case TypeCharDev:
		return entry.KindCharDevice
	case TypeBlockDev:
		return entry.KindBlockDevice
	case TypeFifo:
		return entry.KindFIFO
	case TypeRegular:
		return entry.KindRegular
	default:
		return entry.KindOther
	}
}
