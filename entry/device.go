package entry

import "golang.org/x/sys/unix"

// Device packs TAR's separate Devmajor/Devminor fields (and ZIP's Unix
// external attributes, when an entry turns out to be a device node)
// into the combined dev_t value fs.FileInfo.Sys() callers expect to
// unpack on Unix.
func Device(major, minor int64) uint64 {
	return unix.Mkdev(uint32(major), uint32(minor))
}
