// Package checksum gathers the integrity checks the container and
// framing formats rely on: CRC32 (IEEE, used by GZIP and ZIP), CRC64
// (the XZ polynomial), Adler-32 (ZLIB), and the TAR header byte-sum.
//
// CRC32/CRC64/Adler-32 are computed with the standard library's hash
// implementations (hash/crc32, hash/crc64, hash/adler32) — every format
// package the teacher ships (internal/zip/checksum.go) reaches for
// hash/crc32 directly rather than hand-rolling the polynomial, and no
// third-party library in the retrieval pack improves on that.
package checksum

import (
	"hash/adler32"
	"hash/crc32"
	"hash/crc64"
)

// CRC32IEEE returns the IEEE CRC-32 of b, as used by GZIP and ZIP.
func CRC32IEEE(b []byte) uint32 { return crc32.ChecksumIEEE(b) }

// xzCRC64Table is the ECMA-182 polynomial XZ's stream index and block
// check use.
var xzCRC64Table = crc64.MakeTable(crc64.ECMA)

// CRC64XZ returns the CRC-64 (ECMA polynomial) of b.
func CRC64XZ(b []byte) uint64 { return crc64.Checksum(b, xzCRC64Table) }

// Adler32 returns the Adler-32 checksum of b, as used by ZLIB. ZLIB
// stores this value big-endian even though most other fields in the
// formats this module decodes are little-endian (spec §6).
func Adler32(b []byte) uint32 { return adler32.Checksum(b) }

// TarSum computes the TAR header checksum: the sum of all 512 header
// bytes with the 8-byte checksum field itself treated as eight ASCII
// spaces (0x20). Historic writers disagree on whether header bytes
// should be summed as signed or unsigned, so both sums are returned and
// a header is considered valid if either matches the stored value
// (spec §4.8, §9).
func TarSum(header [512]byte) (unsigned int64, signed int64) {
	for i, b := range header {
		c := b
		if i >= 148 && i < 156 { // checksum field
			c = ' '
		}
		unsigned += int64(c)
		signed += int64(int8(c))
	}
	return unsigned, signed
}
