// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"bytes"
	"fmt"
)

// ArchiveFormat is the family an archive belongs to. It determines framing and
// compression strategy.
type ArchiveFormat int

const (
	FormatUnknown ArchiveFormat = iota
	FormatZip
	FormatTar
	FormatTarGzip
	FormatTarXz
	FormatTarBzip2
	FormatTarZstd
	FormatTarLz4
	FormatTarSnappy
)

// String returns the conventional name of the format.
func (f ArchiveFormat) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarBzip2:
		return "tar.bz2"
	case FormatTarZstd:
		return "tar.zst"
	case FormatTarLz4:
		return "tar.lz4"
	case FormatTarSnappy:
		return "tar.sz"
	default:
		return "unknown"
	}
}

// Extension returns the conventional file extension. It is advisory only and is
// never used for classification.
func (f ArchiveFormat) Extension() string {
	if f == FormatUnknown {
		return ""
	}
	return "." + f.String()
}

// RecordCompressed reports whether every entry is compressed independently.
func (f ArchiveFormat) RecordCompressed() bool {
	return f == FormatZip
}

// StreamCompressed reports whether the whole tar stream is wrapped in a single
// compression layer.
func (f ArchiveFormat) StreamCompressed() bool {
	_, ok := compressionLayers[f]
	return ok
}

// SupportsPermissions reports whether entries carry POSIX permission bits.
func (f ArchiveFormat) SupportsPermissions() bool {
	return f != FormatUnknown
}

// SupportsSymlinks reports whether the format can store symbolic links.
func (f ArchiveFormat) SupportsSymlinks() bool {
	return f != FormatUnknown
}

// SupportsModTime reports whether entries carry a modification time.
func (f ArchiveFormat) SupportsModTime() bool {
	return f != FormatUnknown
}

// Classify determines the archive format from the leading bytes of a stream.
// The prefix should hold at least [HeaderLength] bytes unless the stream is
// shorter. Zip and compression magic bytes are checked first, then the prefix is
// parsed as a tar header.
func Classify(prefix []byte) (ArchiveFormat, error) {
	if isZip(prefix) {
		return FormatZip, nil
	}
	for _, f := range layerOrder {
		if compressionLayers[f].HeaderCheck(prefix) {
			return f, nil
		}
	}
	if isTar(prefix) {
		return FormatTar, nil
	}
	return FormatUnknown, newError(ErrUnsupportedFormat, StageClassify, fmt.Errorf("no known magic bytes in %d byte header", len(prefix)))
}

// HeaderLength is the number of leading bytes Classify needs to decide on every
// supported format.
var HeaderLength int

// init calculates the maximum header length
func init() {
	HeaderLength = tarBlockSize
	check := func(offset int, magicBytes [][]byte) {
		for _, mb := range magicBytes {
			if len(mb)+offset > HeaderLength {
				HeaderLength = len(mb) + offset
			}
		}
	}
	check(0, magicBytesZip)
	check(offsetTar, magicBytesTar)
	for _, l := range compressionLayers {
		check(0, l.MagicBytes)
	}
}

// matchesMagicBytes checks if data holds one of magicBytes at offset.
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	for _, mb := range magicBytes {
		if offset+len(mb) > len(data) {
			continue
		}
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}
	return false
}
