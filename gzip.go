// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// magicBytesGZip are the magic bytes for gzip compressed files.
//
// https://socketloop.com/tutorials/golang-gunzip-file
var magicBytesGZip = [][]byte{
	{0x1f, 0x8b},
}

// isGZip checks if the header matches the magic bytes for gzip compressed files.
func isGZip(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesGZip)
}

// decompressGZipStream returns an io.ReadCloser that decompresses src with gzip algorithm.
func decompressGZipStream(src io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(src)
}

// compressGZipStream returns a gzip writer. The levels of gzip match
// [CompressionLevel], 0 stores the data in uncompressed blocks.
func compressGZipStream(dst io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(dst, int(level))
}
