// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// magicBytesBzip2 are the magic bytes for bzip2 compressed files
// reference: https://en.wikipedia.org/wiki/Bzip2 // https://github.com/dsnet/compress/blob/master/doc/bzip2-format.pdf
var magicBytesBzip2 = [][]byte{
	[]byte("BZh1"),
	[]byte("BZh2"),
	[]byte("BZh3"),
	[]byte("BZh4"),
	[]byte("BZh5"),
	[]byte("BZh6"),
	[]byte("BZh7"),
	[]byte("BZh8"),
	[]byte("BZh9"),
}

// isBzip2 checks if the header matches the magic bytes for bzip2 compressed files
func isBzip2(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesBzip2)
}

func decompressBzip2Stream(src io.Reader) (io.ReadCloser, error) {
	return bzip2.NewReader(src, nil)
}

// compressBzip2Stream returns a bzip2 writer. bzip2 has no store mode, level 0
// uses the fastest block size.
func compressBzip2Stream(dst io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return bzip2.NewWriter(dst, &bzip2.WriterConfig{Level: max(int(level), bzip2.BestSpeed)})
}
