// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// magicBytesZstd are the magic bytes for zstd compressed files.
// reference: https://datatracker.ietf.org/doc/html/rfc8878
var magicBytesZstd = [][]byte{
	{0x28, 0xb5, 0x2f, 0xfd},
}

// isZstd checks if the header matches the magic bytes for zstd compressed files.
func isZstd(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesZstd)
}

// decompressZstdStream returns a single threaded zstd decoder. Closing it stops
// the decoder.
func decompressZstdStream(src io.Reader) (io.ReadCloser, error) {
	d, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return d.IOReadCloser(), nil
}

// compressZstdStream returns a single threaded zstd encoder. The level is mapped
// to the closest zstd speed setting.
func compressZstdStream(dst io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return zstd.NewWriter(dst,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))),
		zstd.WithEncoderConcurrency(1),
	)
}
