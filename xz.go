// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/ulikunitz/xz"
)

// magicBytesXz is the magic bytes for xz files.
// reference https://tukaani.org/xz/xz-file-format-1.0.4.txt
var magicBytesXz = [][]byte{
	{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
}

// xzDictCaps are the dictionary sizes of the xz presets 0-9.
var xzDictCaps = [...]int{
	256 << 10,
	1 << 20,
	2 << 20,
	4 << 20,
	4 << 20,
	8 << 20,
	8 << 20,
	16 << 20,
	32 << 20,
	64 << 20,
}

// isXz checks if the header matches the xz magic bytes.
func isXz(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesXz)
}

// decompressXzStream returns an io.ReadCloser that decompresses src with xz algorithm
func decompressXzStream(src io.Reader) (io.ReadCloser, error) {
	r, err := xz.NewReader(src)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

// compressXzStream returns an xz writer with the dictionary size of the preset level.
func compressXzStream(dst io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return xz.WriterConfig{DictCap: xzDictCaps[level]}.NewWriter(dst)
}
