// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/pierrec/lz4/v4"
)

// magicBytesLZ4 are the magic bytes of the lz4 frame format.
var magicBytesLZ4 = [][]byte{
	{0x04, 0x22, 0x4D, 0x18},
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
	lz4.Level8,
	lz4.Level9,
}

func isLZ4(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesLZ4)
}

func decompressLZ4Stream(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(src)), nil
}

func compressLZ4Stream(dst io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	zw := lz4.NewWriter(dst)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4Levels[level])); err != nil {
		return nil, err
	}
	return zw, nil
}
