// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"

	"github.com/golang/snappy"
)

// magicBytesSnappy is the stream identifier chunk of the snappy framing format.
var magicBytesSnappy = [][]byte{
	append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
}

func isSnappy(header []byte) bool {
	return matchesMagicBytes(header, 0, magicBytesSnappy)
}

func decompressSnappyStream(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(src)), nil
}

// compressSnappyStream returns a framed snappy writer. Snappy has no levels.
func compressSnappyStream(dst io.Writer, _ CompressionLevel) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}
