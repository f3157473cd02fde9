// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import "io"

// decompressionFunc wraps src with a reader that decompresses the stream.
type decompressionFunc func(src io.Reader) (io.ReadCloser, error)

// compressionFunc wraps dst with a writer that compresses at level. Closing the
// writer flushes the compression layer but does not close dst.
type compressionFunc func(dst io.Writer, level CompressionLevel) (io.WriteCloser, error)

// headerCheck is a function that checks if the given header matches the expected magic bytes.
type headerCheck func([]byte) bool

// compressionLayer is the outer compression of a stream compressed tar family.
type compressionLayer struct {
	HeaderCheck headerCheck
	MagicBytes  [][]byte
	Decompress  decompressionFunc
	Compress    compressionFunc
}

// compressionLayers is the collection of supported outer compressions with their
// magic bytes
var compressionLayers = map[ArchiveFormat]compressionLayer{
	FormatTarGzip: {
		HeaderCheck: isGZip,
		MagicBytes:  magicBytesGZip,
		Decompress:  decompressGZipStream,
		Compress:    compressGZipStream,
	},
	FormatTarXz: {
		HeaderCheck: isXz,
		MagicBytes:  magicBytesXz,
		Decompress:  decompressXzStream,
		Compress:    compressXzStream,
	},
	FormatTarBzip2: {
		HeaderCheck: isBzip2,
		MagicBytes:  magicBytesBzip2,
		Decompress:  decompressBzip2Stream,
		Compress:    compressBzip2Stream,
	},
	FormatTarZstd: {
		HeaderCheck: isZstd,
		MagicBytes:  magicBytesZstd,
		Decompress:  decompressZstdStream,
		Compress:    compressZstdStream,
	},
	FormatTarLz4: {
		HeaderCheck: isLZ4,
		MagicBytes:  magicBytesLZ4,
		Decompress:  decompressLZ4Stream,
		Compress:    compressLZ4Stream,
	},
	FormatTarSnappy: {
		HeaderCheck: isSnappy,
		MagicBytes:  magicBytesSnappy,
		Decompress:  decompressSnappyStream,
		Compress:    compressSnappyStream,
	},
}

// layerOrder is the order in which compression magic bytes are checked
var layerOrder = []ArchiveFormat{
	FormatTarGzip,
	FormatTarXz,
	FormatTarBzip2,
	FormatTarZstd,
	FormatTarLz4,
	FormatTarSnappy,
}
