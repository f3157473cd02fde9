// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"fmt"
	"io"
)

// NewReader returns an [ArchiveReader] for the archive of family format in src.
// The stream compressed tar families are decompressed on the fly; if the
// decompressed stream does not hold a tar archive, an [ErrUnsupportedFormat]
// error is returned. A nil cfg is replaced by the default configuration.
func NewReader(format ArchiveFormat, src io.Reader, cfg *Config) (ArchiveReader, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	switch {
	case format == FormatZip:
		return newZipReader(src, cfg)

	case format == FormatTar:
		return newTarReader(format, newCountingReader(src, cfg.MaxInputSize()), nil), nil

	case format.StreamCompressed():
		layer := compressionLayers[format]
		rc, err := layer.Decompress(newCountingReader(src, cfg.MaxInputSize()))
		if err != nil {
			return nil, readError(format, 0, fmt.Errorf("cannot create %s decompressor: %w", format, err))
		}
		ok, tarStream, err := peekTar(rc)
		if err != nil {
			rc.Close()
			return nil, readError(format, 0, err)
		}
		if !ok {
			rc.Close()
			e := newError(ErrUnsupportedFormat, StageClassify, fmt.Errorf("compressed stream does not hold a tar archive"))
			e.Format = format
			return nil, e
		}
		return newTarReader(format, tarStream, rc), nil
	}

	return nil, newError(ErrUnsupportedFormat, StageClassify, fmt.Errorf("no reader for %s", format))
}

// NewWriter returns an [ArchiveWriter] that serializes entries of family format
// into dst at the given compression level.
func NewWriter(format ArchiveFormat, dst io.Writer, level CompressionLevel) (ArchiveWriter, error) {
	if err := level.Validate(); err != nil {
		return nil, err
	}

	switch {
	case format == FormatZip:
		return newZipWriter(dst, level), nil

	case format == FormatTar:
		return newTarWriter(format, dst, nil), nil

	case format.StreamCompressed():
		wc, err := compressionLayers[format].Compress(dst, level)
		if err != nil {
			return nil, writeError(format, "", fmt.Errorf("cannot create %s compressor: %w", format, err))
		}
		return newTarWriter(format, dst, wc), nil
	}

	return nil, newError(ErrUnsupportedFormat, StageWrite, fmt.Errorf("no writer for %s", format))
}
