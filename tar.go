// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// tarBlockSize is the size of a tar header and of the zero blocks closing an archive
const tarBlockSize = 512

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header is the start of a tar archive: ustar magic bytes, a
// pre-POSIX header with a valid checksum, or the zero block of an empty archive.
func isTar(header []byte) bool {
	if matchesMagicBytes(header, offsetTar, magicBytesTar) {
		return true
	}
	if len(header) < tarBlockSize {
		return false
	}
	block := header[:tarBlockSize]
	return validTarChecksum(block) || isZeroBlock(block)
}

// validTarChecksum verifies the checksum field of a tar header. The checksum is
// the sum of all header bytes with the checksum field itself taken as spaces.
// Some historic implementations summed signed bytes, both are accepted.
func validTarChecksum(block []byte) bool {
	field := strings.Trim(string(block[148:156]), " \x00")
	if field == "" {
		return false
	}
	want, err := strconv.ParseInt(field, 8, 64)
	if err != nil {
		return false
	}
	var unsigned, signed int64
	for i, b := range block {
		if i >= 148 && i < 156 {
			b = ' '
		}
		unsigned += int64(b)
		signed += int64(int8(b))
	}
	return want == unsigned || want == signed
}

func isZeroBlock(block []byte) bool {
	return len(bytes.Trim(block, "\x00")) == 0
}

// tarReader produces the entries of a tar stream
type tarReader struct {
	format ArchiveFormat
	tr     *tar.Reader
	count  *countingReader
	closer io.Closer
}

// newTarReader reads the tar stream src. The offsets of errors refer to the tar
// stream, i.e., to the decompressed data of a compressed family.
func newTarReader(format ArchiveFormat, src io.Reader, closer io.Closer) *tarReader {
	count := newCountingReader(src, -1)
	return &tarReader{
		format: format,
		tr:     tar.NewReader(count),
		count:  count,
		closer: closer,
	}
}

// Format returns the family of the archive
func (t *tarReader) Format() ArchiveFormat {
	return t.format
}

// Next returns the next entry in the tar archive
func (t *tarReader) Next() (*Entry, error) {
	hdr, err := t.tr.Next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, readError(t.format, t.count.Offset(), err)
	}

	e := &Entry{
		Path:     NormalizePath(hdr.Name),
		Mode:     hdr.FileInfo().Mode() & permMask,
		HasMode:  true,
		ModTime:  hdr.ModTime,
		Size:     hdr.Size,
		Linkname: hdr.Linkname,
		Sys:      hdr,
	}

	switch hdr.Typeflag {
	case tar.TypeReg, tar.TypeRegA, tar.TypeCont, tar.TypeGNUSparse:
		e.Kind = KindRegular
		e.body = &contentReader{r: t.tr, format: t.format, offset: t.count.Offset}
	case tar.TypeDir:
		e.Kind = KindDir
	case tar.TypeSymlink:
		e.Kind = KindSymlink
	case tar.TypeLink:
		e.Kind = KindHardlink
		e.Linkname = NormalizePath(hdr.Linkname)
	default:
		e.Kind = KindOther
		e.body = &contentReader{r: t.tr, format: t.format, offset: t.count.Offset}
	}
	return e, nil
}

// Close releases the decompressor of the stream
func (t *tarReader) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// tarWriter serializes entries into a tar stream, optionally wrapped in a
// compression layer
type tarWriter struct {
	format ArchiveFormat
	tw     *tar.Writer
	layer  io.WriteCloser
}

func newTarWriter(format ArchiveFormat, dst io.Writer, layer io.WriteCloser) *tarWriter {
	w := dst
	if layer != nil {
		w = layer
	}
	return &tarWriter{format: format, tw: tar.NewWriter(w), layer: layer}
}

// paxBasicKeys are PAX records that the tar writer derives from header fields
var paxBasicKeys = map[string]bool{
	"path": true, "linkpath": true, "size": true, "uid": true, "gid": true,
	"uname": true, "gname": true, "mtime": true, "atime": true, "ctime": true,
}

// header builds the tar header for e. If e was read from a tar archive, owner,
// device numbers and vendor PAX records of the source header are kept.
func (t *tarWriter) header(e *Entry) *tar.Header {
	hdr := &tar.Header{}
	if src, ok := e.Sys.(*tar.Header); ok {
		// a global header carries nothing but its records
		if src.Typeflag == tar.TypeXGlobalHeader {
			return &tar.Header{Name: src.Name, Typeflag: src.Typeflag, PAXRecords: src.PAXRecords}
		}
		hdr.Uid, hdr.Gid = src.Uid, src.Gid
		hdr.Uname, hdr.Gname = src.Uname, src.Gname
		hdr.AccessTime, hdr.ChangeTime = src.AccessTime, src.ChangeTime
		// without a format, the writer rounds ModTime and drops atime and ctime
		hdr.Format = src.Format
		hdr.Devmajor, hdr.Devminor = src.Devmajor, src.Devminor
		hdr.Typeflag = src.Typeflag
		for k, v := range src.PAXRecords {
			if paxBasicKeys[k] {
				continue
			}
			if hdr.PAXRecords == nil {
				hdr.PAXRecords = make(map[string]string)
			}
			hdr.PAXRecords[k] = v
		}
	}

	hdr.Name = e.Path
	hdr.Mode = tarMode(e.Perm())
	hdr.ModTime = e.ModTime
	switch e.Kind {
	case KindRegular:
		hdr.Typeflag = tar.TypeReg
		hdr.Size = e.Size
	case KindDir:
		hdr.Typeflag = tar.TypeDir
		hdr.Name = e.Path + "/"
		if e.Path == "" {
			hdr.Name = "./"
		}
	case KindSymlink:
		hdr.Typeflag = tar.TypeSymlink
		hdr.Linkname = e.Linkname
	case KindHardlink:
		hdr.Typeflag = tar.TypeLink
		hdr.Linkname = e.Linkname
	case KindOther:
		hdr.Size = e.Size
		hdr.Linkname = e.Linkname
	}
	return hdr
}

// WriteEntry appends e to the tar stream
func (t *tarWriter) WriteEntry(e *Entry) error {
	hdr := t.header(e)
	if e.Kind == KindOther {
		if _, ok := e.Sys.(*tar.Header); !ok {
			return writeError(t.format, e.Path, fmt.Errorf("cannot write %s entry without tar header", e.Kind))
		}
	}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return writeError(t.format, e.Path, err)
	}
	if hdr.Size > 0 {
		if _, err := io.Copy(t.tw, e); err != nil {
			return writeError(t.format, e.Path, err)
		}
	}
	return nil
}

// Finish writes the two zero blocks that close the archive and flushes the
// compression layer
func (t *tarWriter) Finish() error {
	if err := t.tw.Close(); err != nil {
		return writeError(t.format, "", err)
	}
	if t.layer != nil {
		if err := t.layer.Close(); err != nil {
			return writeError(t.format, "", err)
		}
	}
	return nil
}

// tarMode converts permission bits into the mode field of a tar header.
func tarMode(perm fs.FileMode) int64 {
	mode := int64(perm.Perm())
	if perm&fs.ModeSetuid != 0 {
		mode |= 04000
	}
	if perm&fs.ModeSetgid != 0 {
		mode |= 02000
	}
	if perm&fs.ModeSticky != 0 {
		mode |= 01000
	}
	return mode
}
