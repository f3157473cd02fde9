// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// magicBytesZip contains the magic bytes for a zip archive. The second entry
// is the end of central directory record of an archive without entries.
// reference: https://golang.org/pkg/archive/zip/
var magicBytesZip = [][]byte{
	{0x50, 0x4B, 0x03, 0x04},
	{0x50, 0x4B, 0x05, 0x06},
}

// creator systems that store unix permission bits in the external attributes
const (
	zipCreatorUnix  = 3
	zipCreatorMacOS = 19
)

// maxLinknameSize bounds the content of a zip symlink entry
const maxLinknameSize = 4096

// isZip checks if data is a zip archive. It returns true if data is a zip archive and false if data is not a zip archive.
func isZip(data []byte) bool {
	return matchesMagicBytes(data, 0, magicBytesZip)
}

// seekerReaderAt is a zip source that can be read in place
type seekerReaderAt interface {
	io.ReaderAt
	io.Seeker
}

// commenter is implemented by readers of formats with an archive comment
type commenter interface {
	Comment() string
}

// commentSetter is implemented by writers of formats with an archive comment
type commentSetter interface {
	SetComment(comment string) error
}

// zipReader produces the entries of a zip archive in the order of their local
// headers
type zipReader struct {
	files   []*zip.File
	offsets []int64
	next    int
	cur     io.ReadCloser
	comment string
	spool   *os.File
}

// newZipReader opens the zip archive in src. Zip keeps kind and permission
// metadata in the central directory at the end of the archive, so a source that
// cannot be read in place is spooled first.
func newZipReader(src io.Reader, cfg *Config) (*zipReader, error) {
	z := &zipReader{}

	ra, size, ok := inPlace(src)
	if !ok {
		var err error
		ra, size, err = z.spoolInput(src, cfg)
		if err != nil {
			z.Close()
			return nil, err
		}
	}
	if cfg.MaxInputSize() != -1 && size > cfg.MaxInputSize() {
		z.Close()
		return nil, readError(FormatZip, noOffset, fmt.Errorf("%w: %d bytes", errInputTooLarge, cfg.MaxInputSize()))
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		z.Close()
		return nil, readError(FormatZip, noOffset, err)
	}
	z.comment = zr.Comment

	type located struct {
		f   *zip.File
		off int64
	}
	files := make([]located, 0, len(zr.File))
	for _, f := range zr.File {
		off, err := f.DataOffset()
		if err != nil {
			z.Close()
			return nil, readError(FormatZip, noOffset, err)
		}
		files = append(files, located{f, off})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].off < files[j].off })
	for _, l := range files {
		z.files = append(z.files, l.f)
		z.offsets = append(z.offsets, l.off)
	}
	return z, nil
}

// inPlace returns src as a section starting at its current position if it can
// be read without spooling.
func inPlace(src io.Reader) (io.ReaderAt, int64, bool) {
	sra, ok := src.(seekerReaderAt)
	if !ok {
		return nil, 0, false
	}
	start, err := sra.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, false
	}
	end, err := sra.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, false
	}
	if _, err := sra.Seek(start, io.SeekStart); err != nil {
		return nil, 0, false
	}
	return io.NewSectionReader(sra, start, end-start), end - start, true
}

// spoolInput copies src into memory or into a temporary file, depending on
// the configuration.
func (z *zipReader) spoolInput(src io.Reader, cfg *Config) (io.ReaderAt, int64, error) {
	ler := newCountingReader(src, cfg.MaxInputSize())

	// check how to cache
	if cfg.CacheInMemory() {
		b, err := io.ReadAll(ler)
		if err != nil {
			return nil, 0, readError(FormatZip, ler.Offset(), fmt.Errorf("cannot read all from reader: %w", err))
		}
		return bytes.NewReader(b), int64(len(b)), nil
	}

	// create temp file
	tmpFile, err := os.CreateTemp(cfg.SpoolDir(), "expurgate-*.zip")
	if err != nil {
		e := newError(ErrIO, StageOpen, fmt.Errorf("cannot create spool file: %w", err))
		e.Format = FormatZip
		return nil, 0, e
	}
	z.spool = tmpFile

	// copy reader to temp file
	n, err := io.Copy(tmpFile, ler)
	if err != nil {
		return nil, 0, readError(FormatZip, ler.Offset(), fmt.Errorf("cannot copy reader to file: %w", err))
	}
	return tmpFile, n, nil
}

// Format returns the family of the archive
func (z *zipReader) Format() ArchiveFormat {
	return FormatZip
}

// Comment returns the archive comment
func (z *zipReader) Comment() string {
	return z.comment
}

// Next returns the next entry in the zip archive
func (z *zipReader) Next() (*Entry, error) {
	if z.cur != nil {
		z.cur.Close()
		z.cur = nil
	}
	if z.next >= len(z.files) {
		return nil, io.EOF
	}
	f, off := z.files[z.next], z.offsets[z.next]
	z.next++

	mode := f.Mode()
	e := &Entry{
		Path:    NormalizePath(f.Name),
		Mode:    mode & permMask,
		HasMode: zipHasMode(&f.FileHeader),
		ModTime: f.Modified,
		Size:    int64(f.UncompressedSize64),
		Sys:     &f.FileHeader,
	}

	switch {
	case mode.IsDir():
		e.Kind = KindDir
		e.Size = 0
	case mode&fs.ModeSymlink != 0:
		e.Kind = KindSymlink
		rc, err := f.Open()
		if err != nil {
			return nil, readError(FormatZip, off, err)
		}
		target, err := io.ReadAll(io.LimitReader(rc, maxLinknameSize+1))
		rc.Close()
		if err != nil {
			return nil, readError(FormatZip, off, err)
		}
		if len(target) > maxLinknameSize {
			return nil, readError(FormatZip, off, fmt.Errorf("symlink target of %s exceeds %d bytes", f.Name, maxLinknameSize))
		}
		e.Linkname = string(target)
		e.Size = 0
	default:
		e.Kind = KindRegular
		rc, err := f.Open()
		if err != nil {
			return nil, readError(FormatZip, off, err)
		}
		z.cur = rc
		e.body = &contentReader{r: rc, format: FormatZip, offset: func() int64 { return off }}
	}
	return e, nil
}

// Close releases the open entry and removes the spool file
func (z *zipReader) Close() error {
	if z.cur != nil {
		z.cur.Close()
		z.cur = nil
	}
	if z.spool != nil {
		z.spool.Close()
		err := os.Remove(z.spool.Name())
		z.spool = nil
		return err
	}
	return nil
}

// zipHasMode reports whether the external attributes of h hold unix permission bits
func zipHasMode(h *zip.FileHeader) bool {
	creator := h.CreatorVersion >> 8
	return (creator == zipCreatorUnix || creator == zipCreatorMacOS) && h.ExternalAttrs>>16 != 0
}

// zipWriter serializes entries into a zip archive. Every file and symlink is
// compressed on its own at the configured level, directories are stored.
type zipWriter struct {
	zw    *zip.Writer
	level CompressionLevel
}

func newZipWriter(dst io.Writer, level CompressionLevel) *zipWriter {
	zw := zip.NewWriter(dst)
	if level > MinCompressionLevel {
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, int(level))
		})
	}
	return &zipWriter{zw: zw, level: level}
}

// SetComment sets the archive comment
func (z *zipWriter) SetComment(comment string) error {
	if err := z.zw.SetComment(comment); err != nil {
		return writeError(FormatZip, "", err)
	}
	return nil
}

// header builds the file header of e. Without permission bits, the attributes of
// a zip source header are kept as they are.
func (z *zipWriter) header(e *Entry) (*zip.FileHeader, error) {
	hdr := &zip.FileHeader{
		Name:     e.Path,
		Modified: e.ModTime,
		Method:   zip.Deflate,
	}
	if z.level == MinCompressionLevel {
		hdr.Method = zip.Store
	}

	var typ fs.FileMode
	switch e.Kind {
	case KindRegular:
	case KindDir:
		typ = fs.ModeDir
		hdr.Method = zip.Store
		hdr.Name = e.Path + "/"
		if e.Path == "" {
			hdr.Name = "./"
		}
	case KindSymlink:
		typ = fs.ModeSymlink
	default:
		return nil, fmt.Errorf("zip cannot store %s entries", e.Kind)
	}

	src, fromZip := e.Sys.(*zip.FileHeader)
	if fromZip {
		hdr.Comment = src.Comment
	}
	if fromZip && !e.HasMode {
		hdr.CreatorVersion = src.CreatorVersion
		hdr.ExternalAttrs = src.ExternalAttrs
	} else {
		hdr.SetMode(typ | e.Perm())
	}
	return hdr, nil
}

// WriteEntry appends e to the zip archive
func (z *zipWriter) WriteEntry(e *Entry) error {
	hdr, err := z.header(e)
	if err != nil {
		return writeError(FormatZip, e.Path, err)
	}
	w, err := z.zw.CreateHeader(hdr)
	if err != nil {
		return writeError(FormatZip, e.Path, err)
	}

	switch e.Kind {
	case KindSymlink:
		_, err = io.WriteString(w, e.Linkname)
	case KindRegular:
		_, err = io.Copy(w, e)
	}
	if err != nil {
		return writeError(FormatZip, e.Path, err)
	}
	return nil
}

// Finish writes the central directory
func (z *zipWriter) Finish() error {
	if err := z.zw.Close(); err != nil {
		return writeError(FormatZip, "", err)
	}
	return nil
}
