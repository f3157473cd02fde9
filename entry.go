// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"io"
	"io/fs"
	"time"
)

// EntryKind is the type of an archive entry.
type EntryKind int

const (
	KindRegular EntryKind = iota
	KindDir
	KindSymlink

	// KindHardlink is a tar link to an earlier entry of the same archive.
	KindHardlink

	// KindOther covers records the model does not name, e.g., device nodes,
	// FIFOs or global PAX headers. Only a writer of the same family can
	// reproduce them from Sys.
	KindOther
)

// String returns the name of the kind.
func (k EntryKind) String() string {
	switch k {
	case KindRegular:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindHardlink:
		return "hardlink"
	default:
		return "other"
	}
}

// conventional modes for entries that carry no permission bits
const (
	defaultFileMode    fs.FileMode = 0644
	defaultDirMode     fs.FileMode = 0755
	defaultSymlinkMode fs.FileMode = 0777
)

// permMask selects the permission bits an entry can carry.
const permMask = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// Entry is one item of an archive. The content is a single-pass stream that
// is only valid until the next call to [ArchiveReader.Next].
type Entry struct {
	// Path is the normalized path of the entry, see [NormalizePath].
	Path string

	// Kind is the type of the entry.
	Kind EntryKind

	// Mode holds the permission bits (including setuid, setgid and sticky)
	// if HasMode is true.
	Mode    fs.FileMode
	HasMode bool

	// ModTime is the modification time. It is zero if the archive does not
	// carry one.
	ModTime time.Time

	// Size is the declared uncompressed size of the content.
	Size int64

	// Linkname is the target of a symlink or hardlink.
	Linkname string

	// Sys is the native header of the source format, e.g., *tar.Header or
	// *zip.FileHeader. Writers of the same family use it to keep metadata
	// the model does not name (owner, comments, extended attributes).
	Sys any

	body io.Reader
}

// Read reads the content of the entry. Reading is destructive, the content
// cannot be read twice.
func (e *Entry) Read(p []byte) (int, error) {
	if e.body == nil {
		return 0, io.EOF
	}
	return e.body.Read(p)
}

// Perm returns the permission bits of the entry, or a conventional mode for its
// kind if the archive carries none.
func (e *Entry) Perm() fs.FileMode {
	if e.HasMode {
		return e.Mode & permMask
	}
	switch e.Kind {
	case KindDir:
		return defaultDirMode
	case KindSymlink:
		return defaultSymlinkMode
	default:
		return defaultFileMode
	}
}

// ArchiveReader produces the entries of an archive in the order they occur in
// the source stream.
type ArchiveReader interface {
	// Format returns the family of the archive.
	Format() ArchiveFormat

	// Next returns the next entry. It returns io.EOF at the end of the archive.
	// The content of the previously returned entry becomes invalid.
	Next() (*Entry, error)

	// Close releases decompressors and spool files. It does not close the
	// source stream.
	Close() error
}

// ArchiveWriter serializes entries into an archive.
type ArchiveWriter interface {
	// WriteEntry appends e and copies its content.
	WriteEntry(e *Entry) error

	// Finish writes the trailing footer of the archive and flushes the
	// compression layer. It must be called exactly once after the last entry.
	// It does not close the destination stream.
	Finish() error
}

// contentReader tags errors of an entry's content stream as read errors with
// the position in the archive stream at which they were detected.
type contentReader struct {
	r      io.Reader
	format ArchiveFormat
	offset func() int64
}

func (c *contentReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		return n, readError(c.format, c.offset(), err)
	}
	return n, err
}
