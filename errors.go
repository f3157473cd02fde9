// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

var (
	// ErrUnsupportedFormat is returned if the input does not match any known archive format.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrCorruptArchive is returned if a structural violation is found while reading the archive.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrIO is returned if the underlying storage failed to read or write.
	ErrIO = errors.New("i/o failure")

	// ErrInvalidFilterColumn is returned if the requested CSV column does not exist in a record.
	ErrInvalidFilterColumn = errors.New("invalid filter column")

	// ErrInvalidCompressionLevel is returned if the compression level is outside of 0-9.
	ErrInvalidCompressionLevel = errors.New("invalid compression level")

	// ErrOutputConflict is returned if the temporary output cannot be created or renamed.
	ErrOutputConflict = errors.New("output conflict")
)

// Stage names the part of a run in which an error occurred.
type Stage string

const (
	StageOpen        Stage = "opening"
	StageClassify    Stage = "classification"
	StageRead        Stage = "reading"
	StageFilterSetup Stage = "filtering setup"
	StageWrite       Stage = "writing"
	StageCommit      Stage = "committing output"
)

const (
	noOffset = int64(-1)
	noColumn = -1
)

// ArchiveError describes a failed run. Kind is one of the Err* sentinels of this
// package; errors.Is matches both Kind and the wrapped cause.
type ArchiveError struct {
	Kind   error
	Stage  Stage
	Format ArchiveFormat
	Offset int64 // -1 if unknown
	Path   string
	Column int // -1 if not applicable
	Err    error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed: %s", e.Stage, e.Kind)
	if e.Format != FormatUnknown {
		fmt.Fprintf(&b, " (%s)", e.Format)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " offset=%d", e.Offset)
	}
	if e.Column >= 0 {
		fmt.Fprintf(&b, " column=%d", e.Column)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err)
	}
	return b.String()
}

// Unwrap returns the kind and the cause.
func (e *ArchiveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, stage Stage, err error) *ArchiveError {
	return &ArchiveError{Kind: kind, Stage: stage, Offset: noOffset, Column: noColumn, Err: err}
}

// readError tags an error raised while decoding an archive. Storage errors and an
// exceeded input limit are reported as ErrIO, everything else is a structural problem of the archive.
func readError(format ArchiveFormat, offset int64, err error) error {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return err
	}
	e := newError(ErrCorruptArchive, StageRead, err)
	if isStorageError(err) {
		e.Kind = ErrIO
	}
	e.Format = format
	e.Offset = offset
	return e
}

// writeError tags an error raised while encoding the output archive. Errors that
// originate from reading an entry's content keep their read classification.
func writeError(format ArchiveFormat, path string, err error) error {
	var ae *ArchiveError
	if errors.As(err, &ae) {
		return err
	}
	e := newError(ErrIO, StageWrite, err)
	e.Format = format
	e.Path = path
	return e
}

func isStorageError(err error) bool {
	var pe *fs.PathError
	var errno syscall.Errno
	return errors.As(err, &pe) || errors.As(err, &errno) || errors.Is(err, errInputTooLarge)
}
