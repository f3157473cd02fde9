// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dchest/safefile"
)

// State is the phase of a run.
type State int

const (
	StateOpening State = iota
	StateClassifying
	StateStreaming
	StateFinalizing
	StateDone
	StateFailed
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateClassifying:
		return "classifying"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// now is a function point that returns time.Now to the caller.
var now = time.Now

// run tracks the state and the telemetry of one invocation of [Stream].
type run struct {
	cfg   *Config
	state State
	td    *TelemetryData
}

func (r *run) transition(to State) {
	r.cfg.Logger().Debug("state transition", "from", r.state, "to", to)
	r.state = to
}

// fail moves the run into StateFailed and records err. The error is returned to
// the caller, it is only logged at debug level.
func (r *run) fail(err error) error {
	r.td.LastError = err
	r.cfg.Logger().Debug("run failed", "state", r.state, "error", err)
	r.transition(StateFailed)
	return err
}

// captureDuration captures the duration of the run
func captureDuration(td *TelemetryData, start time.Time) {
	td.Duration = now().Sub(start)
}

// Stream reads the archive in src, removes every entry whose path is in set and
// writes the remaining entries in the same format to dst. Entries are processed
// one at a time in stream order, content is never buffered as a whole.
//
// The format is detected from the content of src. Tar families are streamed
// forward with one entry in flight. A zip archive keeps kind and permission
// metadata in its central directory at the end, so it is read in place if src
// implements io.ReaderAt and io.Seeker; otherwise the whole archive is spooled
// first, to a temporary file in [Config.SpoolDir] or into memory with
// [WithCacheInMemory]. For zip input from a pipe, disk or memory usage is
// therefore bounded by the archive size, not by the largest entry. dst is written
// through a buffer that is flushed before Stream returns; dst itself is not
// closed. On error, dst holds an incomplete archive and must be discarded.
//
// A nil cfg is replaced by the default configuration.
func Stream(ctx context.Context, src io.Reader, dst io.Writer, set FilterSet, cfg *Config) (ArchiveFormat, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry data collection and emit
	td := &TelemetryData{FilterSize: int64(set.Len())}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureDuration(td, now())

	r := &run{cfg: cfg, state: StateOpening, td: td}
	if err := cfg.CompressionLevel().Validate(); err != nil {
		return FormatUnknown, r.fail(err)
	}

	// count the input, unless it is read in place
	in := src
	var counter *countingReader
	if _, size, ok := inPlace(src); ok {
		td.InputSize = size
	} else {
		counter = newCountingReader(src, -1)
		in = counter
		defer func() { td.InputSize = counter.Offset() }()
	}

	// classify
	r.transition(StateClassifying)
	prefix, in, err := sniff(in, HeaderLength)
	if err != nil {
		return FormatUnknown, r.fail(newError(ErrIO, StageClassify, err))
	}
	format, err := Classify(prefix)
	if err != nil {
		return FormatUnknown, r.fail(err)
	}
	td.Format = format.String()
	cfg.Logger().Info("archive classified", "format", format)

	// open reader and writer
	reader, err := NewReader(format, in, cfg)
	if err != nil {
		return format, r.fail(err)
	}
	defer reader.Close()

	out := &countingWriter{W: dst}
	buf := bufio.NewWriter(out)
	writer, err := NewWriter(format, buf, cfg.CompressionLevel())
	if err != nil {
		return format, r.fail(err)
	}
	if c, ok := reader.(commenter); ok && c.Comment() != "" {
		if s, ok := writer.(commentSetter); ok {
			if err := s.SetComment(c.Comment()); err != nil {
				return format, r.fail(err)
			}
		}
	}

	// stream entries
	r.transition(StateStreaming)
	if err := r.stream(ctx, reader, writer, set); err != nil {
		return format, r.fail(err)
	}

	// write footer and flush
	r.transition(StateFinalizing)
	if err := writer.Finish(); err != nil {
		return format, r.fail(err)
	}
	if err := buf.Flush(); err != nil {
		return format, r.fail(writeError(format, "", err))
	}
	td.OutputSize = out.N

	r.transition(StateDone)
	cfg.Logger().Info("archive written", "format", format, "kept", td.EntriesKept, "dropped", td.EntriesDropped)
	return format, nil
}

// stream checks ctx for cancellation, while it copies the entries of reader that
// are not in set to writer.
func (r *run) stream(ctx context.Context, reader ArchiveReader, writer ArchiveWriter, set FilterSet) error {
	hook := r.cfg.EntryHook()
	dropped := make(map[string]bool)

	for index := int64(0); ; index++ {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return err
		}

		// get next entry
		e, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		r.td.EntriesRead++

		kept := Keep(e.Path, set)
		if kept {
			if e.Kind == KindHardlink && dropped[e.Linkname] {
				r.cfg.Logger().Warn("hardlink target was removed", "name", e.Path, "target", e.Linkname)
			}
			r.cfg.Logger().Debug("keep", "name", e.Path, "kind", e.Kind)
			if err := writer.WriteEntry(e); err != nil {
				return err
			}
			r.td.EntriesKept++
			switch e.Kind {
			case KindDir:
				r.td.KeptDirs++
			case KindSymlink, KindHardlink:
				r.td.KeptSymlinks++
			default:
				r.td.KeptFiles++
			}
		} else {
			r.cfg.Logger().Debug("drop", "name", e.Path, "kind", e.Kind)
			dropped[e.Path] = true
			r.td.EntriesDropped++
		}

		hook(ctx, EntryEvent{Index: index, Path: e.Path, Kind: e.Kind, Size: e.Size, Kept: kept})
	}
}

// File removes every entry whose path is in set from the archive at input and
// writes the result to output. If output is empty, or names the same file as
// input, the input is replaced.
//
// The result is written to a temporary file next to output, which is renamed
// over output only after the archive was completely written. On any failure,
// including a canceled ctx, the temporary file is removed and output (and
// input) are left untouched. The output gets the permission bits of the input.
func File(ctx context.Context, input, output string, set FilterSet, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.CompressionLevel().Validate(); err != nil {
		return err
	}

	// open input
	in, err := os.Open(input)
	if err != nil {
		return openError(input, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return openError(input, err)
	}

	target, replace, err := resolveOutput(input, output)
	if err != nil {
		return openError(output, err)
	}
	cfg.Logger().Info("filtering archive", "input", input, "output", target, "replace_input", replace, "filter_size", set.Len())

	// create temporary output next to the target
	out, err := safefile.Create(target, info.Mode().Perm())
	if err != nil {
		return conflictError(StageOpen, target, fmt.Errorf("cannot create temporary output: %w", err))
	}
	defer out.Close()
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return conflictError(StageOpen, target, fmt.Errorf("cannot set permissions of temporary output: %w", err))
	}

	if _, err := Stream(ctx, in, out, set, cfg); err != nil {
		return err
	}

	// input must be released before it is replaced
	if err := in.Close(); err != nil {
		return openError(input, err)
	}
	if err := out.Commit(); err != nil {
		return conflictError(StageCommit, target, fmt.Errorf("cannot commit output: %w", err))
	}
	return nil
}

// resolveOutput returns the path the result is written to and whether it
// replaces the input. Symlinks are resolved, so that a link to the input is
// detected and the link itself is not replaced.
func resolveOutput(input, output string) (string, bool, error) {
	if output == "" {
		target, err := filepath.EvalSymlinks(input)
		return target, true, err
	}

	// output does not need to exist
	if resolved, err := filepath.EvalSymlinks(output); err == nil {
		output = resolved
	}

	ii, err := os.Stat(input)
	if err != nil {
		return "", false, err
	}
	oi, err := os.Stat(output)
	if err != nil || !os.SameFile(ii, oi) {
		return output, false, nil
	}
	return output, true, nil
}

func openError(path string, err error) error {
	e := newError(ErrIO, StageOpen, err)
	e.Path = path
	return e
}

func conflictError(stage Stage, path string, err error) error {
	e := newError(ErrOutputConflict, stage, err)
	e.Path = path
	return e
}
