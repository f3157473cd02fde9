// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// sampleContent is a small tree with every kind that all formats support
var sampleContent = []archiveContent{
	{Name: "a.txt", Content: []byte("alpha"), Mode: 0644, Filetype: tar.TypeReg},
	{Name: "b/", Mode: 0755, Filetype: tar.TypeDir},
	{Name: "b/c.txt", Content: []byte("charlie"), Mode: 0600, Filetype: tar.TypeReg},
	{Name: "b/link", Mode: 0777, Filetype: tar.TypeSymlink, Linktarget: "c.txt"},
}

// randomContent returns n bytes that do not compress well
func randomContent(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(42)).Read(b)
	return b
}

func TestStreamRemovesListedEntries(t *testing.T) {
	data := packZip(t, []archiveContent{
		{Name: "a.txt", Content: []byte("a"), Mode: 0644},
		{Name: "b/", Mode: 0755, Filetype: tar.TypeDir},
		{Name: "b/c.txt", Content: []byte("c"), Mode: 0644},
	})

	var out bytes.Buffer
	format, err := Stream(context.Background(), bytes.NewReader(data), &out, NewFilterSet("b/c.txt"), nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if format != FormatZip {
		t.Errorf("Stream() format = %v, want %v", format, FormatZip)
	}

	got := paths(readArchive(t, FormatZip, out.Bytes()))
	want := []string{"a.txt", "b"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestStreamAllFormats(t *testing.T) {
	for _, format := range allFormats {
		t.Run(format.String(), func(t *testing.T) {
			var td *TelemetryData
			cfg := NewConfig(WithTelemetryHook(func(ctx context.Context, d *TelemetryData) { td = d }))

			var out bytes.Buffer
			set := NewFilterSet("./b/c.txt", "missing")
			got, err := Stream(context.Background(), bytes.NewReader(packArchive(t, format, sampleContent)), &out, set, cfg)
			if err != nil {
				t.Fatalf("Stream() error = %v", err)
			}
			if got != format {
				t.Errorf("Stream() format = %v, want %v", got, format)
			}

			// classification of the output must match
			header := out.Bytes()
			if len(header) > HeaderLength {
				header = header[:HeaderLength]
			}
			if f, err := Classify(header); err != nil || f != format {
				t.Errorf("output classified as %v (%v), want %v", f, err, format)
			}

			entries := readArchive(t, format, out.Bytes())
			if strings.Join(paths(entries), ",") != "a.txt,b,b/link" {
				t.Errorf("entries = %v", paths(entries))
			}
			if entries[0].Content != "alpha" || entries[2].Linkname != "c.txt" {
				t.Errorf("content not kept: %+v", entries)
			}

			if td == nil {
				t.Fatalf("telemetry hook not called")
			}
			if td.EntriesRead != 4 || td.EntriesKept != 3 || td.EntriesDropped != 1 {
				t.Errorf("telemetry counts = %+v", td)
			}
			if td.KeptFiles != 1 || td.KeptDirs != 1 || td.KeptSymlinks != 1 {
				t.Errorf("telemetry kinds = %+v", td)
			}
			if td.Format != format.String() || td.FilterSize != 2 || td.OutputSize != int64(out.Len()) || td.InputSize == 0 {
				t.Errorf("telemetry = %+v", td)
			}
		})
	}
}

func TestStreamEmptyFilterKeepsEverything(t *testing.T) {
	input := packArchive(t, FormatTarXz, sampleContent)

	var out bytes.Buffer
	if _, err := Stream(context.Background(), bytes.NewReader(input), &out, NewFilterSet(), nil); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	want := readArchive(t, FormatTarXz, input)
	got := readArchive(t, FormatTarXz, out.Bytes())
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Path != w.Path || g.Kind != w.Kind || g.Perm != w.Perm || g.Content != w.Content || g.Linkname != w.Linkname || !g.ModTime.Equal(w.ModTime) {
			t.Errorf("entry %d = %+v, want %+v", i, g, w)
		}
	}
}

func TestStreamNonSeekableInput(t *testing.T) {
	for _, format := range []ArchiveFormat{FormatZip, FormatTarGzip} {
		t.Run(format.String(), func(t *testing.T) {
			var out bytes.Buffer
			src := &onlyReader{bytes.NewReader(packArchive(t, format, sampleContent))}
			if _, err := Stream(context.Background(), src, &out, NewFilterSet("a.txt"), NewConfig(WithCacheInMemory(true))); err != nil {
				t.Fatalf("Stream() error = %v", err)
			}
			if got := strings.Join(paths(readArchive(t, format, out.Bytes())), ","); got != "b,b/c.txt,b/link" {
				t.Errorf("entries = %s", got)
			}
		})
	}
}

func TestStreamEntryHook(t *testing.T) {
	var events []EntryEvent
	cfg := NewConfig(WithEntryHook(func(ctx context.Context, ev EntryEvent) {
		events = append(events, ev)
	}))

	var out bytes.Buffer
	if _, err := Stream(context.Background(), bytes.NewReader(packTar(t, sampleContent)), &out, NewFilterSet("b"), cfg); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	want := []EntryEvent{
		{Index: 0, Path: "a.txt", Kind: KindRegular, Size: 5, Kept: true},
		{Index: 1, Path: "b", Kind: KindDir, Size: 0, Kept: false},
		{Index: 2, Path: "b/c.txt", Kind: KindRegular, Size: 7, Kept: true},
		{Index: 3, Path: "b/link", Kind: KindSymlink, Size: 0, Kept: true},
	}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}
}

func TestStreamErrors(t *testing.T) {
	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		input   []byte
		cfg     *Config
		wantErr error
		stage   Stage
	}{
		{
			name:    "unsupported input",
			ctx:     context.Background(),
			input:   []byte("this is not an archive"),
			wantErr: ErrUnsupportedFormat,
			stage:   StageClassify,
		},
		{
			name:    "empty input",
			ctx:     context.Background(),
			input:   nil,
			wantErr: ErrUnsupportedFormat,
			stage:   StageClassify,
		},
		{
			name:    "canceled context",
			ctx:     canceledCtx,
			input:   packTar(t, sampleContent),
			wantErr: context.Canceled,
		},
		{
			name:    "invalid compression level",
			ctx:     context.Background(),
			input:   packTar(t, sampleContent),
			cfg:     NewConfig(WithCompressionLevel(12)),
			wantErr: ErrInvalidCompressionLevel,
			stage:   StageFilterSetup,
		},
		{
			name:    "truncated zip",
			ctx:     context.Background(),
			input:   packZip(t, sampleContent)[:200],
			wantErr: ErrCorruptArchive,
			stage:   StageRead,
		},
		{
			name:    "input too large",
			ctx:     context.Background(),
			input:   packTar(t, sampleContent),
			cfg:     NewConfig(WithMaxInputSize(1024)),
			wantErr: ErrIO,
			stage:   StageRead,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var td *TelemetryData
			cfg := test.cfg
			if cfg == nil {
				cfg = NewConfig()
			}
			WithTelemetryHook(func(ctx context.Context, d *TelemetryData) { td = d })(cfg)

			_, err := Stream(test.ctx, &onlyReader{bytes.NewReader(test.input)}, &bytes.Buffer{}, NewFilterSet(), cfg)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Stream() error = %v, want %v", err, test.wantErr)
			}
			if test.stage != "" {
				var ae *ArchiveError
				if !errors.As(err, &ae) || ae.Stage != test.stage {
					t.Errorf("Stream() error = %v, want stage %s", err, test.stage)
				}
			}
			if td == nil || td.LastError == nil {
				t.Errorf("telemetry does not hold the error: %+v", td)
			}
		})
	}
}

// writeArchive writes data to a file in a new temporary directory
func writeArchive(t *testing.T, name string, data []byte, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, perm); err != nil {
		t.Fatalf("cannot write archive: %v", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("cannot chmod archive: %v", err)
	}
	return path
}

// dirEntries returns the names in dir
func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("cannot read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileInPlace(t *testing.T) {
	input := writeArchive(t, "archive.tar.gz", packArchive(t, FormatTarGzip, sampleContent), 0640)

	if err := File(context.Background(), input, "", NewFilterSet("b/c.txt", "b/link"), nil); err != nil {
		t.Fatalf("File() error = %v", err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("cannot read result: %v", err)
	}
	if got := strings.Join(paths(readArchive(t, FormatTarGzip, data)), ","); got != "a.txt,b" {
		t.Errorf("entries = %s", got)
	}
	if names := dirEntries(t, filepath.Dir(input)); len(names) != 1 {
		t.Errorf("temporary files left: %v", names)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(input)
		if err != nil {
			t.Fatalf("cannot stat result: %v", err)
		}
		if info.Mode().Perm() != 0640 {
			t.Errorf("result mode = %v, want %v", info.Mode().Perm(), os.FileMode(0640))
		}
	}
}

func TestFileSeparateOutput(t *testing.T) {
	original := packArchive(t, FormatZip, sampleContent)
	input := writeArchive(t, "archive.zip", original, 0644)
	output := filepath.Join(t.TempDir(), "filtered.zip")

	if err := File(context.Background(), input, output, NewFilterSet("a.txt"), nil); err != nil {
		t.Fatalf("File() error = %v", err)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("cannot read input: %v", err)
	}
	if !bytes.Equal(data, original) {
		t.Errorf("input was modified")
	}
	data, err = os.ReadFile(output)
	if err != nil {
		t.Fatalf("cannot read output: %v", err)
	}
	if got := strings.Join(paths(readArchive(t, FormatZip, data)), ","); got != "b,b/c.txt,b/link" {
		t.Errorf("entries = %s", got)
	}
}

func TestFileFailureLeavesInputUntouched(t *testing.T) {
	content := []archiveContent{
		{Name: "big", Content: randomContent(256 << 10), Mode: 0644, Filetype: tar.TypeReg},
		{Name: "small", Content: []byte("small"), Mode: 0644, Filetype: tar.TypeReg},
	}
	complete := packArchive(t, FormatTarGzip, content)
	truncated := complete[:len(complete)/2]

	canceledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		data    []byte
		wantErr error
	}{
		{"truncated archive", context.Background(), truncated, ErrCorruptArchive},
		{"canceled context", canceledCtx, complete, context.Canceled},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := writeArchive(t, "archive.tar.gz", test.data, 0644)

			err := File(test.ctx, input, "", NewFilterSet("small"), nil)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("File() error = %v, want %v", err, test.wantErr)
			}

			data, err := os.ReadFile(input)
			if err != nil {
				t.Fatalf("cannot read input: %v", err)
			}
			if !bytes.Equal(data, test.data) {
				t.Errorf("input was modified")
			}
			if names := dirEntries(t, filepath.Dir(input)); len(names) != 1 {
				t.Errorf("temporary files left: %v", names)
			}
		})
	}
}

func TestFileErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.zip")

	tests := []struct {
		name    string
		input   string
		output  string
		cfg     *Config
		wantErr error
		stage   Stage
	}{
		{
			name:    "level is checked before input is opened",
			input:   missing,
			cfg:     NewConfig(WithCompressionLevel(-1)),
			wantErr: ErrInvalidCompressionLevel,
			stage:   StageFilterSetup,
		},
		{
			name:    "missing input",
			input:   missing,
			wantErr: ErrIO,
			stage:   StageOpen,
		},
		{
			name:    "output in missing directory",
			input:   writeArchive(t, "a.tar", packTar(t, sampleContent), 0644),
			output:  filepath.Join(t.TempDir(), "missing", "out.tar"),
			wantErr: ErrOutputConflict,
			stage:   StageOpen,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := File(context.Background(), test.input, test.output, NewFilterSet(), test.cfg)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("File() error = %v, want %v", err, test.wantErr)
			}
			var ae *ArchiveError
			if !errors.As(err, &ae) || ae.Stage != test.stage {
				t.Errorf("File() error = %v, want stage %s", err, test.stage)
			}
		})
	}
}

func TestFileOutputLinksToInput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	input := writeArchive(t, "archive.tar", packTar(t, sampleContent), 0644)
	link := filepath.Join(filepath.Dir(input), "link.tar")
	if err := os.Symlink(input, link); err != nil {
		t.Fatalf("cannot create symlink: %v", err)
	}

	if err := File(context.Background(), input, link, NewFilterSet("a.txt"), nil); err != nil {
		t.Fatalf("File() error = %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("cannot stat link: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("output link was replaced")
	}
	data, err := os.ReadFile(input)
	if err != nil {
		t.Fatalf("cannot read input: %v", err)
	}
	if got := strings.Join(paths(readArchive(t, FormatTar, data)), ","); got != "b,b/c.txt,b/link" {
		t.Errorf("entries = %s", got)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateOpening:     "opening",
		StateClassifying: "classifying",
		StateStreaming:   "streaming",
		StateFinalizing:  "finalizing",
		StateDone:        "done",
		StateFailed:      "failed",
		State(42):        "state(42)",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("String() = %q, want %q", s.String(), want)
		}
	}
}

func TestStreamFailureLogLevel(t *testing.T) {
	for _, test := range []struct {
		level  slog.Level
		logged bool
	}{
		{slog.LevelError, false},
		{slog.LevelInfo, false},
		{slog.LevelDebug, true},
	} {
		t.Run(test.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: test.level}))

			_, err := Stream(context.Background(), strings.NewReader("no archive at all"), &bytes.Buffer{}, NewFilterSet(), NewConfig(WithLogger(logger)))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("Stream() error = %v, want %v", err, ErrUnsupportedFormat)
			}
			if got := strings.Contains(buf.String(), "run failed"); got != test.logged {
				t.Errorf("failure logged = %v, want %v: %s", got, test.logged, buf.String())
			}
		})
	}
}
