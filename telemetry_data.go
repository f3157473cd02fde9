// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"context"
	"encoding/json"
	"time"
)

// TelemetryData holds all telemetry data of a filtering run.
type TelemetryData struct {
	// Duration is the time the run took
	Duration time.Duration `json:"duration"`

	// EntriesDropped is the number of entries removed from the archive
	EntriesDropped int64 `json:"entries_dropped"`

	// EntriesKept is the number of entries written to the output
	EntriesKept int64 `json:"entries_kept"`

	// EntriesRead is the number of entries read from the input
	EntriesRead int64 `json:"entries_read"`

	// FilterSize is the number of paths in the filter set
	FilterSize int64 `json:"filter_size"`

	// Format is the family of the input and output archive
	Format string `json:"format"`

	// InputSize is the number of bytes read from the input
	InputSize int64 `json:"input_size"`

	// KeptDirs is the number of directories written to the output
	KeptDirs int64 `json:"kept_dirs"`

	// KeptFiles is the number of regular files written to the output
	KeptFiles int64 `json:"kept_files"`

	// KeptSymlinks is the number of symlinks and hardlinks written to the output
	KeptSymlinks int64 `json:"kept_symlinks"`

	// LastError is the error that ended the run
	LastError error `json:"last_error"`

	// OutputSize is the number of bytes written to the output
	OutputSize int64 `json:"output_size"`
}

// String returns a string representation of [TelemetryData].
func (m TelemetryData) String() string {
	b, _ := json.Marshal(m)
	return string(b)
}

// MarshalJSON implements the [encoding/json.Marshaler] interface.
func (m TelemetryData) MarshalJSON() ([]byte, error) {
	var lastError string
	if m.LastError != nil {
		lastError = m.LastError.Error()
	}

	type Alias TelemetryData
	return json.Marshal(&struct {
		LastError string `json:"last_error"`
		*Alias
	}{
		LastError: lastError,
		Alias:     (*Alias)(&m),
	})
}

// TelemetryHook is a function type that performs operations on [TelemetryData]
// after a run has finished, which can be used to submit the [TelemetryData]
// to a telemetry service, for example.
type TelemetryHook func(context.Context, *TelemetryData)

// EntryEvent describes one processed entry.
type EntryEvent struct {
	// Index is the zero-based position of the entry in the input archive
	Index int64

	// Path is the normalized path of the entry
	Path string

	// Kind is the type of the entry
	Kind EntryKind

	// Size is the declared size of the entry
	Size int64

	// Kept is false if the entry was removed by the filter
	Kept bool
}

// EntryHook is called after every entry of a run was kept or dropped. It is
// called on the goroutine of the run and must not block.
type EntryHook func(context.Context, EntryEvent)
