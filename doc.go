// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

// Package expurgate removes a set of entries from an archive and writes a new
// archive of the same format.
//
// The format is determined by the leading bytes of the input, never by the file
// name. Supported are zip archives and tar archives, either plain or wrapped in a
// single gzip, xz, bzip2, zstd, lz4 or snappy stream. Entries are streamed one at
// a time from an [ArchiveReader] to an [ArchiveWriter]; an entry is dropped if and
// only if its normalized path is a member of the [FilterSet].
//
// [File] never writes to the output path directly. The result is written to a
// temporary file next to the output and renamed over it after the archive has been
// finished, so a failed or canceled run leaves the original file untouched.
//
// Configuration is done using the [Config], which is adjusted with [ConfigOption]
// functions. Telemetry data is captured during every run and handed to the
// [TelemetryHook].
package expurgate
