// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"context"
	"io"
	"log/slog"
)

// logger is an interface that defines the logging functions
// that are used during a run
type logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ConfigOption is a function pointer to implement the option pattern
type ConfigOption func(*Config)

// Config holds all options of a filtering run. It is adjusted with
// [ConfigOption] functions passed to [NewConfig].
type Config struct {
	// cacheInMemory decides if a zip archive provided as a non-seekable stream
	// is spooled into memory instead of a temporary file
	cacheInMemory bool

	// compressionLevel is applied to every compressible unit of the output
	compressionLevel CompressionLevel

	// entryHook is called after every entry was kept or dropped
	entryHook EntryHook

	// logger stream for the run
	logger logger

	// maxInputSize is the maximum number of bytes read from the input.
	// Set value to -1 to disable the check.
	maxInputSize int64

	// spoolDir is the directory for temporary zip spool files ("" for the
	// system default)
	spoolDir string

	// telemetryHook is a function to consume telemetry data after a finished run
	telemetryHook TelemetryHook
}

// CacheInMemory returns true if non-seekable zip input is spooled into memory.
//
// If set to false, the input is spooled to a temporary file to avoid memory exhaustion.
func (c *Config) CacheInMemory() bool {
	return c.cacheInMemory
}

// CompressionLevel returns the configured compression level.
func (c *Config) CompressionLevel() CompressionLevel {
	return c.compressionLevel
}

// EntryHook returns the entry hook. It is never nil.
func (c *Config) EntryHook() EntryHook {
	if c.entryHook == nil {
		return defaultEntryHook
	}
	return c.entryHook
}

// Logger returns the logger.
func (c *Config) Logger() logger {
	return c.logger
}

// MaxInputSize returns the maximum number of bytes read from the input.
func (c *Config) MaxInputSize() int64 {
	return c.maxInputSize
}

// SpoolDir returns the directory for temporary spool files.
func (c *Config) SpoolDir() string {
	return c.spoolDir
}

// TelemetryHook returns the telemetry hook. It is never nil.
func (c *Config) TelemetryHook() TelemetryHook {
	if c.telemetryHook == nil {
		return defaultTelemetryHook
	}
	return c.telemetryHook
}

const (
	defaultCacheInMemory = false // spool to disk
	defaultMaxInputSize  = -1    // archives are bounded by their size only
	defaultSpoolDir      = ""    // os.TempDir
)

var (
	// slog to discard
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	// no operation hooks
	defaultTelemetryHook = func(ctx context.Context, d *TelemetryData) {}
	defaultEntryHook     = func(ctx context.Context, ev EntryEvent) {}
)

// NewConfig is a generator option that takes opts as adjustments of the
// default configuration in an option pattern style.
func NewConfig(opts ...ConfigOption) *Config {
	config := &Config{
		cacheInMemory:    defaultCacheInMemory,
		compressionLevel: DefaultCompressionLevel,
		entryHook:        defaultEntryHook,
		logger:           defaultLogger,
		maxInputSize:     defaultMaxInputSize,
		spoolDir:         defaultSpoolDir,
		telemetryHook:    defaultTelemetryHook,
	}

	for _, opt := range opts {
		opt(config)
	}

	return config
}

// WithCacheInMemory options pattern function to spool non-seekable zip input into
// memory instead of a temporary file.
func WithCacheInMemory(cache bool) ConfigOption {
	return func(c *Config) {
		c.cacheInMemory = cache
	}
}

// WithCompressionLevel options pattern function to set the compression level of
// the output. The value is validated when a run starts.
func WithCompressionLevel(level int) ConfigOption {
	return func(c *Config) {
		c.compressionLevel = CompressionLevel(level)
	}
}

// WithEntryHook options pattern function to observe every processed entry, e.g.,
// to render progress.
func WithEntryHook(hook EntryHook) ConfigOption {
	return func(c *Config) {
		c.entryHook = hook
	}
}

// WithLogger options pattern function to set a custom logger.
func WithLogger(logger logger) ConfigOption {
	return func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxInputSize options pattern function to set the maximum number of bytes read
// from the input. (-1 to disable check)
func WithMaxInputSize(maxInputSize int64) ConfigOption {
	return func(c *Config) {
		c.maxInputSize = maxInputSize
	}
}

// WithSpoolDir options pattern function to set the directory for temporary spool
// files of non-seekable zip input.
func WithSpoolDir(dir string) ConfigOption {
	return func(c *Config) {
		c.spoolDir = dir
	}
}

// WithTelemetryHook options pattern function to set a [TelemetryHook], which is
// called after every run.
func WithTelemetryHook(hook TelemetryHook) ConfigOption {
	return func(c *Config) {
		c.telemetryHook = hook
	}
}
