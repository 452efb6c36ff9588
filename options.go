package odbcscan

import (
	"go.uber.org/zap"

	"github.com/slingdata-io/odbcscan/chunk"
)

// Config holds the settings shared by a Scanner and the database/sql
// connector.
type Config struct {
	// LibraryPath is the driver manager to load. Empty means the
	// ODBCSCAN_LIBRARY_PATH environment variable, then the platform default.
	LibraryPath string

	// Overrides are applied over the detected vendor quirks of every
	// connection. Per-query overrides win over these.
	Overrides *QuirkOverrides

	// ChunkCapacity is the row count of chunks handed out by query results.
	ChunkCapacity int

	// Initial SQLGetData buffer sizes; zero keeps the defaults.
	TextBufferUnits   int
	BinaryBufferBytes int

	// Logger replaces the package logger when set.
	Logger *zap.Logger

	// API bypasses library loading; used with scripted drivers.
	API API
}

// Option configures a Config.
type Option func(*Config)

// WithLibraryPath sets the driver manager library to load.
func WithLibraryPath(path string) Option {
	return func(c *Config) {
		c.LibraryPath = path
	}
}

// WithQuirkOverrides layers o over the vendor quirks of every connection.
func WithQuirkOverrides(o *QuirkOverrides) Option {
	return func(c *Config) {
		c.Overrides = o.Merge(c.Overrides)
	}
}

// WithTimestampNS materializes the vendor's extended timestamp type as
// nanosecond timestamps.
func WithTimestampNS(enabled bool) Option {
	return func(c *Config) {
		c.Overrides = (&QuirkOverrides{TimestampNS: Bool(enabled)}).Merge(c.Overrides)
	}
}

// WithChunkCapacity sets the rows per result chunk.
func WithChunkCapacity(n int) Option {
	return func(c *Config) {
		c.ChunkCapacity = n
	}
}

// WithBufferSizes sets the initial SQLGetData buffer sizes for text (UTF-16
// code units) and binary (bytes) columns.
func WithBufferSizes(textUnits, binaryBytes int) Option {
	return func(c *Config) {
		c.TextBufferUnits = textUnits
		c.BinaryBufferBytes = binaryBytes
	}
}

// WithLogger installs l as the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithAPI uses api instead of loading a driver manager.
func WithAPI(api API) Option {
	return func(c *Config) {
		c.API = api
	}
}

func newConfig(opts ...Option) Config {
	cfg := Config{ChunkCapacity: chunk.DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChunkCapacity <= 0 {
		cfg.ChunkCapacity = chunk.DefaultCapacity
	}
	return cfg
}

// load resolves the API and installs the logger.
func (c *Config) load() (API, error) {
	if c.Logger != nil {
		SetLogger(c.Logger)
	}
	if c.API != nil {
		return c.API, nil
	}
	return LoadLibrary(c.LibraryPath)
}
