package rowcask

import (
	"fmt"
	"log/slog"
	"math"
)

type ConfOption func(*Config)

// Config is the configuration for a Store and its Cache.
type Config struct {
	MaxValueSize  int          `yaml:"max_value_size"`
	MaxDBSize     int64        `yaml:"max_db_size"`
	CacheCapacity int          `yaml:"cache_capacity"`
	Logger        *slog.Logger `yaml:"-"`
}

const (
	// DefaultMaxValueSize is the default maximum payload size (1 MiB).
	DefaultMaxValueSize = 1 << 20
	// DefaultMaxDBSize is the default maximum size of the data log (1 GiB).
	DefaultMaxDBSize = 1 << 30
	// DefaultCacheCapacity is the default number of rows kept by a Cache.
	DefaultCacheCapacity = 10000
)

// MaxValueSize sets the maximum payload size in bytes.
func MaxValueSize(size int) ConfOption {
	return func(c *Config) {
		c.MaxValueSize = size
	}
}

// MaxDBSize sets the maximum size of the data log in bytes, header included.
func MaxDBSize(size int64) ConfOption {
	return func(c *Config) {
		c.MaxDBSize = size
	}
}

// CacheCapacity sets the number of rows a Cache keeps in memory.
func CacheCapacity(capacity int) ConfOption {
	return func(c *Config) {
		c.CacheCapacity = capacity
	}
}

// Logger sets the logger receiving open, recovery and close events.
func Logger(logger *slog.Logger) ConfOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithConfig copies every field of cfg, e.g. one loaded from a file.
// Zero fields keep their defaults.
func WithConfig(cfg Config) ConfOption {
	return func(c *Config) {
		if cfg.MaxValueSize != 0 {
			c.MaxValueSize = cfg.MaxValueSize
		}
		if cfg.MaxDBSize != 0 {
			c.MaxDBSize = cfg.MaxDBSize
		}
		if cfg.CacheCapacity != 0 {
			c.CacheCapacity = cfg.CacheCapacity
		}
		if cfg.Logger != nil {
			c.Logger = cfg.Logger
		}
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxValueSize:  DefaultMaxValueSize,
		MaxDBSize:     DefaultMaxDBSize,
		CacheCapacity: DefaultCacheCapacity,
	}
}

func (c *Config) validate() error {
	if c.MaxValueSize <= 0 || int64(c.MaxValueSize) > math.MaxUint32 {
		return fmt.Errorf("%w: max value size %d out of range", ErrInvalidConfig, c.MaxValueSize)
	}
	if c.MaxDBSize <= dataHeaderSize {
		return fmt.Errorf("%w: max db size %d must exceed the %d byte header", ErrInvalidConfig, c.MaxDBSize, dataHeaderSize)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache capacity %d must be at least 1", ErrInvalidConfig, c.CacheCapacity)
	}
	return nil
}

func newConfig(opts []ConfOption) (*Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}
