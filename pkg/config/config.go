// Package config holds the planner defaults that operators are built with:
// worker counts, connector sizes and epoch settings.
//
// Values come from, in increasing priority: built-in defaults, an optional
// config file (any format viper understands) and DSTREE_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "DSTREE"

// Config is the planner configuration.
type Config struct {
	// NumParallelWorkers is the worker count of non-inlined operators.
	NumParallelWorkers int `mapstructure:"num_parallel_workers"`

	// OpConnectorSize is the queue depth between operators.
	OpConnectorSize int `mapstructure:"op_connector_size"`

	// NumEpochs is the epoch count the pipeline is prepared for.
	// Values other than 1 make the planner inject an epoch control operator.
	NumEpochs int `mapstructure:"num_epochs"`

	// Seed is handed to random sources and shuffles.
	Seed uint32 `mapstructure:"seed"`

	// FileShuffleBuffer is the shuffle buffer used when a file source asks
	// for a global shuffle.
	FileShuffleBuffer int `mapstructure:"file_shuffle_buffer"`

	// GetterCacheTTL bounds how long getter answers are memoized. Zero
	// disables memoization.
	GetterCacheTTL time.Duration `mapstructure:"getter_cache_ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		NumParallelWorkers: 4,
		OpConnectorSize:    16,
		NumEpochs:          1,
		Seed:               0,
		FileShuffleBuffer:  10000,
		GetterCacheTTL:     5 * time.Minute,
	}
}

// Load reads the configuration. An empty path skips the config file.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("num_parallel_workers", def.NumParallelWorkers)
	v.SetDefault("op_connector_size", def.OpConnectorSize)
	v.SetDefault("num_epochs", def.NumEpochs)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("file_shuffle_buffer", def.FileShuffleBuffer)
	v.SetDefault("getter_cache_ttl", def.GetterCacheTTL)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.NumParallelWorkers <= 0:
		return errors.Wrapf(ErrInvalidConfig, "num_parallel_workers must be positive, got %d", c.NumParallelWorkers)
	case c.OpConnectorSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "op_connector_size must be positive, got %d", c.OpConnectorSize)
	case c.NumEpochs == 0 || c.NumEpochs < -1:
		return errors.Wrapf(ErrInvalidConfig, "num_epochs must be positive or -1, got %d", c.NumEpochs)
	case c.FileShuffleBuffer <= 1:
		return errors.Wrapf(ErrInvalidConfig, "file_shuffle_buffer must be greater than 1, got %d", c.FileShuffleBuffer)
	case c.GetterCacheTTL < 0:
		return errors.Wrapf(ErrInvalidConfig, "getter_cache_ttl must not be negative, got %s", c.GetterCacheTTL)
	}
	return nil
}

// OrDefault returns c, or the defaults when c is nil.
func OrDefault(c *Config) *Config {
	if c == nil {
		return Default()
	}
	return c
}
