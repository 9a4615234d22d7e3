// Package config loads runtime settings for pools, coroutine environments and
// reactors from a TOML file.
package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Swind/go-bsio/core"
	"github.com/Swind/go-bsio/coro"
	"github.com/Swind/go-bsio/reactor"
)

// Duration is a TOML wrapper type for time.Duration.
type Duration time.Duration

// String returns the string representation of the duration.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText parses a TOML value into a duration value.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText writes duration value in text format.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the top level of a configuration file.
type Config struct {
	Log LogConfig `toml:"log"`

	Pool PoolConfig `toml:"pool"`

	Coroutine struct {
		// RecycleCapacity bounds the per-environment stack pool. Negative disables it.
		RecycleCapacity int `toml:"recycle-capacity"`
	} `toml:"coroutine"`

	Reactor struct {
		Timeout        Duration `toml:"timeout"`
		ConnectRetries int      `toml:"connect-retries"`
		ConnectBackoff Duration `toml:"connect-backoff"`
	} `toml:"reactor"`
}

// LogConfig selects the log level and the output stream.
type LogConfig struct {
	Level string `toml:"level"`
	// Path is a file to append to; empty or "stderr" logs to stderr.
	Path string `toml:"path"`
}

// PoolConfig holds thread pool settings.
type PoolConfig struct {
	ID      string `toml:"id"`
	Workers int    `toml:"workers"`
	// WakeThreshold switches to waking every idle worker once this many tasks
	// are queued. Zero wakes one worker per submission.
	WakeThreshold     int  `toml:"wake-threshold"`
	QueueForkOnWorker bool `toml:"queue-fork-on-worker"`
}

// New returns a Config with default values.
func New() *Config {
	c := &Config{}
	c.Log.Level = "info"
	c.Pool.Workers = 4
	c.Coroutine.RecycleCapacity = coro.DefaultRecycleCapacity
	c.Reactor.Timeout = Duration(reactor.DefaultTimeout)
	c.Reactor.ConnectRetries = reactor.DefaultConnectRetries
	c.Reactor.ConnectBackoff = Duration(reactor.DefaultConnectPolicy().InitialDelay)
	return c
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := New()
	if path == "" {
		return c, nil
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return c, c.Validate()
}

// Decode parses s over the defaults.
func Decode(s string) (*Config, error) {
	c := New()
	md, err := toml.Decode(s, c)
	if err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("unknown config keys: %v", undecoded)
	}
	return c, c.Validate()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Pool.Workers < 1 {
		return errors.Errorf("pool.workers must be at least 1, got %d", c.Pool.Workers)
	}
	if c.Pool.WakeThreshold < 0 {
		return errors.Errorf("pool.wake-threshold must not be negative, got %d", c.Pool.WakeThreshold)
	}
	if c.Reactor.ConnectRetries < 0 {
		return errors.Errorf("reactor.connect-retries must not be negative, got %d", c.Reactor.ConnectRetries)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// Logger builds the zerolog-backed logger described by the log section. The
// returned closer releases the log file, if any.
func (c *Config) Logger() (core.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return nil, nil, errors.Wrap(err, "log.level")
	}

	var w io.WriteCloser = nopCloser{os.Stderr}
	if c.Log.Path != "" && c.Log.Path != "stderr" {
		f, err := os.OpenFile(c.Log.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		w = f
	}
	return core.NewZerologWriterLogger(w, level), w, nil
}

// PoolOptions converts the pool section.
func (c *Config) PoolOptions(logger core.Logger) *core.PoolConfig {
	cfg := core.DefaultPoolConfig()
	cfg.ID = c.Pool.ID
	cfg.Logger = logger
	cfg.QueueForkOnWorker = c.Pool.QueueForkOnWorker
	if c.Pool.WakeThreshold > 0 {
		cfg.WakePolicy = core.EagerWake{Threshold: c.Pool.WakeThreshold}
	}
	return cfg
}

// CoroutineOptions converts the coroutine section.
func (c *Config) CoroutineOptions(logger core.Logger) *coro.Options {
	return &coro.Options{
		RecycleCapacity: c.Coroutine.RecycleCapacity,
		Logger:          logger,
	}
}

// ReactorOptions converts the reactor section.
func (c *Config) ReactorOptions(logger core.Logger) *reactor.Config {
	cfg := reactor.DefaultConfig()
	cfg.Timeout = time.Duration(c.Reactor.Timeout)
	if c.Reactor.ConnectRetries > 0 {
		cfg.Connect.MaxRetries = c.Reactor.ConnectRetries
	}
	if c.Reactor.ConnectBackoff > 0 {
		cfg.Connect.InitialDelay = time.Duration(c.Reactor.ConnectBackoff)
	}
	cfg.Logger = logger
	return cfg
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
