package reactor

import (
	"time"

	"github.com/Swind/go-bsio/core"
)

const (
	// DefaultTimeout bounds each epoll_wait issued by Loop.
	DefaultTimeout = time.Second

	// DefaultConnectRetries is the number of connect attempts before ETIMEDOUT.
	DefaultConnectRetries = 8

	// connectBackoffAfter is the number of attempts made before backing off.
	connectBackoffAfter = 3
)

// Config configures a Reactor.
type Config struct {
	// Timeout bounds each epoll_wait issued by Loop. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Connect bounds connect retries. MaxRetries is the number of attempts;
	// from the fourth attempt on, the coroutine sleeps Delay(attempt-3) first.
	Connect core.RetryPolicy

	// Logger receives registration failures. Defaults to core.NoOpLogger.
	Logger core.Logger
}

// DefaultConnectPolicy returns the default connect retry policy.
func DefaultConnectPolicy() core.RetryPolicy {
	return core.RetryPolicy{
		MaxRetries:   DefaultConnectRetries,
		InitialDelay: 1024 * time.Millisecond,
		MaxDelay:     time.Minute,
		BackoffRatio: 2.0,
	}
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Timeout: DefaultTimeout,
		Connect: DefaultConnectPolicy(),
		Logger:  core.NewNoOpLogger(),
	}
}

func (cfg *Config) withDefaults() Config {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Connect.MaxRetries <= 0 {
		c.Connect = DefaultConnectPolicy()
	}
	if c.Logger == nil {
		c.Logger = core.NewNoOpLogger()
	}
	return c
}
