package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	Root     string       `json:"root" yaml:"root"`
	Logger   *slog.Logger `json:"-" yaml:"-"`
	EventLog string       `json:"event_log,omitempty" yaml:"event_log,omitempty"`

	Store   StoreConfig            `json:"store" yaml:"store"`
	Pool    PoolConfig             `json:"pool" yaml:"pool"`
	Worker  WorkerConfig           `json:"worker" yaml:"worker"`
	Journal JournalConfig          `json:"journal" yaml:"journal"`
	Session map[string]interface{} `json:"session,omitempty" yaml:"session,omitempty"`
}

type StoreConfig struct {
	// Reuse permits opening a root that already holds records from a
	// previous run.
	Reuse bool `json:"reuse" yaml:"reuse"`
	// ReadOnly re-attaches to a left-behind store without accepting
	// new work; Schedule becomes a no-op.
	ReadOnly bool `json:"read_only" yaml:"read_only"`
	// AutoClean purges all partitions and the root on Close.
	AutoClean bool `json:"auto_clean" yaml:"auto_clean"`
}

type PoolConfig struct {
	Concurrency  int           `json:"concurrency" yaml:"concurrency"`
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
	// Timeout is the autokill budget per worker; zero disables it.
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	LostContactGrace time.Duration `json:"lost_contact_grace" yaml:"lost_contact_grace"`
	PrintErrors      bool          `json:"print_errors" yaml:"print_errors"`
	RaiseOnError     bool          `json:"raise_on_error" yaml:"raise_on_error"`
}

type WorkerConfig struct {
	// Command is the argv prefix that launches one worker process; the
	// coordinator appends the record, output and session paths.
	Command []string `json:"command" yaml:"command"`
}

type JournalConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

func (c *Config) Validate() error {
	if c.Root == "" {
		return NewValidationError("store root is required", nil)
	}
	if c.Pool.Concurrency < 1 {
		return NewValidationError("concurrency must be at least 1", map[string]interface{}{
			"concurrency": c.Pool.Concurrency,
		})
	}
	if c.Pool.PollInterval <= 0 {
		return NewValidationError("poll interval must be positive", map[string]interface{}{
			"poll_interval": c.Pool.PollInterval.String(),
		})
	}
	return nil
}
