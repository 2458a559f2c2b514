package glade

import (
	"log/slog"
	"time"

	"github.com/eleven-am/glade/internal/domain"
)

type Config = domain.Config

type StoreConfig = domain.StoreConfig

type PoolConfig = domain.PoolConfig

type WorkerConfig = domain.WorkerConfig

type JournalConfig = domain.JournalConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultPoolConfig() PoolConfig {
	return domain.DefaultPoolConfig()
}

func DefaultWorkerConfig() WorkerConfig {
	return domain.DefaultWorkerConfig()
}

type ConfigBuilder struct {
	config *Config
}

func NewConfigBuilder(root string) *ConfigBuilder {
	config := DefaultConfig()
	config.Root = root
	return &ConfigBuilder{config: config}
}

func (b *ConfigBuilder) WithLogger(logger *slog.Logger) *ConfigBuilder {
	b.config.Logger = logger
	return b
}

func (b *ConfigBuilder) WithConcurrency(limit int) *ConfigBuilder {
	b.config.Pool.Concurrency = limit
	return b
}

func (b *ConfigBuilder) WithTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.Pool.Timeout = timeout
	return b
}

func (b *ConfigBuilder) WithWorkerCommand(command ...string) *ConfigBuilder {
	b.config.Worker.Command = command
	return b
}

// WithReuse permits re-opening a store root left behind by a previous
// run.
func (b *ConfigBuilder) WithReuse() *ConfigBuilder {
	b.config.Store.Reuse = true
	return b
}

// WithReadOnly re-attaches without accepting new work.
func (b *ConfigBuilder) WithReadOnly() *ConfigBuilder {
	b.config.Store.Reuse = true
	b.config.Store.ReadOnly = true
	return b
}

func (b *ConfigBuilder) WithAutoClean() *ConfigBuilder {
	b.config.Store.AutoClean = true
	return b
}

func (b *ConfigBuilder) WithEventLog(path string) *ConfigBuilder {
	b.config.EventLog = path
	return b
}

func (b *ConfigBuilder) WithJournal() *ConfigBuilder {
	b.config.Journal.Enabled = true
	return b
}

// WithSession sets the named values snapshotted for workers on each
// Run.
func (b *ConfigBuilder) WithSession(values map[string]interface{}) *ConfigBuilder {
	b.config.Session = values
	return b
}

func (b *ConfigBuilder) Build() *Config {
	return b.config
}
