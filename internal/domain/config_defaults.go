package domain

import (
	"log/slog"
	"time"
)

func DefaultConfig() *Config {
	return &Config{
		Root:    "glade-data",
		Logger:  slog.Default(),
		Store:   DefaultStoreConfig(),
		Pool:    DefaultPoolConfig(),
		Worker:  DefaultWorkerConfig(),
		Journal: DefaultJournalConfig(),
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{}
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Concurrency:      4,
		PollInterval:     100 * time.Millisecond,
		LostContactGrace: 5 * time.Second,
	}
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Command: []string{"glade-worker"},
	}
}

func DefaultJournalConfig() JournalConfig {
	return JournalConfig{}
}
