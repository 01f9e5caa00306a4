package indexer

import "time"

const (
	// DefaultConfirmations keeps the index this many blocks behind the
	// node tip so shallow reorgs are mostly absorbed upstream.
	DefaultConfirmations = 0
	DefaultScanInterval  = 3 * time.Second
)

type Config struct {
	// StartHeight is the first block to index on an empty database.
	StartHeight uint64
	// Confirmations is how far behind the node tip the index stays.
	Confirmations int64
	// ScanInterval is the pause between polls for new blocks.
	ScanInterval time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if cfg.Confirmations < 0 {
		cfg.Confirmations = DefaultConfirmations
	}
	return cfg
}
