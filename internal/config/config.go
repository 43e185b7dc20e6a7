// Package config assembles runtime settings for the cache engine from
// defaults, an optional JSON file and command-line flags, in that order of
// precedence.
package config

import "time"

// Config holds the runtime settings of the cache & sync engine.
//
// Fields:
//   - DatabasePath: SQLite file backing the local persistent store.
//   - Collections: tracked collections the pull synchronizer reconciles.
//   - SyncInterval: period of the recurring pull/push cycle.
//   - OnlineCheckInterval: how often remote reachability is probed.
//   - WriteDelay: debounce before an opportunistic sync after local writes.
//   - BatchSize: page size per collection per pull.
//   - MaxRetries: push retry ceiling before an item is dead-lettered.
//   - DynamoTable/AWSRegion/AWSEndpoint: remote document store location.
type Config struct {
	DatabasePath        string
	Collections         []string
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
	WriteDelay          time.Duration
	BatchSize           int
	MaxRetries          int
	DynamoTable         string
	AWSRegion           string
	AWSEndpoint         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "shopsync.db"
	c.Collections = []string{"shops", "products", "orders"}
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.WriteDelay = 100 * time.Millisecond
	c.BatchSize = 50
	c.MaxRetries = 3
	c.DynamoTable = "shopsync"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
