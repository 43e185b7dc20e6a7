package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/flagx"
	"github.com/dmitrijs2005/shopsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be written either as strings like "30s"
// or as integer nanoseconds. Parsed values are copied into the runtime
// Config only when present in the file.
type JsonConfig struct {
	DatabasePath        *string         `json:"database_path"`
	Collections         []string        `json:"collections"`
	SyncInterval        *timex.Duration `json:"sync_interval"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`
	WriteDelay          *timex.Duration `json:"write_delay"`
	BatchSize           *int            `json:"batch_size"`
	MaxRetries          *int            `json:"max_retries"`
	DynamoTable         *string         `json:"dynamo_table"`
	AWSRegion           *string         `json:"aws_region"`
	AWSEndpoint         *string         `json:"aws_endpoint"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. Absent file means nothing to do; read or unmarshal
// errors panic (the config stage has no way to continue).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if len(jc.Collections) > 0 {
		cfg.Collections = jc.Collections
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.WriteDelay != nil {
		cfg.WriteDelay = time.Duration(jc.WriteDelay.Duration)
	}
	if jc.BatchSize != nil {
		cfg.BatchSize = *jc.BatchSize
	}
	if jc.MaxRetries != nil {
		cfg.MaxRetries = *jc.MaxRetries
	}
	if jc.DynamoTable != nil {
		cfg.DynamoTable = *jc.DynamoTable
	}
	if jc.AWSRegion != nil {
		cfg.AWSRegion = *jc.AWSRegion
	}
	if jc.AWSEndpoint != nil {
		cfg.AWSEndpoint = *jc.AWSEndpoint
	}
}
