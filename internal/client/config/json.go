package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/machly/dirsync/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals are
// plain integer seconds; after parsing, values are copied into the runtime
// Config (which uses time.Duration).
type JsonConfig struct {
	ServerBaseURL        string `json:"server_base_url"`
	DatabasePath         string `json:"database_path"`
	OnlineCheckIntervalS int    `json:"online_check_interval_s"`
	RequestTimeoutS      int    `json:"request_timeout_s"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags via flagx.JsonConfigFlags; when no
// path is given, nothing is loaded. Fields absent from the JSON keep their
// current values. Panics on read or unmarshal errors.
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

	if jc.ServerBaseURL != "" {
		cfg.ServerBaseURL = jc.ServerBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OnlineCheckIntervalS > 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckIntervalS) * time.Second
	}
	if jc.RequestTimeoutS > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeoutS) * time.Second
	}
}
