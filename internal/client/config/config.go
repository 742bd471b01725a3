package config

import "time"

// Config holds runtime settings for the directory client CLI.
//
// Fields:
//   - ServerBaseURL: base URL of the directory API.
//   - DatabasePath: SQLite file holding the local cache.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - RequestTimeout: connect/read deadline applied to each HTTP call.
type Config struct {
	ServerBaseURL       string
	DatabasePath        string
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:5080"
	c.DatabasePath = "directory.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
