// Package config loads runtime configuration for the directory client CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the directory API
//	-d string   path to the local cache database
//	-i int      online status check interval (seconds)
//	-t int      per-request HTTP timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_base_url": "http://127.0.0.1:5080",
//	  "database_path": "directory.db",
//	  "online_check_interval_s": 3,
//	  "request_timeout_s": 10
//	}
//
// This package does not read environment variables; use the JSON file or
// flags to configure values.
package config
