// Package config provides configuration management for dbxport.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. Configuration is optional
// for one-shot exports driven by flags, and required for scheduled jobs.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("dbxport.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("dbxport.yaml")
//
// # Example
//
//	connections:
//	  warehouse:
//	    url: postgres://report@db.internal/sales
//
//	jobs:
//	  nightly-orders:
//	    connection: warehouse
//	    table: orders
//	    output: out/{job}-{date}.xlsx
//	    schedule: "0 2 * * *"
//
//	export:
//	  max_buffered_rows: 500000
//
// # Environment Variable Overrides
//
//   - DBXPORT_LOG_LEVEL overrides telemetry.logging.level
//   - DBXPORT_LOG_FORMAT overrides telemetry.logging.format
//   - DBXPORT_MAX_BUFFERED_ROWS overrides export.max_buffered_rows
//   - DBXPORT_METRICS_LISTEN_ADDRESS overrides telemetry.metrics.listen_address
//   - DBXPORT_CONNECTIONS_<NAME>_URL overrides connections.<name>.url
//
// Environment variables always take precedence over file-based
// configuration. Connection URLs usually carry credentials and are best
// supplied this way.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading
//
// FileWatcher watches the configuration file with fsnotify and invokes a
// callback once per burst of changes. The scheduler uses it together with
// ReloadConfig to pick up new jobs without restarting.
package config
