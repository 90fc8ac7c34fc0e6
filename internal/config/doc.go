// Package config loads sessionctl's configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/sessionctl/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing, empty or non-positive, use defaults
//
// Files ending in .yaml or .yml are parsed as YAML with the same keys.
//
// # Keys and Defaults
//
//	hub_addr                = "127.0.0.1:7620"   # hub daemon host:port or URL
//	initiator_id            = ""                 # empty disables starting sessions
//	poll_interval_ms        = 100                # snapshot poll cadence
//	push                    = false              # use the websocket feed instead of polling
//	log_dir                 = "~/.local/share/sessionctl"
//	scan_timeout_s          = 60                 # discovery stops on its own after this
//	reset_refresh_delay_ms  = 1000               # refresh delay after resetting failed packets
//	call_timeout_s          = 10                 # bound on each hub call
//	api_listen              = "127.0.0.1:7621"   # headless control surface
//
// A leading ~ in log_dir is expanded to the user's home directory. The
// controller writes its structured log to <log_dir>/sessionctl.log.
package config
