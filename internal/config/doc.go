// Package config loads the panel's TOML settings.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/codeflow/panel.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing/empty, use defaults
//
// # TOML Format
//
//	api_bind = "127.0.0.1:8000"
//	status_path = "/status"
//	logs_path = "/ws/logs"
//	document_path = "~/.autopr.yaml"
//	poll_interval = "5s"
//	reconnect = true
//	reconnect_max_attempts = 5   # 0 retries forever
//	conflict_check = false
//	log_file = "~/.local/state/codeflow/panel.log"
//	log_level = "info"
//	export_dir = "~/Downloads"
//
// Every field is optional. Tilde expansion is performed for document_path,
// log_file and export_dir.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML syntax errors, and invalid durations or attempt
// counts. A missing file is not an error.
package config
