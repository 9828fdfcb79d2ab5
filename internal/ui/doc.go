// Package ui is the panel's terminal host, built on Bubble Tea.
//
// The model never fetches anything itself. It renders copies of the state
// held by three components and forwards user actions to them:
//
//   - status.Poller feeds the dashboard (engine summary, freshness, errors)
//   - logstream.Client feeds the logs view (buffer, search, connection state)
//   - configsync.Controller backs the config view (edit, save, reset, reload)
//
// Each component exposes a Changed channel. A command waits on it and turns
// the close into a message carrying a fresh copy of the component's state,
// then the next wait is scheduled. No polling loop runs in the UI.
//
// # Key Bindings
//
//   - 1/2/3, Tab: Dashboard, Logs, Config
//   - Ctrl+R: refresh status, reconnect the stream, or reload the config
//   - / or Ctrl+F: search logs; Esc clears
//   - Space: pause or follow the log tail
//   - c, d, x: copy, download, clear logs
//   - e: edit a config key as "path.to.key = value"
//   - Ctrl+S, Ctrl+Z: save or discard config edits
//   - T: cycle theme
//   - q or Ctrl+C: quit, asking first when config edits are unsaved
package ui
