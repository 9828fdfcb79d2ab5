// Package app is the panel's composition root.
//
// Run loads the panel settings (TOML, with command-line overrides), opens
// the file logger, and builds the three synchronisation components:
//
//   - status.Poller, fetching the engine's /status through engine.Client
//   - logstream.Client, streaming engine logs over engine.WebsocketDialer,
//     supervised by a logstream.Reconnector when reconnect is enabled
//   - configsync.Controller, editing the engine's config document through
//     docstore.FileSource and the codec matching its extension
//
// It then hands them to ui.Run and blocks. When the UI exits or the context
// is cancelled, every component is stopped or closed before Run returns, so
// late completions are discarded rather than applied.
//
// A failing engine is not fatal: the poller and stream report the failure
// and keep retrying. Only invalid settings, an unwritable log file or a bad
// API address stop startup.
package app
