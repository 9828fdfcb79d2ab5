// Package state provides the observable containers shared by the sync
// components and the UI.
//
// # Overview
//
// Each component (status poller, log stream client, config controller) is a
// producer updating state from background goroutines, while the UI is a
// consumer rendering copies of that state on its own schedule:
//
//	Producer (component):          Consumer (UI):
//	┌────────────────┐            ┌──────────────────┐
//	│ fetch / read   │            │ <-Changed()      │
//	│      ↓         │            │      ↓           │
//	│ store.Update() │───────────→│ store.Snapshot() │
//	│      ↓         │  (mutex)   │      ↓           │
//	│ Notify()       │            │ render           │
//	└────────────────┘            └──────────────────┘
//
// # Core Types
//
// Store:
//   - RWMutex-guarded value of any type
//   - Snapshot returns a clone, never the stored instance
//   - Update mutates in place under the write lock and notifies waiters
//
// Signal:
//   - Broadcast wake-up with any number of waiters
//   - Changed returns a channel closed on the next Notify
//   - Waiters re-arm by calling Changed again
//
// The lock is held only while copying, never during network I/O.
package state
