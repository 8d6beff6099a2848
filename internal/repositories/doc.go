// Package repositories implements SQLite persistence for spotistats.
//
// Key Implementations:
//   - [SettingsRepository] : key-value settings; backs the session store's refresh token
//   - [SnapshotRepository] : top-item snapshots with soft deletes
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
