// Package tasks composes Web API calls into the operations the CLI and local API expose.
//
// # Core Operations
//
//  1. [PlayOnFirstDevice] : start playback on the first available Connect device
//  2. [TopItems] : top artists or tracks for a time range, with average popularity
//  3. [Engine.Snapshot] / [Engine.SnapshotAll] : persist ranked top items for later comparison
//  4. [Engine.Compare] / [CompareRanks] : rank movement between the latest snapshot and now
//  5. [Engine.BulkExport] : export many playlists concurrently with a worker pool
//
// # Progress Reporting
//
// Long-running operations accept an optional channel of [ProgressUpdate].
// Updates use select with default so a slow or absent reader never blocks the operation.
package tasks
