// Package models defines the records and persisted entities of the spotistats client.
//
// The package contains two categories of types:
//
// 1. Web API records: plain structs decoded from Spotify responses
//   - [Artist], [Track], [Album] : top-item and playlist entries
//   - [Playlist], [Device], [User] : library, playback and profile data
//   - [TimeRange], [MusicType] : query selectors for the top-items endpoints
//
// 2. Persistent Entities: database-backed models
//   - [Snapshot] : a ranked capture of top items for one kind and time range
//
// Persistent entities implement the Model interface providing ID, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
