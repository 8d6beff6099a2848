// Package formatter renders spotistats data for terminals and files.
//
// Exports (CSV, Markdown, plain text) write playlist track listings to disk.
// Tables render top items, playlists, devices and rank comparisons for the CLI, styled with lipgloss.
package formatter
