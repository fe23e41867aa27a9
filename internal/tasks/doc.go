// Package tasks runs long catalog operations with progress reporting.
//
// [Exporter.BulkExport] fetches playlists through a rate limiter and writes each one with
// [formatter.WritePlaylistExport] from a small worker pool. Partial failures are collected per playlist and an
// export_manifest.json summarizing the run is written to the output directory.
//
// # Progress Reporting
//
// Operations take an optional send-only [ProgressUpdate] channel. Sends use select with default so a slow
// consumer drops updates instead of stalling the export.
package tasks
