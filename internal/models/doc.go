// Package models defines the data shared by the session, stream and now-playing controllers.
//
// The package contains two categories of types:
//
// 1. Wire DTOs decoded from the backend, read-only snapshots replaced wholesale on each fetch:
//   - [Track] : Catalog track or now-playing item
//   - [Playlist] : Playlist metadata, with tracks when fetched by ID
//   - [TokenRecord] : Opaque token_info returned by the login callback
//
// 2. Controller state and per-request values:
//   - [Session] : Authentication status plus the accepted token record
//   - [TrackRef] : Input to stream resolution (exactly one of ID or Query)
//   - [StreamResult] : Playable URL and the source that served it
//   - [PollSnapshot] : Latest, possibly stale, now-playing state
package models
