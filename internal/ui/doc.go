// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [PlaylistListView] : Browse the user's playlists
//  2. [TrackListView] : Pick a track and resolve it to a stream
//  3. [StreamView] : Show the resolved stream and which provider served it
//
// A now-playing bar is rendered under every view. It is fed by a [Feed] (a now-playing subscription); each
// snapshot arrives as a [Msg] and the model re-arms the wait after handling it. Without a [Catalog] the model
// starts in [NowPlayingView] and shows only the bar.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, o, q) with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
