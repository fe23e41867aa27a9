package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunebridge/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgPlaylistFetched
	MsgStreamResolved
	MsgSnapshot
	MsgFeedClosed
)

type playlistsResult struct {
	playlists []models.Playlist
	err       error
}

type playlistResult struct {
	playlist *models.Playlist
	err      error
}

type streamResult struct {
	track  models.Track
	result *models.StreamResult
	err    error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsResult{playlists, err}}
}

// playlistFetchedMsg is the constructor for [MsgPlaylistFetched]
func playlistFetchedMsg(playlist *models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistFetched, data: playlistResult{playlist, err}}
}

// streamResolvedMsg is the constructor for [MsgStreamResolved]
func streamResolvedMsg(track models.Track, result *models.StreamResult, err error) Msg {
	return Msg{kind: MsgStreamResolved, data: streamResult{track, result, err}}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(snap models.PollSnapshot) Msg {
	return Msg{kind: MsgSnapshot, data: snap}
}

// feedClosedMsg is the constructor for [MsgFeedClosed]
func feedClosedMsg() Msg {
	return Msg{kind: MsgFeedClosed}
}
