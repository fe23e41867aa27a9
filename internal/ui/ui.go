package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	StreamView
	NowPlayingView
)

// Catalog lists playlists and their tracks.
type Catalog interface {
	Playlists(ctx context.Context) ([]models.Playlist, error)
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)
}

// Resolver turns a track into a stream.
type Resolver interface {
	Resolve(ctx context.Context, ref models.TrackRef) (*models.StreamResult, error)
}

// Feed delivers now-playing snapshots until closed.
type Feed interface {
	Updates() <-chan models.PollSnapshot
}

// Deps are the collaborators of a [Model]. Catalog and Resolver may be nil for a now-playing only view.
type Deps struct {
	Catalog   Catalog
	Resolver  Resolver
	Feed      Feed
	Navigator shared.Navigator
}

// Model represents the TUI application state.
type Model struct {
	ctx  context.Context
	view ViewState
	deps Deps

	width  int
	height int

	playlistList list.Model
	trackList    list.Model
	listsReady   bool
	tracksReady  bool
	playlist     *models.Playlist

	resolving bool
	track     models.Track
	stream    *models.StreamResult
	snapshot  *models.PollSnapshot
	status    string

	err  error
	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	view := PlaylistListView
	if deps.Catalog == nil {
		view = NowPlayingView
	}
	return &Model{
		ctx:  ctx,
		view: view,
		deps: deps,
		help: help.New(),
		keys: newKeyMap(),
	}
}

// State returns the current view state.
func (m *Model) State() ViewState { return m.view }

// Init fetches playlists (when browsing) and starts waiting on the feed.
func (m *Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.deps.Catalog != nil {
		cmds = append(cmds, m.fetchPlaylists())
	}
	if m.deps.Feed != nil {
		cmds = append(cmds, m.waitForSnapshot())
	}
	return tea.Batch(cmds...)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && !m.filtering() {
			return m, tea.Quit
		}
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case StreamView:
			return m.handleStreamKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		res := msg.data.(playlistsResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		items := make([]list.Item, len(res.playlists))
		for i, pl := range res.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Playlists"
		m.listsReady = true
		m.resizeLists()
		return m, nil

	case MsgPlaylistFetched:
		res := msg.data.(playlistResult)
		if res.err != nil {
			m.status = fmt.Sprintf("Failed to load playlist: %v", res.err)
			return m, nil
		}
		m.playlist = res.playlist
		items := make([]list.Item, len(res.playlist.Tracks))
		for i, t := range res.playlist.Tracks {
			items[i] = trackItem{track: t}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", res.playlist.Name)
		m.tracksReady = true
		m.resizeLists()
		m.status = ""
		m.view = TrackListView
		return m, nil

	case MsgStreamResolved:
		res := msg.data.(streamResult)
		m.resolving = false
		m.track = res.track
		m.stream = res.result
		m.err = nil
		if res.err != nil {
			m.status = fmt.Sprintf("No stream for %s: %v", res.track.Name, res.err)
			return m, nil
		}
		m.status = ""
		m.view = StreamView
		return m, nil

	case MsgSnapshot:
		snap := msg.data.(models.PollSnapshot)
		m.snapshot = &snap
		return m, m.waitForSnapshot()

	case MsgFeedClosed:
		m.snapshot = nil
		if m.view == NowPlayingView {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\n%s", m.err, shared.Suggestion(m.err))) + "\n\nPress q to quit"
	}

	var body string
	switch m.view {
	case PlaylistListView:
		body = m.renderPlaylistList()
	case TrackListView:
		body = m.renderTrackList()
	case StreamView:
		body = m.renderStream()
	case NowPlayingView:
		body = styles.title.Render("Now Playing")
	}

	parts := []string{body}
	if m.status != "" {
		parts = append(parts, styles.warn.Render(m.status))
	}
	if m.deps.Feed != nil {
		parts = append(parts, styles.bar.Render(m.renderNowPlaying()))
	}
	parts = append(parts, m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.listsReady {
		return m, nil
	}
	if key.Matches(msg, m.keys.enter) && !m.filtering() {
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.status = fmt.Sprintf("Loading %s...", pl.playlist.Name)
			return m, m.fetchPlaylist(pl.playlist.ID)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering() {
		switch {
		case key.Matches(msg, m.keys.back):
			m.view = PlaylistListView
			m.status = ""
			return m, nil
		case key.Matches(msg, m.keys.play):
			if m.resolving || m.deps.Resolver == nil {
				return m, nil
			}
			if t, ok := m.trackList.SelectedItem().(trackItem); ok {
				m.resolving = true
				m.status = fmt.Sprintf("Resolving %s...", t.track.Name)
				return m, m.resolve(t.track)
			}
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleStreamKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = TrackListView
		m.status = ""
	case key.Matches(msg, m.keys.open):
		if m.stream == nil || m.deps.Navigator == nil {
			return m, nil
		}
		if err := m.deps.Navigator.Navigate(m.stream.URL); err != nil {
			m.status = fmt.Sprintf("Could not open stream: %v", err)
		}
	}
	return m, nil
}

func (m *Model) filtering() bool {
	switch m.view {
	case PlaylistListView:
		return m.listsReady && m.playlistList.FilterState() == list.Filtering
	case TrackListView:
		return m.tracksReady && m.trackList.FilterState() == list.Filtering
	}
	return false
}

func (m *Model) resizeLists() {
	w, h := m.width-4, m.height-10
	if w <= 0 || h <= 0 {
		return
	}
	if m.listsReady {
		m.playlistList.SetSize(w, h)
	}
	if m.tracksReady {
		m.trackList.SetSize(w, h)
	}
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == PlaylistListView && m.listsReady:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case m.view == TrackListView && m.tracksReady:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.deps.Catalog.Playlists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchPlaylist(playlistID string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.deps.Catalog.Playlist(m.ctx, playlistID)
		return playlistFetchedMsg(playlist, err)
	}
}

func (m *Model) resolve(track models.Track) tea.Cmd {
	return func() tea.Msg {
		result, err := m.deps.Resolver.Resolve(m.ctx, models.RefForTrack(track))
		return streamResolvedMsg(track, result, err)
	}
}

// waitForSnapshot blocks on the feed. The returned message re-arms the wait from Update.
func (m *Model) waitForSnapshot() tea.Cmd {
	updates := m.deps.Feed.Updates()
	return func() tea.Msg {
		select {
		case snap, ok := <-updates:
			if !ok {
				return feedClosedMsg()
			}
			return snapshotMsg(snap)
		case <-m.ctx.Done():
			return feedClosedMsg()
		}
	}
}

func (m *Model) renderPlaylistList() string {
	if !m.listsReady {
		return styles.help.Render("Loading playlists...")
	}
	return m.playlistList.View()
}

func (m *Model) renderTrackList() string {
	if !m.tracksReady {
		return ""
	}
	return m.trackList.View()
}

func (m *Model) renderStream() string {
	if m.stream == nil {
		return ""
	}
	title := styles.title.Render(m.track.Name)
	source := styles.ok.Render(fmt.Sprintf("via %s", m.stream.Source))
	if m.stream.Source == models.SourceFallback {
		source = styles.warn.Render("via fallback search")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", title, source)
	if m.stream.Title != "" {
		fmt.Fprintf(&b, "Title:  %s\n", m.stream.Title)
	}
	if m.stream.Duration > 0 {
		fmt.Fprintf(&b, "Length: %s\n", formatter.FormatDuration(int(m.stream.Duration*1000)))
	}
	fmt.Fprintf(&b, "URL:    %s", m.stream.URL)
	return b.String()
}

func (m *Model) renderNowPlaying() string {
	snap := m.snapshot
	switch {
	case snap == nil:
		return styles.help.Render("Waiting for now playing...")
	case snap.Err != nil:
		return styles.err.Render(fmt.Sprintf("Now playing unavailable: %v", snap.Err))
	case !snap.HasTrack():
		return styles.help.Render("Nothing is playing")
	}

	t := snap.Track
	icon := "⏸"
	if t.Playing() {
		icon = "▶"
	}
	line := fmt.Sprintf("%s %s - %s", icon, styles.playing.Render(t.Name), t.ArtistLine())
	if t.DurationMS > 0 {
		line += styles.help.Render(fmt.Sprintf("  %s / %s",
			formatter.FormatDuration(t.ProgressMS), formatter.FormatDuration(t.DurationMS)))
	}
	return line
}

func (m *Model) renderHelp() string {
	var keys []key.Binding
	switch m.view {
	case PlaylistListView:
		keys = []key.Binding{m.keys.enter, m.keys.quit}
	case TrackListView:
		keys = []key.Binding{m.keys.play, m.keys.back, m.keys.quit}
	case StreamView:
		keys = []key.Binding{m.keys.open, m.keys.back, m.keys.quit}
	default:
		keys = []key.Binding{m.keys.quit}
	}
	return m.help.ShortHelpView(keys)
}
