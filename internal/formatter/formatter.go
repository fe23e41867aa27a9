// package formatter renders catalog data, streams and now-playing snapshots as text, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/repositories"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	JSON     Format = "json"
	CSV      Format = "csv"
)

// ParseFormat accepts a format name (case-insensitive, "md" for markdown). Empty means [Text].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (text, markdown, json, csv)", shared.ErrInvalidInput, s)
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(ms int) string {
	if ms <= 0 {
		return "0:00"
	}
	secs := ms / 1000
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// VisibilityString returns "Public" or "Private".
func VisibilityString(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

func trackLine(t models.Track) string {
	line := fmt.Sprintf("%s - %s", t.ArtistLine(), t.Name)
	if t.Album != "" {
		line += fmt.Sprintf(" (%s)", t.Album)
	}
	if t.DurationMS > 0 {
		line += fmt.Sprintf(" [%s]", FormatDuration(t.DurationMS))
	}
	return line
}

// TracksToCSV writes columns ID, Name, Artists, Album, Duration.
func TracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Name", "Artists", "Album", "Duration"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range tracks {
		record := []string{t.ID, t.Name, strings.Join(t.Artists, "; "), t.Album, FormatDuration(t.DurationMS)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// Tracks renders a search result or track list.
func Tracks(tracks []models.Track, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(tracks, true)
	case CSV:
		return TracksToCSV(tracks)
	}

	var buf bytes.Buffer
	if len(tracks) == 0 {
		buf.WriteString("No tracks found.\n")
		return buf.Bytes(), nil
	}
	for i, t := range tracks {
		if f == Markdown {
			fmt.Fprintf(&buf, "%d. %s `%s`\n", i+1, trackLine(t), t.ID)
		} else {
			fmt.Fprintf(&buf, "%2d. %s  %s\n", i+1, trackLine(t), t.ID)
		}
	}
	return buf.Bytes(), nil
}

// Track renders a single track's detail.
func Track(t models.Track, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(t, true)
	case CSV:
		return TracksToCSV([]models.Track{t})
	}

	var buf bytes.Buffer
	if f == Markdown {
		fmt.Fprintf(&buf, "# %s\n\n", t.Name)
		fmt.Fprintf(&buf, "**Artists**: %s\n\n", t.ArtistLine())
		if t.Album != "" {
			fmt.Fprintf(&buf, "**Album**: %s\n\n", t.Album)
		}
		if t.DurationMS > 0 {
			fmt.Fprintf(&buf, "**Duration**: %s\n\n", FormatDuration(t.DurationMS))
		}
		if t.SpotifyURL != "" {
			fmt.Fprintf(&buf, "[Open in Spotify](%s)\n", t.SpotifyURL)
		}
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "Title:    %s\n", t.Name)
	fmt.Fprintf(&buf, "Artists:  %s\n", t.ArtistLine())
	if t.Album != "" {
		fmt.Fprintf(&buf, "Album:    %s\n", t.Album)
	}
	if t.DurationMS > 0 {
		fmt.Fprintf(&buf, "Duration: %s\n", FormatDuration(t.DurationMS))
	}
	fmt.Fprintf(&buf, "ID:       %s\n", t.ID)
	if t.SpotifyURL != "" {
		fmt.Fprintf(&buf, "URL:      %s\n", t.SpotifyURL)
	}
	return buf.Bytes(), nil
}

// Playlists renders the user's playlist list.
func Playlists(playlists []models.Playlist, f Format) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(playlists, true)
	case CSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		writer.Write([]string{"ID", "Name", "Tracks", "Visibility"})
		for _, p := range playlists {
			writer.Write([]string{p.ID, p.Name, strconv.Itoa(p.TrackCount), VisibilityString(p.Public)})
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, fmt.Errorf("CSV writer error: %w", err)
		}
		return buf.Bytes(), nil
	}

	var buf bytes.Buffer
	if len(playlists) == 0 {
		buf.WriteString("No playlists found.\n")
		return buf.Bytes(), nil
	}
	if f == Markdown {
		buf.WriteString("| Name | Tracks | ID |\n|---|---|---|\n")
		for _, p := range playlists {
			fmt.Fprintf(&buf, "| %s | %d | `%s` |\n", p.Name, p.TrackCount, p.ID)
		}
		return buf.Bytes(), nil
	}
	for _, p := range playlists {
		fmt.Fprintf(&buf, "%-40s %4d tracks  %s\n", p.Name, p.TrackCount, p.ID)
	}
	return buf.Bytes(), nil
}

// Playlist renders a playlist with its tracks. imageFilename is only used by Markdown.
func Playlist(p models.Playlist, f Format, imageFilename string) ([]byte, error) {
	switch f {
	case JSON:
		return shared.MarshalJSON(p, true)
	case CSV:
		return TracksToCSV(p.Tracks)
	}

	var buf bytes.Buffer
	if f == Markdown {
		fmt.Fprintf(&buf, "# %s\n\n", p.Name)
		if imageFilename != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
		}
		if p.Description != "" {
			fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
		}
		fmt.Fprintf(&buf, "**Tracks**: %d\n", p.TrackCount)
		fmt.Fprintf(&buf, "**Visibility**: %s\n\n", VisibilityString(p.Public))
		buf.WriteString("## Tracks\n\n")
		for i, t := range p.Tracks {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(t))
		}
		return buf.Bytes(), nil
	}

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", p.TrackCount)
	for i, t := range p.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, trackLine(t))
	}
	return buf.Bytes(), nil
}

// Snapshot renders a now-playing snapshot.
func Snapshot(snap models.PollSnapshot, f Format) ([]byte, error) {
	if f == JSON {
		type snapshotJSON struct {
			models.PollSnapshot
			Error string `json:"error,omitempty"`
		}
		out := snapshotJSON{PollSnapshot: snap}
		if snap.Err != nil {
			out.Error = snap.Err.Error()
		}
		return shared.MarshalJSON(out, true)
	}

	var buf bytes.Buffer
	switch {
	case snap.Err != nil:
		fmt.Fprintf(&buf, "Now playing unavailable: %v\n", snap.Err)
	case !snap.HasTrack():
		buf.WriteString("Nothing is playing.\n")
	default:
		t := snap.Track
		state := "Paused"
		if t.Playing() {
			state = "Playing"
		}
		if f == Markdown {
			fmt.Fprintf(&buf, "**%s**: %s - %s", state, t.ArtistLine(), t.Name)
		} else {
			fmt.Fprintf(&buf, "%s: %s - %s", state, t.ArtistLine(), t.Name)
		}
		if t.DurationMS > 0 {
			fmt.Fprintf(&buf, " (%s / %s)", FormatDuration(t.ProgressMS), FormatDuration(t.DurationMS))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// StreamResult renders a resolved stream.
func StreamResult(r *models.StreamResult, f Format) ([]byte, error) {
	if f == JSON {
		return shared.MarshalJSON(r, true)
	}

	var buf bytes.Buffer
	title := r.Title
	if title == "" {
		title = "(untitled)"
	}
	if f == Markdown {
		fmt.Fprintf(&buf, "[%s](%s) via %s\n", title, r.URL, r.Source)
		return buf.Bytes(), nil
	}
	fmt.Fprintf(&buf, "Source: %s\n", r.Source)
	fmt.Fprintf(&buf, "Title:  %s\n", title)
	if r.Duration > 0 {
		fmt.Fprintf(&buf, "Length: %s\n", FormatDuration(int(r.Duration*1000)))
	}
	fmt.Fprintf(&buf, "URL:    %s\n", r.URL)
	return buf.Bytes(), nil
}

// Resolutions renders the resolution history, newest first.
func Resolutions(entries []repositories.Resolution, f Format) ([]byte, error) {
	if f == JSON {
		return shared.MarshalJSON(entries, true)
	}

	var buf bytes.Buffer
	if len(entries) == 0 {
		buf.WriteString("No resolutions recorded.\n")
		return buf.Bytes(), nil
	}
	for _, e := range entries {
		subject := e.TrackID
		if subject == "" {
			subject = strconv.Quote(e.Query)
		}
		outcome := e.Title
		if !e.Succeeded() {
			outcome = "unavailable: " + e.Error
		}
		fmt.Fprintf(&buf, "#%d %s %-8s %s -> %s\n",
			e.Sequence, e.CreatedAt.Local().Format(time.DateTime), e.Source, subject, outcome)
	}
	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return imageData, nil
}

// ExportResult lists the files written by [WritePlaylistExport].
type ExportResult struct {
	Files      []string
	CoverImage string
}

// WritePlaylistExport writes p into dir (default: the playlist ID).
//
// Markdown produces README.md plus cover.jpg when the playlist has an image. CSV produces tracks.csv and
// metadata.json. Text and JSON produce tracks.txt and playlist.json. A cover download failure is reported on
// warn and does not fail the export.
func WritePlaylistExport(p models.Playlist, f Format, dir string, warn io.Writer) (*ExportResult, error) {
	if dir == "" {
		dir = p.ID
	}
	if warn == nil {
		warn = io.Discard
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{}
	write := func(name string, data []byte) error {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		result.Files = append(result.Files, path)
		return nil
	}

	switch f {
	case Markdown:
		var cover string
		if p.ImageURL != "" {
			if data, err := DownloadImage(p.ImageURL); err != nil {
				fmt.Fprintf(warn, "Warning: failed to download cover image: %v\n", err)
			} else if err := write("cover.jpg", data); err != nil {
				fmt.Fprintf(warn, "Warning: failed to save cover image: %v\n", err)
			} else {
				cover = "cover.jpg"
				result.CoverImage = filepath.Join(dir, cover)
			}
		}
		data, err := Playlist(p, Markdown, cover)
		if err != nil {
			return nil, err
		}
		if err := write("README.md", data); err != nil {
			return nil, err
		}
	case CSV:
		data, err := TracksToCSV(p.Tracks)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		if err := write("tracks.csv", data); err != nil {
			return nil, err
		}
		meta := p
		meta.Tracks = nil
		metaJSON, err := shared.MarshalJSON(meta, true)
		if err != nil {
			return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
		}
		if err := write("metadata.json", metaJSON); err != nil {
			return nil, err
		}
	case JSON:
		data, err := Playlist(p, JSON, "")
		if err != nil {
			return nil, err
		}
		if err := write("playlist.json", data); err != nil {
			return nil, err
		}
	default:
		data, err := Playlist(p, Text, "")
		if err != nil {
			return nil, err
		}
		if err := write("tracks.txt", data); err != nil {
			return nil, err
		}
	}
	return result, nil
}
