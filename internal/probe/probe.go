// Package probe reads the nominal duration of a phase source before it is
// loaded for playback.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/grafov/m3u8"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrEmptyPlaylist     = errors.New("playlist contains no segments")
)

// Prober resolves source durations over HTTP or from local files.
type Prober struct {
	client *http.Client
}

func New(client *http.Client) *Prober {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Prober{client: client}
}

// Duration returns the length of the source at uri. HLS playlists sum their
// segment durations; MP3 files are decoded.
func (p *Prober) Duration(ctx context.Context, uri string) (time.Duration, error) {
	switch ext := strings.ToLower(path.Ext(stripQuery(uri))); ext {
	case ".m3u8":
		return p.playlistDuration(ctx, uri)
	case ".mp3":
		return p.mp3Duration(ctx, uri)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func (p *Prober) mp3Duration(ctx context.Context, uri string) (time.Duration, error) {
	body, err := p.open(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", uri, err)
	}

	stream, err := audio.NewMP3Stream(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode %s: %w", uri, err)
	}

	return stream.Duration(), nil
}

func (p *Prober) playlistDuration(ctx context.Context, uri string) (time.Duration, error) {
	playlist, listType, err := p.decode(ctx, uri)
	if err != nil {
		return 0, err
	}

	if listType == m3u8.MASTER {
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok || len(master.Variants) == 0 || master.Variants[0] == nil {
			return 0, fmt.Errorf("master playlist contains no variants")
		}

		// Every variant renders the same timeline, so the first one is enough.
		variantURL, err := resolveURL(uri, master.Variants[0].URI)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve variant URL: %w", err)
		}

		playlist, listType, err = p.decode(ctx, variantURL)
		if err != nil {
			return 0, err
		}

		if listType != m3u8.MEDIA {
			return 0, fmt.Errorf("expected media playlist, got master playlist")
		}
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return 0, fmt.Errorf("unexpected playlist type")
	}

	return mediaDuration(media)
}

func mediaDuration(media *m3u8.MediaPlaylist) (time.Duration, error) {
	var total float64
	count := 0

	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		total += seg.Duration
		count++
	}

	if count == 0 {
		return 0, ErrEmptyPlaylist
	}

	return time.Duration(total * float64(time.Second)).Round(time.Millisecond), nil
}

func (p *Prober) decode(ctx context.Context, uri string) (m3u8.Playlist, m3u8.ListType, error) {
	body, err := p.open(ctx, uri)
	if err != nil {
		return nil, 0, err
	}
	defer body.Close()

	playlist, listType, err := m3u8.DecodeFrom(body, true)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse playlist: %w", err)
	}

	return playlist, listType, nil
}

func (p *Prober) open(ctx context.Context, uri string) (io.ReadCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", uri, err)
	}

	switch u.Scheme {
	case "http", "https":
	case "file":
		return os.Open(u.Path)
	case "":
		return os.Open(uri)
	default:
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedFormat, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", uri, resp.StatusCode)
	}

	return resp.Body, nil
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(baseURL, relativeURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	rel, err := url.Parse(relativeURL)
	if err != nil {
		return "", fmt.Errorf("invalid relative URL: %w", err)
	}

	return base.ResolveReference(rel).String(), nil
}

func stripQuery(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}

	return uri
}
