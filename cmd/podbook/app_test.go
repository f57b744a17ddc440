package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/episode"
	"github.com/alkime/podbook/internal/keyring"
	"github.com/alkime/podbook/internal/workdir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: -1},
		{in: "0s", want: 0},
		{in: "12m30s", want: 12*time.Minute + 30*time.Second},
		{in: "-5s", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStart(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEpisode(t *testing.T) {
	ctx := context.Background()

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ep.json")
		data, err := json.Marshal(map[string]any{
			"id":               "ep-1",
			"title":            "Bridges",
			"audio_url":        "https://cdn.example/ep-1.mp3",
			"duration_seconds": 600,
		})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		ep, err := loadEpisode(ctx, &config.Config{}, path)
		require.NoError(t, err)
		assert.Equal(t, "Bridges", ep.Title)
		assert.Equal(t, 600, ep.DurationSeconds)
	})

	t.Run("by id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "eq.ep-2", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`[{"id":"ep-2","title":"Tunnels","audio_url":"https://cdn.example/ep-2.mp3","duration_seconds":300}]`))
		}))
		defer srv.Close()

		ep, err := loadEpisode(ctx, &config.Config{APIURL: srv.URL, APIKey: "key"}, "ep-2")
		require.NoError(t, err)
		assert.Equal(t, "Tunnels", ep.Title)
	})

	t.Run("no file and no API", func(t *testing.T) {
		_, err := loadEpisode(ctx, &config.Config{}, "ep-3")
		assert.ErrorContains(t, err, "PODBOOK_API_URL")
	})
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()

	t.Run("none configured", func(t *testing.T) {
		b, err := newBackend(&config.Config{}, dataDirFor(dir), false, discard())
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("hosted", func(t *testing.T) {
		b, err := newBackend(&config.Config{QAURL: "https://qa.example"}, dataDirFor(dir), false, discard())
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("local needs keys", func(t *testing.T) {
		_, err := newBackend(&config.Config{OpenAIAPIKey: "sk"}, dataDirFor(dir), true, discard())
		assert.ErrorContains(t, err, "anthropic")
	})

	t.Run("local", func(t *testing.T) {
		b, err := newBackend(&config.Config{OpenAIAPIKey: "sk", AnthropicAPIKey: "ak"}, dataDirFor(dir), true, discard())
		require.NoError(t, err)
		assert.NotNil(t, b)
	})
}

func dataDirFor(path string) workdir.Dir {
	return workdir.Dir(path)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListKeys(t *testing.T) {
	gokeyring.MockInit()
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PODBOOK_API_KEY", "")
	require.NoError(t, keyring.Podbook.Set("pb-secret"))

	var out bytes.Buffer
	listKeys(&out)

	assert.Equal(t, "openai: configured (OPENAI_API_KEY)\n"+
		"anthropic: not set\n"+
		"podbook: configured (keychain)\n"+
		"\nRun 'podbook config set-key <service> <key>' to configure.\n", out.String())
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	printDevices(&out, []audio.Info{
		{Name: "Built-in Mic", Kind: "capture", IsDefault: true, Formats: []string{"16-bit 1ch 16000Hz"}},
		{Name: "USB Headset", Kind: "capture"},
		{Name: "Speakers", Kind: "playback", IsDefault: true},
	})

	assert.Equal(t, "capture devices:\n"+
		" * Built-in Mic\n"+
		"     16-bit 1ch 16000Hz\n"+
		"   USB Headset\n"+
		"playback devices:\n"+
		" * Speakers\n", out.String())
}

func TestListEpisodes(t *testing.T) {
	ctx := context.Background()

	t.Run("newest first", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/episodes", r.URL.Path)
			assert.Equal(t, "published_at.desc", r.URL.Query().Get("order"))
			assert.Equal(t, "key", r.Header.Get("apikey"))
			_, _ = w.Write([]byte(`[
				{"id":"ep-2","title":"Tunnels","author":"Ana","audio_url":"https://cdn.example/ep-2.mp3",
				 "duration_seconds":300,"published_at":"2026-03-02T09:00:00Z"},
				{"id":"ep-1","title":"Bridges","audio_url":"https://cdn.example/ep-1.mp3","duration_seconds":600,
				 "intro_audio_url":"https://cdn.example/intro.mp3","intro_duration_seconds":30,
				 "published_at":"2026-02-01T09:00:00Z"}
			]`))
		}))
		defer srv.Close()

		var out bytes.Buffer
		require.NoError(t, listEpisodes(ctx, &config.Config{APIURL: srv.URL, APIKey: "key"}, &out))

		assert.Equal(t, "ep-2  2026-03-02  5:00  Tunnels (Ana)\n"+
			"ep-1  2026-02-01  10:30  Bridges\n", out.String())
	})

	t.Run("empty feed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		var out bytes.Buffer
		require.NoError(t, listEpisodes(ctx, &config.Config{APIURL: srv.URL}, &out))
		assert.Equal(t, "No episodes published yet.\n", out.String())
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		var episodeErr *episode.ServerError
		err := listEpisodes(ctx, &config.Config{APIURL: srv.URL}, io.Discard)
		require.ErrorAs(t, err, &episodeErr)
		assert.Equal(t, http.StatusBadGateway, episodeErr.Code)
	})

	t.Run("no API", func(t *testing.T) {
		assert.ErrorContains(t, listEpisodes(ctx, &config.Config{}, io.Discard), "PODBOOK_API_URL")
	})
}
