package timesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/podbook/internal/audio"
)

var ErrUnsupportedURI = errors.New("unsupported source uri")

const defaultFetchTimeout = 30 * time.Second

type AudioOption func(*AudioProvider)

// WithTickInterval sets the position tick cadence.
func WithTickInterval(d time.Duration) AudioOption {
	return func(p *AudioProvider) {
		p.tick = d
	}
}

// Muted drives the playhead from the tick clock instead of an output device.
func Muted() AudioOption {
	return func(p *AudioProvider) {
		p.muted = true
	}
}

// WithLevels taps decoded output into levels for meters.
func WithLevels(levels *audio.SampleRingBuffer) AudioOption {
	return func(p *AudioProvider) {
		p.levels = levels
	}
}

func WithHTTPClient(c *http.Client) AudioOption {
	return func(p *AudioProvider) {
		p.client = c
	}
}

func WithAudioLogger(l *slog.Logger) AudioOption {
	return func(p *AudioProvider) {
		p.logger = l
	}
}

// withDeviceFactory replaces the malgo device constructor.
func withDeviceFactory(fn func(*audio.DeviceConfig) audio.Device) AudioOption {
	return func(p *AudioProvider) {
		p.newDevice = fn
	}
}

// AudioProvider loads MP3 streams from local files or HTTP and plays them
// through the default output device.
type AudioProvider struct {
	client    *http.Client
	tick      time.Duration
	muted     bool
	levels    *audio.SampleRingBuffer
	newDevice func(*audio.DeviceConfig) audio.Device
	logger    *slog.Logger
}

func NewAudioProvider(opts ...AudioOption) *AudioProvider {
	p := &AudioProvider{
		client:    &http.Client{Timeout: defaultFetchTimeout},
		tick:      DefaultTickInterval,
		newDevice: audio.NewDevice,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Load validates uri and starts fetching and decoding in the background.
func (p *AudioProvider) Load(ctx context.Context, uri string, l Listener) (Source, error) {
	open, err := p.opener(uri)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &audioSource{
		provider: p,
		uri:      uri,
		listener: l,
		cancel:   cancel,
	}

	s.wg.Go(func() {
		s.run(runCtx, open)
	})

	return s, nil
}

func (p *AudioProvider) opener(uri string) (func(context.Context) (io.ReadSeeker, error), error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedURI, err)
	}

	switch u.Scheme {
	case "http", "https":
		return func(ctx context.Context) (io.ReadSeeker, error) {
			return p.fetch(ctx, uri)
		}, nil
	case "file":
		return func(context.Context) (io.ReadSeeker, error) {
			return os.Open(u.Path)
		}, nil
	case "":
		return func(context.Context) (io.ReadSeeker, error) {
			return os.Open(uri)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
	}
}

// fetch reads the whole body so the decoder can seek.
func (p *AudioProvider) fetch(ctx context.Context, uri string) (io.ReadSeeker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", uri, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}

	return bytes.NewReader(body), nil
}

type audioSource struct {
	provider *AudioProvider
	uri      string
	listener Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	stream  *audio.MP3Stream
	device  audio.Device
	playing atomic.Bool
	closed  bool
}

// run owns the stream for the lifetime of the source and releases it once
// the source is closed.
func (s *audioSource) run(ctx context.Context, open func(context.Context) (io.ReadSeeker, error)) {
	stream, dev, err := s.load(ctx, open)
	if err != nil {
		if ctx.Err() == nil {
			s.listener.OnFailure(fmt.Errorf("%w: %w", ErrSourceLoadFailed, err))
		}
		return
	}
	defer s.release(stream, dev)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stream, s.device = stream, dev
	s.mu.Unlock()

	if s.playing.Load() {
		s.Play()
	}

	s.provider.logger.Debug("source ready", "uri", s.uri, "duration", stream.Duration())
	s.listener.OnReady(stream.Duration())

	s.tickLoop(ctx, stream)
}

func (s *audioSource) load(
	ctx context.Context,
	open func(context.Context) (io.ReadSeeker, error),
) (*audio.MP3Stream, audio.Device, error) {
	src, err := open(ctx)
	if err != nil {
		return nil, nil, err
	}

	stream, err := audio.NewMP3Stream(src)
	if err != nil {
		if c, ok := src.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, nil, err
	}

	if s.provider.muted {
		return stream, nil, nil
	}

	conf := audio.PlaybackConfig(stream.SampleRate(), s.provider.levels)
	conf.Logger = s.provider.logger
	dev := s.provider.newDevice(conf)
	if err := dev.Playback(ctx, stream); err != nil {
		_ = stream.Close()
		return nil, nil, err
	}

	return stream, dev, nil
}

func (s *audioSource) tickLoop(ctx context.Context, stream *audio.MP3Stream) {
	tick := s.provider.tick
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	frame := make([]byte, int(tick.Seconds()*float64(stream.SampleRate()))*4)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !s.playing.Load() {
			continue
		}

		if s.provider.muted {
			if _, err := stream.Read(frame); err != nil && !errors.Is(err, io.EOF) {
				s.playing.Store(false)
				s.listener.OnFailure(fmt.Errorf("%w: %w", ErrSourceLoadFailed, err))
				continue
			}
		}

		if ctx.Err() != nil {
			return
		}

		s.listener.OnPositionTick(stream.Position(), tick)

		if stream.Done() {
			s.Pause()
			s.listener.OnEndOfStream()
		}
	}
}

func (s *audioSource) Play() {
	s.playing.Store(true)
	s.command(func(d audio.Device) error { return d.Start(context.Background()) })
}

func (s *audioSource) Pause() {
	s.playing.Store(false)
	s.command(func(d audio.Device) error { return d.Stop(context.Background()) })
}

// Seek is frame accurate, so tol is always met.
func (s *audioSource) Seek(position time.Duration, _ Tolerance) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream == nil {
		return
	}

	if err := stream.SeekTo(position); err != nil {
		s.provider.logger.Warn("seek failed", "uri", s.uri, "position", position, "error", err)
	}
}

func (s *audioSource) command(fn func(audio.Device) error) {
	s.mu.Lock()
	dev := s.device
	s.mu.Unlock()

	if dev == nil {
		return
	}

	if err := fn(dev); err != nil {
		s.provider.logger.Warn("audio device command failed", "uri", s.uri, "error", err)
	}
}

// Close stops callbacks and hands the stream back to the run goroutine for
// release. It does not wait, so it is safe to call from a listener.
func (s *audioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}

	s.closed = true
	s.playing.Store(false)
	s.stream, s.device = nil, nil
	s.cancel()

	return nil
}

func (s *audioSource) release(stream *audio.MP3Stream, dev audio.Device) {
	if dev != nil {
		dev.Dealloc(context.Background())
	}

	if err := stream.Close(); err != nil {
		s.provider.logger.Debug("closing stream", "uri", s.uri, "error", err)
	}
	if s.provider.levels != nil {
		s.provider.levels.Reset()
	}
}
