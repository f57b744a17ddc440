package question_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/audio"
	"github.com/alkime/podbook/internal/question"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMic plays a fixed number of loud packets followed by silence.
type fakeMic struct {
	levels      *audio.SampleRingBuffer
	loudPackets int
	captureErr  error

	mu       sync.Mutex
	dataC    chan audio.DataPacket
	stopC    chan struct{}
	wg       sync.WaitGroup
	deallocs int
}

func (m *fakeMic) CaptureInto(_ context.Context, dataC chan audio.DataPacket) error {
	if m.captureErr != nil {
		return m.captureErr
	}
	m.dataC = dataC
	return nil
}

func (m *fakeMic) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopC = make(chan struct{})
	stopC := m.stopC

	m.wg.Go(func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-stopC:
				return
			case <-ticker.C:
			}

			var amp int16
			if i < m.loudPackets {
				amp = 8000
			}
			packet := make([]byte, 320*2)
			samples := make([]int16, 320)
			for j := range samples {
				if j%2 == 0 {
					samples[j] = amp
				} else {
					samples[j] = -amp
				}
				binary.LittleEndian.PutUint16(packet[j*2:], uint16(samples[j]))
			}

			m.levels.Write(samples)
			select {
			case m.dataC <- packet:
			case <-stopC:
				return
			}
		}
	})

	return nil
}

func (m *fakeMic) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopC != nil {
		close(m.stopC)
		m.stopC = nil
	}
	m.wg.Wait()
	return nil
}

func (m *fakeMic) Dealloc(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deallocs++
}

type fakeTranscriber struct {
	got []byte
	err error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.got = data
	return "what year was this recorded?", f.err
}

func testConfig(dir string) question.ListenerConfig {
	return question.ListenerConfig{
		Dir:              dir,
		PollInterval:     5 * time.Millisecond,
		SilenceThreshold: 20 * time.Millisecond,
		MaxDuration:      2 * time.Second,
		NoSpeechWait:     100 * time.Millisecond,
	}
}

func TestListener_Listen(t *testing.T) {
	dir := t.TempDir()
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels, loudPackets: 20}
	tr := &fakeTranscriber{}

	l, err := question.NewListener(testConfig(dir), mic, levels, tr, nil)
	require.NoError(t, err)

	text, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "what year was this recorded?", text)
	assert.NotEmpty(t, tr.got)
	assert.Equal(t, 1, mic.deallocs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "recording should be removed after transcription")
}

func TestListener_KeepRecordings(t *testing.T) {
	dir := t.TempDir()
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels, loudPackets: 10}

	cfg := testConfig(dir)
	cfg.KeepRecordings = true

	l, err := question.NewListener(cfg, mic, levels, &fakeTranscriber{}, nil)
	require.NoError(t, err)

	_, err = l.Listen(context.Background())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "question-*.mp3"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestListener_NoSpeech(t *testing.T) {
	dir := t.TempDir()
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels}

	l, err := question.NewListener(testConfig(dir), mic, levels, &fakeTranscriber{}, nil)
	require.NoError(t, err)

	_, err = l.Listen(context.Background())
	assert.ErrorIs(t, err, question.ErrNoSpeech)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListener_StopEarly(t *testing.T) {
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels, loudPackets: 1 << 20}

	cfg := testConfig(t.TempDir())
	cfg.MaxDuration = time.Minute

	l, err := question.NewListener(cfg, mic, levels, &fakeTranscriber{}, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		l.Stop()
	}()

	text, err := l.Listen(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestListener_Canceled(t *testing.T) {
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels, loudPackets: 1 << 20}

	cfg := testConfig(t.TempDir())
	cfg.MaxDuration = time.Minute

	l, err := question.NewListener(cfg, mic, levels, &fakeTranscriber{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = l.Listen(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, mic.deallocs)
}

func TestListener_CaptureFails(t *testing.T) {
	levels := audio.NewSampleRingBuffer(audio.DefaultLevelWindow)
	mic := &fakeMic{levels: levels, captureErr: errors.New("no microphone")}

	l, err := question.NewListener(testConfig(t.TempDir()), mic, levels, &fakeTranscriber{}, nil)
	require.NoError(t, err)

	_, err = l.Listen(context.Background())
	assert.ErrorContains(t, err, "no microphone")
}

func TestNewListener_Validation(t *testing.T) {
	levels := audio.NewSampleRingBuffer(16)
	mic := &fakeMic{levels: levels}
	tr := &fakeTranscriber{}

	_, err := question.NewListener(question.ListenerConfig{}, mic, levels, tr, nil)
	assert.Error(t, err)

	_, err = question.NewListener(testConfig("x"), nil, levels, tr, nil)
	assert.Error(t, err)

	_, err = question.NewListener(testConfig("x"), mic, nil, tr, nil)
	assert.Error(t, err)

	_, err = question.NewListener(testConfig("x"), mic, levels, nil, nil)
	assert.Error(t, err)
}
