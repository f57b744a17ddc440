package audio_test

import (
	"bytes"
	"io"
	"math"
	"testing"
	"time"

	"github.com/alkime/podbook/internal/audio"
	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tone encodes d of a 440Hz stereo tone at 44.1kHz.
func tone(t *testing.T, d time.Duration) []byte {
	t.Helper()

	const rate = 44100
	n := int(d.Seconds() * rate)

	mono := make([]int16, n)
	for i := range mono {
		mono[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	var buf bytes.Buffer
	require.NoError(t, mp3encoder.NewEncoder(rate, 2).Write(&buf, audio.MonoToStereo(mono)))

	return buf.Bytes()
}

func TestMP3Stream(t *testing.T) {
	t.Parallel()

	s, err := audio.NewMP3Stream(bytes.NewReader(tone(t, 2*time.Second)))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 44100, s.SampleRate())
	assert.InDelta(t, float64(2*time.Second), float64(s.Duration()), float64(100*time.Millisecond))
	assert.Zero(t, s.Position())

	require.NoError(t, s.SeekTo(time.Second))
	assert.Equal(t, time.Second, s.Position())

	buf := make([]byte, 4410*4+3)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4410*4, n, "reads whole frames only")
	assert.Equal(t, 1100*time.Millisecond, s.Position())

	_, err = io.Copy(io.Discard, s)
	require.NoError(t, err)
	assert.True(t, s.Done())
	assert.Equal(t, s.Duration(), s.Position())

	require.NoError(t, s.SeekTo(time.Hour), "seek past the end clamps")
	assert.True(t, s.Done())

	require.NoError(t, s.SeekTo(0))
	assert.False(t, s.Done())
}

func TestMP3Stream_Garbage(t *testing.T) {
	t.Parallel()

	_, err := audio.NewMP3Stream(bytes.NewReader([]byte("not an mp3")))
	assert.Error(t, err)
}
