package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// SampleRingBuffer keeps the most recent samples moved by a device so level
// meters can read them. One writer (the audio callback) and any number of
// readers may use it concurrently.
type SampleRingBuffer struct {
	mu      sync.RWMutex
	samples []int16
	head    int // next write index
	count   int
}

func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{samples: make([]int16, max(capacity, 1))}
}

// Write appends samples, overwriting the oldest once full.
func (b *SampleRingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}

	n := copy(b.samples[b.head:], samples)
	copy(b.samples, samples[n:])
	b.head = (b.head + len(samples)) % capacity
	b.count = min(b.count+len(samples), capacity)
}

// ReadSamples returns up to n of the newest samples, oldest first.
func (b *SampleRingBuffer) ReadSamples(n int) []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n = min(n, b.count)
	if n <= 0 {
		return nil
	}

	capacity := len(b.samples)
	start := (b.head - n + capacity) % capacity
	out := make([]int16, n)
	k := copy(out, b.samples[start:min(start+n, capacity)])
	copy(out[k:], b.samples)

	return out
}

func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Reset forgets every sample, e.g. when the playing source changes.
func (b *SampleRingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head, b.count = 0, 0
}

// BytesToInt16 decodes S16LE bytes; a trailing odd byte is ignored.
func BytesToInt16(data []byte) []int16 {
	if len(data) < 2 {
		return nil
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}

// MonoToStereo duplicates each sample into an L=R pair.
func MonoToStereo(mono []int16) []int16 {
	stereo := make([]int16, len(mono)*2)
	for i, s := range mono {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}

	return stereo
}

// Level is the RMS amplitude of samples normalised to [0, 1].
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(samples)))
}
