package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Recording is a finished block of interleaved integer PCM samples.
//
// A Recording never changes after construction. Samples returns a copy.
type Recording struct {
	samples    []int
	sampleRate int
	channels   int
	bitDepth   int
}

// NewRecording builds a recording from interleaved samples. The slice is
// copied.
func NewRecording(samples []int, sampleRate, channels, bitDepth int) (*Recording, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pcm: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("pcm: invalid channel count %d", channels)
	}
	if bitDepth <= 0 {
		return nil, fmt.Errorf("pcm: invalid bit depth %d", bitDepth)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("pcm: %d samples is not a multiple of %d channels", len(samples), channels)
	}
	s := make([]int, len(samples))
	copy(s, samples)
	return &Recording{
		samples:    s,
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}, nil
}

// RecordingFromBytes decodes little-endian 16-bit data in the given format.
// A trailing odd byte is dropped.
func RecordingFromBytes(f Format, data []byte) (*Recording, error) {
	if !f.valid() {
		return nil, errors.New("pcm: invalid audio type")
	}
	n := len(data) / 2
	n -= n % f.Channels()
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return &Recording{
		samples:    samples,
		sampleRate: f.SampleRate(),
		channels:   f.Channels(),
		bitDepth:   f.Depth(),
	}, nil
}

// RecordingFromChunks concatenates chunks of the given format into a
// recording. Chunks in a different format are rejected.
func RecordingFromChunks(f Format, chunks ...Chunk) (*Recording, error) {
	var buf bytes.Buffer
	for i, c := range chunks {
		if c.Format() != f {
			return nil, fmt.Errorf("pcm: chunk %d has format %v, want %v", i, c.Format(), f)
		}
		if _, err := c.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("pcm: write chunk %d: %w", i, err)
		}
	}
	return RecordingFromBytes(f, buf.Bytes())
}

// Samples returns a copy of the interleaved samples.
func (r *Recording) Samples() []int {
	s := make([]int, len(r.samples))
	copy(s, r.samples)
	return s
}

// SampleRate returns the sample rate in Hz.
func (r *Recording) SampleRate() int { return r.sampleRate }

// Channels returns the number of interleaved channels.
func (r *Recording) Channels() int { return r.channels }

// BitDepth returns the number of bits per sample.
func (r *Recording) BitDepth() int { return r.bitDepth }

// Frames returns the number of sample frames (samples per channel).
func (r *Recording) Frames() int {
	if r == nil || r.channels == 0 {
		return 0
	}
	return len(r.samples) / r.channels
}

// Duration returns the playback duration of the recording.
func (r *Recording) Duration() time.Duration {
	if r == nil || r.sampleRate == 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.sampleRate)
}

// Bytes encodes the samples as little-endian 16-bit PCM. It fails for
// recordings with a different bit depth.
func (r *Recording) Bytes() ([]byte, error) {
	if r.bitDepth != 16 {
		return nil, fmt.Errorf("pcm: cannot encode %d-bit samples as L16", r.bitDepth)
	}
	out := make([]byte, 2*len(r.samples))
	for i, s := range r.samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out, nil
}

// String describes the recording's format and length.
func (r *Recording) String() string {
	return fmt.Sprintf("pcm.Recording{rate=%d channels=%d depth=%d frames=%d}",
		r.sampleRate, r.channels, r.bitDepth, r.Frames())
}
