package pcm

import (
	"fmt"
	"io"
	"time"
)

// Format is a 16-bit little-endian mono stream layout, identified by its
// sample rate. The capture path only deals in these; Recording carries
// arbitrary layouts decoded from files.
type Format int

// Supported capture formats.
const (
	L16Mono8K Format = iota
	L16Mono16K
	L16Mono22K
	L16Mono24K
	L16Mono44K
	L16Mono48K
)

const (
	bitDepth  = 16
	frameSize = bitDepth / 8
)

var formatRates = [...]int{
	L16Mono8K:  8000,
	L16Mono16K: 16000,
	L16Mono22K: 22050,
	L16Mono24K: 24000,
	L16Mono44K: 44100,
	L16Mono48K: 48000,
}

// ParseFormat returns the format with the given sample rate.
func ParseFormat(sampleRate int) (Format, error) {
	for f, r := range formatRates {
		if r == sampleRate {
			return Format(f), nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", sampleRate)
}

func (f Format) valid() bool {
	return f >= 0 && int(f) < len(formatRates)
}

func (f Format) mustValid() {
	if !f.valid() {
		panic(fmt.Sprintf("pcm: invalid format %d", int(f)))
	}
}

// SampleRate is the rate in Hz. It panics for an invalid format.
func (f Format) SampleRate() int {
	f.mustValid()
	return formatRates[f]
}

// Channels is always 1.
func (f Format) Channels() int {
	f.mustValid()
	return 1
}

// Depth is always 16.
func (f Format) Depth() int {
	f.mustValid()
	return bitDepth
}

// FrameSize is the byte size of one frame.
func (f Format) FrameSize() int {
	f.mustValid()
	return frameSize
}

// Samples converts a byte count to whole frames.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.FrameSize())
}

// SamplesInDuration converts a duration to frames, rounding down.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(d) * int64(f.SampleRate()) / int64(time.Second)
}

// BytesInDuration converts a duration to a byte count of whole frames.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.FrameSize())
}

// Duration is the playback time of bytes of audio.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes) * int64(time.Second) / int64(f.SampleRate()))
}

// SilenceChunk returns d of digital silence.
func (f Format) SilenceChunk(d time.Duration) Chunk {
	return &SilenceChunk{Duration: d, size: f.BytesInDuration(d), format: f}
}

// DataChunk wraps raw little-endian samples. data is not copied.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{Data: data, format: f}
}

func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("pcm.Format(%d)", int(f))
	}
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", formatRates[f])
}

// Chunk is a run of audio in one Format.
type Chunk interface {
	// Len is the size in bytes.
	Len() int64
	Format() Format
	// WriteTo writes the raw samples.
	WriteTo(w io.Writer) (int64, error)
}

// DataChunk holds captured samples.
type DataChunk struct {
	Data   []byte
	format Format
}

func (c *DataChunk) Len() int64     { return int64(len(c.Data)) }
func (c *DataChunk) Format() Format { return c.format }

func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is zero-valued audio produced on demand.
type SilenceChunk struct {
	Duration time.Duration
	size     int64
	format   Format
}

func (c *SilenceChunk) Len() int64     { return c.size }
func (c *SilenceChunk) Format() Format { return c.format }

var zeros [4096]byte

func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for written < c.size {
		n, err := w.Write(zeros[:min(c.size-written, int64(len(zeros)))])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
