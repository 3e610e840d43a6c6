package capture

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

// ReplayDevice plays back pre-recorded chunks as if they came from a
// microphone. Every Open replays from the beginning.
type ReplayDevice struct {
	format   pcm.Format
	chunks   []pcm.Chunk
	realtime bool
}

// NewReplayDevice creates a device replaying chunks in format.
func NewReplayDevice(format pcm.Format, chunks ...pcm.Chunk) *ReplayDevice {
	return &ReplayDevice{format: format, chunks: chunks}
}

// Realtime makes streams pace chunks at their playback duration.
func (d *ReplayDevice) Realtime() *ReplayDevice {
	d.realtime = true
	return d
}

// Open returns a stream over the chunks. The requested format is ignored;
// the stream reports the replay format.
func (d *ReplayDevice) Open(ctx context.Context, _ pcm.Format) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &replayStream{dev: d, closed: make(chan struct{})}, nil
}

type replayStream struct {
	dev       *ReplayDevice
	next      int
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *replayStream) Format() pcm.Format { return s.dev.format }

func (s *replayStream) ReadChunk() (pcm.Chunk, error) {
	select {
	case <-s.closed:
		return nil, io.ErrClosedPipe
	default:
	}
	if s.next >= len(s.dev.chunks) {
		return nil, io.EOF
	}
	c := s.dev.chunks[s.next]
	s.next++
	if s.dev.realtime {
		select {
		case <-time.After(s.dev.format.Duration(c.Len())):
		case <-s.closed:
			return nil, io.ErrClosedPipe
		}
	}
	return c, nil
}

// Buffered reports whether the stream replays without pacing.
func (s *replayStream) Buffered() bool { return !s.dev.realtime }

func (s *replayStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Chunks splits a 16-bit mono recording into chunks of the given duration
// so it can be replayed. Other layouts are rejected.
func Chunks(rec *pcm.Recording, d time.Duration) (pcm.Format, []pcm.Chunk, error) {
	if rec.Channels() != 1 || rec.BitDepth() != 16 {
		return 0, nil, fmt.Errorf("capture: replay needs 16-bit mono audio, got %d-bit %d channels", rec.BitDepth(), rec.Channels())
	}
	format, err := pcm.ParseFormat(rec.SampleRate())
	if err != nil {
		return 0, nil, err
	}
	data, err := rec.Bytes()
	if err != nil {
		return 0, nil, err
	}
	size := int(format.BytesInDuration(d))
	if size <= 0 {
		size = len(data)
	}
	var chunks []pcm.Chunk
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		chunks = append(chunks, format.DataChunk(data[off:end]))
	}
	return format, chunks, nil
}
