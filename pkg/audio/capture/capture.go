package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/buffer"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

// DefaultMaxDuration caps a single recording.
const DefaultMaxDuration = time.Minute

// Option configures a Capture.
type Option func(*Capture)

// WithFormat sets the requested capture format. Default L16Mono16K.
func WithFormat(f pcm.Format) Option {
	return func(c *Capture) { c.format = f }
}

// WithPermission sets the permission check. Default AlwaysGranted.
func WithPermission(p Permission) Option {
	return func(c *Capture) { c.perm = p }
}

// WithMicrophone sets the arbiter. Default DefaultMicrophone.
func WithMicrophone(m *Microphone) Option {
	return func(c *Capture) { c.mic = m }
}

// WithMaxDuration caps the recording length; audio past the cap is
// dropped.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Capture) { c.maxDuration = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// Capture records from a Device between Start and Stop.
type Capture struct {
	dev         Device
	format      pcm.Format
	perm        Permission
	mic         *Microphone
	maxDuration time.Duration
	log         *slog.Logger

	mu     sync.Mutex
	active *take
}

// take is one in-flight recording.
type take struct {
	stream  Stream
	format  pcm.Format
	buf     *buffer.Buffer[byte]
	stop    chan struct{}
	done    chan struct{}
	err     error
	started time.Time
}

// New creates a Capture on dev.
func New(dev Device, opts ...Option) *Capture {
	c := &Capture{
		dev:         dev,
		format:      pcm.L16Mono16K,
		perm:        AlwaysGranted,
		mic:         DefaultMicrophone,
		maxDuration: DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Active reports whether a recording is in progress.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Start begins recording. It fails with PermissionDenied when access is
// not granted and DeviceUnavailable when the microphone is held (also by
// this Capture) or the device cannot be opened.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return classify.Errorf(classify.DeviceUnavailable, "capture.start", "already recording")
	}

	ok, err := c.perm.Granted(ctx)
	if err != nil {
		return classify.NewError(classify.PermissionDenied, "capture.start", err)
	}
	if !ok {
		return classify.Errorf(classify.PermissionDenied, "capture.start", "microphone permission not granted")
	}

	if err := c.mic.acquire(c); err != nil {
		return classify.NewError(classify.DeviceUnavailable, "capture.start", err)
	}
	stream, err := c.dev.Open(ctx, c.format)
	if err != nil {
		c.mic.release(c)
		return classify.NewError(classify.DeviceUnavailable, "capture.start", err)
	}

	format := stream.Format()
	limit := 0
	if c.maxDuration > 0 {
		limit = int(format.BytesInDuration(c.maxDuration))
	}
	t := &take{
		stream:  stream,
		format:  format,
		buf:     buffer.Limited[byte](limit),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
	}
	c.active = t
	go c.read(t)
	c.log.Debug("capture started", "format", format.String())
	return nil
}

func (c *Capture) read(t *take) {
	defer close(t.done)
	b, ok := t.stream.(Buffered)
	drain := ok && b.Buffered()
	for {
		if !drain {
			select {
			case <-t.stop:
				return
			default:
			}
		}
		chunk, err := t.stream.ReadChunk()
		if chunk != nil && chunk.Len() > 0 {
			if chunk.Format() != t.format {
				t.err = fmt.Errorf("chunk format %v, stream format %v", chunk.Format(), t.format)
				return
			}
			if _, werr := chunk.WriteTo(t.buf); werr != nil {
				if errors.Is(werr, buffer.ErrFull) {
					c.log.Warn("capture reached max duration", "max", c.maxDuration)
					return
				}
				t.err = werr
				return
			}
		}
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.err = err
			return
		}
	}
}

// Stop ends the recording and returns it. Without an active recording it
// fails with NotRecording. The microphone is released before Stop
// returns, whatever the outcome.
func (c *Capture) Stop(ctx context.Context) (*pcm.Recording, error) {
	c.mu.Lock()
	t := c.active
	c.active = nil
	c.mu.Unlock()
	if t == nil {
		return nil, classify.Errorf(classify.NotRecording, "capture.stop", "no active recording")
	}
	defer c.mic.release(c)

	close(t.stop)
	select {
	case <-t.done:
	case <-ctx.Done():
		// Closing the stream unblocks a pending read.
		t.stream.Close()
		<-t.done
	}
	closeErr := t.stream.Close()
	t.buf.CloseWrite()

	if t.err != nil {
		return nil, classify.NewError(classify.DeviceUnavailable, "capture.read", t.err)
	}
	if closeErr != nil {
		c.log.Warn("close capture stream", "error", closeErr)
	}
	rec, err := pcm.RecordingFromBytes(t.format, t.buf.Snapshot())
	if err != nil {
		return nil, classify.NewError(classify.UnsupportedFormat, "capture.stop", err)
	}
	c.log.Debug("capture stopped", "duration", rec.Duration(), "elapsed", time.Since(t.started))
	return rec, nil
}
