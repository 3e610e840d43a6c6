// Package portaudio provides the capture.Device backed by the system's
// default PortAudio input.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/Laudkyle/NaviAudio/pkg/audio/capture"
	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

// DefaultFrame is the read granularity.
const DefaultFrame = 20 * time.Millisecond

var errClosed = errors.New("portaudio: read on closed stream")

var (
	initMu   sync.Mutex
	initRefs int
)

// acquire initializes PortAudio on first use. Every successful acquire
// must be paired with release.
func acquire() error {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		if err := pa.Initialize(); err != nil {
			return fmt.Errorf("portaudio: initialize: %w", err)
		}
	}
	initRefs++
	return nil
}

func release() {
	initMu.Lock()
	defer initMu.Unlock()
	if initRefs == 0 {
		return
	}
	initRefs--
	if initRefs == 0 {
		pa.Terminate()
	}
}

// Device opens the default input device.
type Device struct {
	Frame time.Duration
}

var _ capture.Device = (*Device)(nil)

// Open starts a mono 16-bit input stream at the format's sample rate.
func (d *Device) Open(ctx context.Context, format pcm.Format) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	frame := d.Frame
	if frame <= 0 {
		frame = DefaultFrame
	}
	if err := acquire(); err != nil {
		return nil, err
	}

	buf := make([]int16, format.SamplesInDuration(frame))
	stream, err := pa.OpenDefaultStream(1, 0, float64(format.SampleRate()), len(buf), buf)
	if err != nil {
		release()
		return nil, fmt.Errorf("portaudio: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		release()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	return &inputStream{stream: stream, buf: buf, format: format}, nil
}

// paStream is the part of *pa.Stream an inputStream drives.
type paStream interface {
	Read() error
	Abort() error
	Close() error
}

// inputStream reads blocking chunks from PortAudio. Close may run while a
// Read is pending on another goroutine: it aborts the stream, which makes
// the Read return, and frees the stream only after the Read is done.
type inputStream struct {
	stream  paStream
	buf     []int16
	format  pcm.Format
	reading sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func (s *inputStream) Format() pcm.Format { return s.format }

func (s *inputStream) ReadChunk() (pcm.Chunk, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errClosed
	}
	s.reading.Add(1)
	s.mu.Unlock()
	defer s.reading.Done()

	// An overflow drops samples but the buffer is still usable.
	if err := s.stream.Read(); err != nil && err != pa.InputOverflowed {
		if s.isClosed() {
			return nil, errClosed
		}
		return nil, fmt.Errorf("portaudio: read: %w", err)
	}
	data := make([]byte, 2*len(s.buf))
	for i, v := range s.buf {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
	}
	return s.format.DataChunk(data), nil
}

func (s *inputStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *inputStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	defer release()

	abortErr := s.stream.Abort()
	s.reading.Wait()
	closeErr := s.stream.Close()
	if abortErr != nil {
		return fmt.Errorf("portaudio: abort stream: %w", abortErr)
	}
	if closeErr != nil {
		return fmt.Errorf("portaudio: close stream: %w", closeErr)
	}
	return nil
}

// Input describes an input-capable device.
type Input struct {
	Name              string  `json:"name" yaml:"name"`
	HostAPI           string  `json:"host_api" yaml:"host_api"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	Default           bool    `json:"default" yaml:"default"`
}

// Inputs lists the devices that can record.
func Inputs() ([]Input, error) {
	if err := acquire(); err != nil {
		return nil, err
	}
	defer release()

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	def, _ := pa.DefaultInputDevice()

	var out []Input
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		in := Input{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Name == d.Name,
		}
		if d.HostApi != nil {
			in.HostAPI = d.HostApi.Name
		}
		out = append(out, in)
	}
	return out, nil
}
