package portaudio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
)

// stuckStream blocks Read until the stream is aborted.
type stuckStream struct {
	started chan struct{}
	aborted chan struct{}
	once    sync.Once
	reads   int
	closed  bool
}

func newStuckStream() *stuckStream {
	return &stuckStream{started: make(chan struct{}), aborted: make(chan struct{})}
}

func (s *stuckStream) Read() error {
	s.reads++
	if s.reads == 1 {
		return nil
	}
	close(s.started)
	<-s.aborted
	return errors.New("stream aborted")
}

func (s *stuckStream) Abort() error {
	s.once.Do(func() { close(s.aborted) })
	return nil
}

func (s *stuckStream) Close() error {
	select {
	case <-s.aborted:
	default:
		return errors.New("closed before abort")
	}
	s.closed = true
	return nil
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	st := newStuckStream()
	in := &inputStream{stream: st, buf: make([]int16, 320), format: pcm.L16Mono16K}

	chunk, err := in.ReadChunk()
	if err != nil {
		t.Fatalf("first ReadChunk: %v", err)
	}
	if got := chunk.Len(); got != 640 {
		t.Errorf("chunk = %d bytes, want 640", got)
	}

	readErr := make(chan error, 1)
	go func() {
		_, err := in.ReadChunk()
		readErr <- err
	}()
	<-st.started

	closed := make(chan error, 1)
	go func() { closed <- in.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind a pending read")
	}

	select {
	case err := <-readErr:
		if !errors.Is(err, errClosed) {
			t.Errorf("pending ReadChunk err = %v, want errClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending ReadChunk never returned")
	}
	if !st.closed {
		t.Error("stream not closed")
	}
	if _, err := in.ReadChunk(); !errors.Is(err, errClosed) {
		t.Errorf("ReadChunk after Close err = %v, want errClosed", err)
	}
	if err := in.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
