package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Laudkyle/NaviAudio/cmd/navi/internal/config"
	"github.com/Laudkyle/NaviAudio/pkg/audio/capture"
	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/audio/portaudio"
	"github.com/Laudkyle/NaviAudio/pkg/audio/wav"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/features"
	"github.com/Laudkyle/NaviAudio/pkg/history"
	"github.com/Laudkyle/NaviAudio/pkg/session"
)

// replayFrame is the chunk size used when replaying a WAV file.
const replayFrame = 20 * time.Millisecond

// newCapture builds the capture for record and serve: the default
// microphone, or a real-time replay of a WAV file. It also returns the
// replayed recording, nil for the microphone.
func newCapture(cfg *config.Config, replay string, log *slog.Logger) (*capture.Capture, *pcm.Recording, error) {
	opts := []capture.Option{
		capture.WithMaxDuration(cfg.Capture.MaxDuration),
		capture.WithLogger(log),
	}
	if replay == "" {
		format, err := pcm.ParseFormat(cfg.Capture.SampleRate)
		if err != nil {
			return nil, nil, err
		}
		dev := &portaudio.Device{Frame: cfg.Capture.Frame}
		return capture.New(dev, append(opts, capture.WithFormat(format))...), nil, nil
	}

	rec, err := readWAV(replay)
	if err != nil {
		return nil, nil, err
	}
	format, chunks, err := capture.Chunks(rec, replayFrame)
	if err != nil {
		return nil, nil, fmt.Errorf("replay %s: %w", replay, err)
	}
	dev := capture.NewReplayDevice(format, chunks...).Realtime()
	return capture.New(dev, append(opts, capture.WithFormat(format))...), rec, nil
}

// readWAV decodes a WAV file.
func readWAV(path string) (*pcm.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rec, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return rec, nil
}

// recordState stores a terminal state in the history log. hist may be
// nil.
func recordState(ctx context.Context, hist *history.Log, keep int, s session.State, log *slog.Logger) {
	if hist == nil || !s.Phase.Terminal() {
		return
	}
	var err error
	if s.Err != nil {
		err = s.Err
	}
	e := history.NewEntry(s.Backend, s.Result, err, s.Recording)
	e.ID = s.ID
	e.At = s.At
	recordEntry(ctx, hist, keep, e, s.Recording, log)
}

// historyQueue is how many terminal states serve buffers for the history
// writer before dropping.
const historyQueue = 16

// historyRecorder stores terminal states on its own goroutine, so session
// observers return without waiting on history I/O.
type historyRecorder struct {
	record func(session.State)
	log    *slog.Logger
	states chan session.State
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newHistoryRecorder(size int, record func(session.State), log *slog.Logger) *historyRecorder {
	r := &historyRecorder{
		record: record,
		log:    log,
		states: make(chan session.State, size),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *historyRecorder) run() {
	defer close(r.done)
	for s := range r.states {
		r.record(s)
	}
}

// Observe queues terminal states. It never blocks; a full queue drops the
// state with a warning.
func (r *historyRecorder) Observe(s session.State) {
	if !s.Phase.Terminal() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.states <- s:
	default:
		r.log.Warn("history queue full, dropping entry", "id", s.ID)
	}
}

// Close stops accepting states and waits for queued ones to be stored.
func (r *historyRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.states)
	r.mu.Unlock()
	<-r.done
}

// recordEntry stores e, then prunes to the newest keep entries when
// keep > 0. Failures are logged.
func recordEntry(ctx context.Context, hist *history.Log, keep int, e history.Entry, rec *pcm.Recording, log *slog.Logger) {
	if _, err := hist.Record(ctx, e, rec); err != nil {
		log.Warn("record history", "error", err)
		return
	}
	if keep > 0 {
		if _, err := hist.Prune(ctx, keep); err != nil {
			log.Warn("prune history", "error", err)
		}
	}
}

// classifyRecording runs extraction and inference on rec once backend is
// ready.
func classifyRecording(ctx context.Context, backend classify.Backend, rec *pcm.Recording) (*classify.Result, error) {
	if err := waitReady(ctx, backend); err != nil {
		return nil, err
	}
	ext, err := features.New(backend.Features(), backend.InputShape())
	if err != nil {
		return nil, err
	}
	t, err := ext.Extract(rec)
	if err != nil {
		return nil, err
	}
	return backend.Classify(ctx, t)
}
