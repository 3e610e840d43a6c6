// Package session drives one press/release cycle at a time through
// capture, feature extraction and classification.
//
// The Controller moves Idle → Recording → Processing → Ready | Failed and
// back to Idle on the next press. Every transition is delivered, in order,
// to the registered observers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Laudkyle/NaviAudio/pkg/audio/pcm"
	"github.com/Laudkyle/NaviAudio/pkg/classify"
	"github.com/Laudkyle/NaviAudio/pkg/features"
)

// ErrBusy is returned by Press while a cycle is in flight.
var ErrBusy = errors.New("session: busy")

// Capturer starts and stops a recording. *capture.Capture implements it.
type Capturer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*pcm.Recording, error)
}

// Extractor turns a recording into the backend's input tensor.
// *features.Extractor implements it.
type Extractor interface {
	Extract(rec *pcm.Recording) (*classify.Tensor, error)
}

// Observer receives state transitions. Observers run synchronously on the
// transitioning goroutine and must not call back into the Controller.
type Observer func(State)

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers[c.nextID] = o; c.nextID++ }
}

// WithExtractor replaces the extractor derived from the backend contract.
func WithExtractor(e Extractor) Option {
	return func(c *Controller) { c.extractor = e }
}

// WithMetrics records cycle metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the press/release state machine.
type Controller struct {
	capture   Capturer
	backend   classify.Backend
	extractor Extractor
	metrics   *Metrics
	log       *slog.Logger
	now       func() time.Time

	// emitMu orders state changes with their delivery.
	emitMu    sync.Mutex
	mu        sync.Mutex
	state     State
	starting  chan struct{}
	observers map[int]Observer
	nextID    int
}

// New creates a Controller. Unless WithExtractor is given, the extractor
// is built from backend.Features and backend.InputShape.
func New(capture Capturer, backend classify.Backend, opts ...Option) (*Controller, error) {
	c := &Controller{
		capture:   capture,
		backend:   backend,
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.extractor == nil {
		ex, err := features.New(backend.Features(), backend.InputShape())
		if err != nil {
			return nil, fmt.Errorf("session: backend %s: %w", backend.Name(), err)
		}
		c.extractor = ex
	}
	c.state = State{Phase: Idle, Backend: backend.Name(), At: c.now()}
	return c, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Backend returns the classifying backend.
func (c *Controller) Backend() classify.Backend {
	return c.backend
}

// Observe registers o and returns a function that removes it.
func (c *Controller) Observe(o Observer) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.observers[id] = o
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// set moves to s, delivers it and returns the stored state.
func (c *Controller) set(s State) State {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	s.Backend = c.backend.Name()
	s.At = c.now()
	c.state = s
	observers := make([]Observer, 0, len(c.observers))
	for id := 0; id < c.nextID; id++ {
		if o, ok := c.observers[id]; ok {
			observers = append(observers, o)
		}
	}
	c.mu.Unlock()

	c.log.Debug("session state", "id", s.ID, "phase", s.Phase.String(), "message", s.Message())
	for _, o := range observers {
		o(s)
	}
	return s
}

// Press starts a new cycle. In Recording or Processing, or while another
// press is still starting the capture, it returns ErrBusy and changes
// nothing. A capture failure moves straight to Failed and is returned.
func (c *Controller) Press(ctx context.Context) error {
	c.mu.Lock()
	if c.starting != nil || c.state.Phase == Recording || c.state.Phase == Processing {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.Rejected.Inc()
		}
		return ErrBusy
	}
	starting := make(chan struct{})
	c.starting = starting
	prev := c.state.Phase
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.starting = nil
		c.mu.Unlock()
		close(starting)
	}()

	if prev.Terminal() {
		c.set(State{Phase: Idle})
	}

	id := uuid.NewString()
	if err := c.capture.Start(ctx); err != nil {
		e := toError(err, classify.DeviceUnavailable, "capture.start")
		c.fail(id, e, nil)
		return e
	}
	if c.metrics != nil {
		c.metrics.Active.Set(1)
	}
	c.set(State{Phase: Recording, ID: id})
	return nil
}

// Release ends the recording and runs stop, extract and classify in order.
// It returns the terminal state; pipeline failures are reported there as
// Failed, not as an error. The error is non-nil only when the release is
// rejected: NotRecording outside Recording (state unchanged), or ctx ending
// while a press is still starting.
func (c *Controller) Release(ctx context.Context) (State, error) {
	c.mu.Lock()
	starting := c.starting
	c.mu.Unlock()
	if starting != nil {
		select {
		case <-starting:
		case <-ctx.Done():
			return c.State(), ctx.Err()
		}
	}

	c.mu.Lock()
	cur := c.state
	if cur.Phase != Recording {
		c.mu.Unlock()
		return cur, classify.Errorf(classify.NotRecording, "session.release", "state is %s", cur.Phase)
	}
	// Claim the cycle before unlocking so a concurrent Release sees
	// Processing.
	c.state.Phase = Processing
	c.mu.Unlock()

	c.set(State{Phase: Processing, ID: cur.ID})
	return c.process(ctx, cur.ID), nil
}

func (c *Controller) process(ctx context.Context, id string) State {
	start := c.now()
	rec, err := c.capture.Stop(ctx)
	c.observe(StageCapture, start)
	if err != nil {
		return c.fail(id, toError(err, classify.DeviceUnavailable, "capture.stop"), nil)
	}
	if c.metrics != nil {
		c.metrics.RecordingDuration.Observe(rec.Duration().Seconds())
	}

	start = c.now()
	tensor, err := c.extract(rec)
	c.observe(StageExtract, start)
	if err != nil {
		return c.fail(id, toError(err, classify.UnsupportedFormat, "features.extract"), rec)
	}

	start = c.now()
	res, err := c.classify(ctx, tensor)
	c.observe(StageClassify, start)
	if err != nil {
		return c.fail(id, toError(err, classify.InferenceError, "classify"), rec)
	}

	return c.finish(State{Phase: Ready, ID: id, Result: res, Recording: rec})
}

func (c *Controller) extract(rec *pcm.Recording) (t *classify.Tensor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = classify.Errorf(classify.UnsupportedFormat, "features.extract", "panic: %v", r)
		}
	}()
	return c.extractor.Extract(rec)
}

func (c *Controller) classify(ctx context.Context, t *classify.Tensor) (res *classify.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, classify.Errorf(classify.InferenceError, "classify", "panic: %v", r)
		}
	}()
	res, err = c.backend.Classify(ctx, t)
	if err == nil && (res == nil || res.Len() == 0) {
		err = classify.Errorf(classify.InferenceError, "classify", "backend returned no result")
	}
	return res, err
}

func (c *Controller) fail(id string, e *classify.Error, rec *pcm.Recording) State {
	c.log.Warn("session failed", "id", id, "backend", c.backend.Name(), "error", e)
	return c.finish(State{Phase: Failed, ID: id, Err: e, Recording: rec})
}

func (c *Controller) finish(s State) State {
	if c.metrics != nil {
		kind := ""
		outcome := "ready"
		if s.Err != nil {
			kind = s.Err.Kind.String()
			outcome = "failed"
		}
		c.metrics.Sessions.WithLabelValues(c.backend.Name(), outcome, kind).Inc()
		c.metrics.Active.Set(0)
	}
	return c.set(s)
}

func (c *Controller) observe(stage string, start time.Time) {
	if c.metrics != nil {
		c.metrics.StageLatency.WithLabelValues(stage).Observe(c.now().Sub(start).Seconds())
	}
}

// toError converts err to *classify.Error, keeping an existing kind.
func toError(err error, fallback classify.Kind, op string) *classify.Error {
	e, _ := classify.AsError(classify.Ensure(err, fallback, op))
	return e
}
