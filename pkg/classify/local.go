package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Laudkyle/NaviAudio/pkg/storage"
)

// LoadState tracks the one-shot weight load of a Local backend.
type LoadState int

const (
	// Unloaded means no load has been started.
	Unloaded LoadState = iota
	// Loading means weights are being read and the model built.
	Loading
	// Ready means the model can serve Classify.
	Ready
	// Failed means the load failed; the failure is permanent.
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// LocalConfig configures an on-device backend.
type LocalConfig struct {
	// Store holds the descriptor and the artifacts it references.
	Store storage.FileStore
	// Descriptor is the descriptor path inside Store.
	Descriptor string
	// Runtime executes the model. Its Name must match the descriptor.
	Runtime Runtime
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Local classifies on-device through a Runtime.
//
// The descriptor is read when the backend is created so InputShape and
// Features are known immediately. The weights are loaded once, in the
// background, on the first Preload, Wait or Classify; Classify never waits
// for that load and reports BackendUnavailable until it has completed.
type Local struct {
	desc    *ModelDescriptor
	store   storage.FileStore
	path    string
	runtime Runtime
	log     *slog.Logger
	ctx     context.Context

	mu      sync.Mutex
	state   LoadState
	model   Model
	loadErr error
	closed  bool
	done    chan struct{}
}

var _ Backend = (*Local)(nil)

// NewLocal reads and validates the descriptor. It does not load weights.
func NewLocal(ctx context.Context, cfg LocalConfig) (*Local, error) {
	if cfg.Store == nil || cfg.Runtime == nil {
		return nil, errors.New("classify: local backend needs a store and a runtime")
	}
	data, err := storage.ReadFile(ctx, cfg.Store, cfg.Descriptor)
	if err != nil {
		return nil, NewError(BackendUnavailable, "local.descriptor", err)
	}
	desc, err := ParseDescriptor(data)
	if err != nil {
		return nil, NewError(BackendUnavailable, "local.descriptor", err)
	}
	if desc.Runtime != cfg.Runtime.Name() {
		return nil, Errorf(BackendUnavailable, "local.descriptor",
			"descriptor %q wants runtime %q, have %q", desc.Name, desc.Runtime, cfg.Runtime.Name())
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Local{
		desc:    desc,
		store:   cfg.Store,
		path:    cfg.Descriptor,
		runtime: cfg.Runtime,
		log:     log.With("backend", "local", "model", desc.Name, "runtime", desc.Runtime),
		ctx:     context.WithoutCancel(ctx),
		done:    make(chan struct{}),
	}, nil
}

// Name returns "local:<runtime>/<model>".
func (l *Local) Name() string {
	return "local:" + l.desc.Runtime + "/" + l.desc.Name
}

// Descriptor returns the parsed descriptor.
func (l *Local) Descriptor() *ModelDescriptor { return l.desc }

// InputShape returns the descriptor's input shape.
func (l *Local) InputShape() Shape { return l.desc.Input.Shape.Clone() }

// Features returns the descriptor's preprocessing contract.
func (l *Local) Features() FeatureSpec { return l.desc.Features }

// State returns the current load state.
func (l *Local) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Preload starts the weight load if it has not started yet.
func (l *Local) Preload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Unloaded || l.closed {
		return
	}
	l.state = Loading
	go l.load()
}

// Wait starts the load if needed and blocks until it finishes or ctx is
// done. It returns the load error, if any.
func (l *Local) Wait(ctx context.Context) error {
	l.Preload()
	l.mu.Lock()
	idle := l.state == Unloaded
	l.mu.Unlock()
	if idle {
		return Errorf(BackendUnavailable, "local.wait", "backend closed")
	}
	select {
	case <-l.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadErr
}

func (l *Local) load() {
	defer close(l.done)
	model, err := l.build()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state = Failed
		l.loadErr = NewError(BackendUnavailable, "local.load", err)
		l.log.Error("model load failed", "error", err)
		return
	}
	if l.closed {
		model.Close()
		l.state = Failed
		l.loadErr = Errorf(BackendUnavailable, "local.load", "backend closed")
		return
	}
	l.model = model
	l.state = Ready
	l.log.Info("model loaded")
}

func (l *Local) build() (model Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, fmt.Errorf("runtime panic: %v", r)
		}
	}()

	var graph []byte
	if l.desc.Graph != "" {
		graph, err = storage.ReadFile(l.ctx, l.store, storage.Join(l.path, l.desc.Graph))
		if err != nil {
			return nil, err
		}
	}
	stored, err := storage.ReadFile(l.ctx, l.store, storage.Join(l.path, l.desc.Weights))
	if err != nil {
		return nil, err
	}
	weights, err := l.desc.DecodeWeights(stored)
	if err != nil {
		return nil, err
	}
	l.log.Debug("loading model", "weights_bytes", len(weights), "graph_bytes", len(graph))
	return l.runtime.Load(l.desc, graph, weights)
}

// Classify runs the loaded model. It starts the load on first use but
// returns BackendUnavailable until the model is Ready.
func (l *Local) Classify(ctx context.Context, t *Tensor) (*Result, error) {
	if err := CheckShape("local.classify", t, l.desc.Input.Shape); err != nil {
		return nil, err
	}
	l.mu.Lock()
	state, model, loadErr, closed := l.state, l.model, l.loadErr, l.closed
	l.mu.Unlock()

	switch {
	case closed:
		return nil, Errorf(BackendUnavailable, "local.classify", "backend closed")
	case state == Unloaded:
		l.Preload()
		return nil, Errorf(BackendUnavailable, "local.classify", "model %s not loaded", l.desc.Name)
	case state == Loading:
		return nil, Errorf(BackendUnavailable, "local.classify", "model %s is still loading", l.desc.Name)
	case state == Failed:
		return nil, NewError(BackendUnavailable, "local.classify", loadErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewError(InferenceError, "local.classify", err)
	}

	raw, err := l.run(model, t)
	if err != nil {
		return nil, NewError(InferenceError, "local.run", err)
	}
	res, err := decodeOutputs(l.desc.Outputs, raw)
	if err != nil {
		return nil, NewError(InferenceError, "local.decode", err)
	}
	return res, nil
}

func (l *Local) run(model Model, t *Tensor) (raw map[string][]float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("runtime panic: %v", r)
		}
	}()
	return model.Run(t)
}

// Close releases the model. A load still in progress is discarded when it
// completes.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.model != nil {
		err := l.model.Close()
		l.model = nil
		return err
	}
	return nil
}
