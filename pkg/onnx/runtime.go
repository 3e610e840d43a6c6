package onnx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Laudkyle/NaviAudio/pkg/classify"
)

// ErrUnavailable is returned when the binary was built without ONNX Runtime.
var ErrUnavailable = errors.New("onnx: runtime not available in this build")

// engine is one loaded network.
type engine interface {
	run(input string, shape []int64, data []float32, outputs []string) ([][]float32, error)
	close() error
}

// openEngine is provided by the native binding or the stub.
var openEngine func(model []byte, threads int) (engine, error)

// Runtime implements classify.Runtime for .onnx models.
type Runtime struct{}

var _ classify.Runtime = Runtime{}

// Name implements classify.Runtime.
func (Runtime) Name() string { return "onnx" }

// Load creates a session from the decoded .onnx bytes. graph is unused.
func (Runtime) Load(desc *classify.ModelDescriptor, _, weights []byte) (classify.Model, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("onnx: %s: empty model data", desc.Name)
	}
	eng, err := openEngine(weights, desc.Threads)
	if err != nil {
		return nil, err
	}
	return &model{desc: desc, eng: eng, outputs: desc.OutputBlobs()}, nil
}

type model struct {
	desc    *classify.ModelDescriptor
	outputs []string

	mu  sync.Mutex
	eng engine
}

func (m *model) Run(in *classify.Tensor) (map[string][]float32, error) {
	if !in.Shape().Equal(m.desc.Input.Shape) {
		return nil, fmt.Errorf("onnx: input shape %v, model wants %v", in.Shape(), m.desc.Input.Shape)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eng == nil {
		return nil, errors.New("onnx: model closed")
	}
	vals, err := m.eng.run(m.desc.Input.Name, in.Shape().Int64(), in.Data(), m.outputs)
	if err != nil {
		return nil, err
	}
	if len(vals) != len(m.outputs) {
		return nil, fmt.Errorf("onnx: got %d outputs, want %d", len(vals), len(m.outputs))
	}
	out := make(map[string][]float32, len(vals))
	for i, name := range m.outputs {
		out[name] = vals[i]
	}
	return out, nil
}

func (m *model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.eng == nil {
		return nil
	}
	err := m.eng.close()
	m.eng = nil
	return err
}
